package dto

import (
	"time"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/service"
)

// SubmitCodeRequest represents the payload for submitting code for analysis.
type SubmitCodeRequest struct {
	UserID   uint   `json:"user_id" validate:"required,gt=0"`
	Language string `json:"language" validate:"required"`
	Topic    string `json:"topic"`
	Code     string `json:"code" validate:"required,min=1"`
}

// SubmissionResponse represents a submission to API consumers.
type SubmissionResponse struct {
	ID          string    `json:"id"`
	UserID      uint      `json:"user_id"`
	Language    string    `json:"language"`
	Topic       string    `json:"topic,omitempty"`
	Status      string    `json:"status"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CodeErrorResponse describes a single detected code error.
type CodeErrorResponse struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Line       int    `json:"line,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// AnalysisOutcomeResponse describes the stored analysis artefact.
type AnalysisOutcomeResponse struct {
	SubmissionID string              `json:"submission_id"`
	Errors       []CodeErrorResponse `json:"errors"`
	WeakAreas    []string            `json:"weak_areas"`
	QualityScore float64             `json:"quality_score"`
	CompletedAt  time.Time           `json:"completed_at"`
}

// SubmissionResultResponse is the full pipeline answer for one submission.
type SubmissionResultResponse struct {
	Status       string                   `json:"status"`
	Submission   SubmissionResponse       `json:"submission"`
	Outcome      *AnalysisOutcomeResponse `json:"outcome,omitempty"`
	Growth       *GrowthStateResponse     `json:"growth,omitempty"`
	Practice     *PracticeSetResponse     `json:"practice,omitempty"`
	ErrorKind    string                   `json:"error_kind,omitempty"`
	ErrorMessage string                   `json:"error_message,omitempty"`
}

// NewSubmissionResponse builds a response DTO from a model.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:          submission.ID,
		UserID:      submission.OwnerID,
		Language:    submission.Language,
		Topic:       submission.Topic,
		Status:      submission.Status,
		ErrorKind:   submission.ErrorKind,
		ErrorDetail: submission.ErrorDetail,
		SubmittedAt: submission.SubmittedAt,
	}
}

// NewAnalysisOutcomeResponse converts an AnalysisOutcome model into a DTO.
func NewAnalysisOutcomeResponse(outcome models.AnalysisOutcome) AnalysisOutcomeResponse {
	codeErrors := make([]CodeErrorResponse, 0, len(outcome.Errors))
	for _, e := range outcome.Errors {
		codeErrors = append(codeErrors, CodeErrorResponse{
			Type:       e.Type,
			Severity:   e.Severity,
			Line:       e.Line,
			Message:    e.Message,
			Suggestion: e.Suggestion,
		})
	}

	weakAreas := outcome.WeakAreas
	if weakAreas == nil {
		weakAreas = []string{}
	}

	return AnalysisOutcomeResponse{
		SubmissionID: outcome.SubmissionID,
		Errors:       codeErrors,
		WeakAreas:    weakAreas,
		QualityScore: outcome.QualityScore,
		CompletedAt:  outcome.CompletedAt,
	}
}

// NewSubmissionResultResponse converts a pipeline result into a DTO.
func NewSubmissionResultResponse(result service.SubmissionResult) SubmissionResultResponse {
	response := SubmissionResultResponse{
		Status:       result.Status,
		Submission:   NewSubmissionResponse(result.Submission),
		ErrorKind:    result.ErrorKind,
		ErrorMessage: result.ErrorMessage,
	}

	if result.Outcome != nil {
		outcome := NewAnalysisOutcomeResponse(*result.Outcome)
		response.Outcome = &outcome
	}
	if result.Growth != nil {
		growth := NewGrowthStateResponse(*result.Growth)
		response.Growth = &growth
	}
	if result.Practice != nil {
		practice := NewPracticeSetResponse(*result.Practice)
		response.Practice = &practice
	}

	return response
}

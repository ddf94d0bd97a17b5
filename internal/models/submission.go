package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission pipeline states. Transitions are strictly sequential; Errored
// absorbs from any non-terminal state, Queued is reachable only from Analyzing.
const (
	SubmissionStatusReceived    = "received"
	SubmissionStatusAnalyzing   = "analyzing"
	SubmissionStatusAggregating = "aggregating"
	SubmissionStatusScoring     = "scoring"
	SubmissionStatusGenerating  = "generating"
	SubmissionStatusCompleted   = "completed"
	SubmissionStatusQueued      = "queued"
	SubmissionStatusErrored     = "errored"
)

// Error severities as reported by the analyzer.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Submission is an immutable code submission record. Only Status and the
// error annotation fields change after intake.
type Submission struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Language    string    `gorm:"size:32;not null" json:"language"`
	Topic       string    `gorm:"size:128" json:"topic,omitempty"`
	CodeText    string    `gorm:"type:text;not null" json:"code_text"`
	SubmittedAt time.Time `gorm:"not null;index" json:"submitted_at"`
	Status      string    `gorm:"size:32;not null" json:"status"`
	ErrorKind   string    `gorm:"size:32" json:"error_kind,omitempty"`
	ErrorDetail string    `gorm:"type:text" json:"error_detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsTerminal reports whether the submission has reached a terminal state.
// Queued is not terminal: the reprocess queue will advance it later.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusCompleted || s.Status == SubmissionStatusErrored
}

// CodeError is a single issue detected in a submission. Owned exclusively by
// its AnalysisOutcome.
type CodeError struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// SeverityScale maps a severity label onto the numeric scale used by the
// weak-area EMA. Unknown labels count as medium.
func SeverityScale(severity string) float64 {
	switch severity {
	case SeverityLow:
		return 1
	case SeverityHigh:
		return 3
	default:
		return 2
	}
}

// AnalysisOutcome is the immutable result of analysing one submission.
// At most one row exists per submission (primary key on submission_id).
// SubmittedAt and CodeLines are denormalised from the submission so the
// growth engine can replay the per-user event log without joins.
type AnalysisOutcome struct {
	SubmissionID string            `gorm:"primaryKey;size:36" json:"submission_id"`
	UserID       uint              `gorm:"not null;index" json:"user_id"`
	Errors       []CodeError       `gorm:"serializer:json" json:"errors"`
	WeakAreas    []string          `gorm:"serializer:json" json:"weak_areas"`
	QualityScore float64           `gorm:"not null" json:"quality_score"`
	SubmittedAt  time.Time         `gorm:"not null;index" json:"submitted_at"`
	CodeLines    int               `gorm:"not null;default:1" json:"code_lines"`
	Raw          datatypes.JSONMap `json:"raw,omitempty"`
	CompletedAt  time.Time         `gorm:"not null" json:"completed_at"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ErrorCount returns the number of detected errors.
func (o AnalysisOutcome) ErrorCount() int {
	return len(o.Errors)
}

// TagSeverity returns the severity observation for a weak-area tag: the
// maximum severity among errors of that type, medium when no error matches.
func (o AnalysisOutcome) TagSeverity(tag string) float64 {
	best := 0.0
	for _, e := range o.Errors {
		if e.Type != tag {
			continue
		}
		if s := SeverityScale(e.Severity); s > best {
			best = s
		}
	}
	if best == 0 {
		return SeverityScale(SeverityMedium)
	}
	return best
}

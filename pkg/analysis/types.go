package analysis

import "context"

// Request carries the artefacts sent to the remote analyzer for one
// submission. SubmissionID is threaded through for logging and deduplication.
type Request struct {
	SubmissionID string
	Code         string
	Language     string
	Topic        string
}

// ReportError is a single issue detected by the analyzer.
type ReportError struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Line       int    `json:"line"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// RawReport is the analyzer payload after structural validation.
type RawReport struct {
	Errors         []ReportError `json:"errors"`
	WeakAreas      []string      `json:"weak_areas"`
	QualityScore   float64       `json:"quality_score"`
	AnalysisTimeMs int64         `json:"analysis_time_ms"`
}

// Provider is the swappable analysis capability. Implementations must return
// either a schema-valid report or a typed *Error.
type Provider interface {
	Analyze(ctx context.Context, req Request) (*RawReport, error)

	// Name identifies the provider variant ("openai", "fixture", ...).
	Name() string
}

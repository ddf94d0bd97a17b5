package models

import "time"

// GrowthState is the per-user current growth score. It is a materialised
// view over the outcome log and is rebuilt deterministically from it, so it
// carries no history of its own.
type GrowthState struct {
	UserID                  uint      `gorm:"primaryKey" json:"user_id"`
	QualityComponent        float64   `gorm:"not null;default:0" json:"quality_component"`
	ErrorReductionComponent float64   `gorm:"not null;default:50" json:"error_reduction_component"`
	ProblemSolvingComponent float64   `gorm:"not null;default:50" json:"problem_solving_component"`
	Overall                 float64   `gorm:"not null;default:0" json:"overall"`
	SubmissionCount         int64     `gorm:"not null;default:0" json:"submission_count"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// GrowthScoreSnapshot is one finalised week of growth scores. The series is
// append-only: corrections are new rows flagged as superseding, never updates.
type GrowthScoreSnapshot struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	UserID                  uint      `gorm:"not null;index:idx_growth_snapshot_user_week" json:"user_id"`
	WeekStart               time.Time `gorm:"not null;index:idx_growth_snapshot_user_week" json:"week_start"`
	WeekEnd                 time.Time `gorm:"not null" json:"week_end"`
	Overall                 float64   `gorm:"not null" json:"overall"`
	QualityComponent        float64   `gorm:"not null" json:"quality_component"`
	ErrorReductionComponent float64   `gorm:"not null" json:"error_reduction_component"`
	ProblemSolvingComponent float64   `gorm:"not null" json:"problem_solving_component"`
	ImprovementPct          float64   `gorm:"not null" json:"improvement_pct"`
	Superseding             bool      `gorm:"not null;default:false" json:"superseding"`
	ComputedAt              time.Time `gorm:"not null" json:"computed_at"`
	CreatedAt               time.Time `json:"created_at"`
}

// Growth trend classifications derived from the regression slope of weekly
// overall scores.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// PracticeAttempt records one attempt at a practice problem. The trailing
// pass rate drives the problem-solving component.
type PracticeAttempt struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ProblemID   uint      `gorm:"not null" json:"problem_id"`
	Passed      bool      `gorm:"not null" json:"passed"`
	AttemptedAt time.Time `gorm:"not null;index" json:"attempted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

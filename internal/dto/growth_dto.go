package dto

import (
	"time"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/service"
)

// CloseWeekRequest represents the payload for closing a scoring week.
type CloseWeekRequest struct {
	UserID    uint      `json:"user_id" validate:"required,gt=0"`
	WeekStart time.Time `json:"week_start" validate:"required"`
}

// GrowthStateResponse represents a user's current growth score.
type GrowthStateResponse struct {
	UserID          uint    `json:"user_id"`
	CodeQuality     float64 `json:"code_quality"`
	ErrorReduction  float64 `json:"error_reduction"`
	ProblemSolving  float64 `json:"problem_solving"`
	Overall         float64 `json:"overall"`
	SubmissionCount int64   `json:"submission_count"`
}

// GrowthSnapshotResponse represents one closed-week snapshot.
type GrowthSnapshotResponse struct {
	UserID         uint      `json:"user_id"`
	WeekStart      time.Time `json:"week_start"`
	WeekEnd        time.Time `json:"week_end"`
	CodeQuality    float64   `json:"code_quality"`
	ErrorReduction float64   `json:"error_reduction"`
	ProblemSolving float64   `json:"problem_solving"`
	Overall        float64   `json:"overall"`
	ImprovementPct float64   `json:"improvement_pct"`
	ComputedAt     time.Time `json:"computed_at"`
}

// TrendResponse represents a user's growth trajectory.
type TrendResponse struct {
	Classification string                   `json:"classification"`
	Slope          float64                  `json:"slope"`
	Snapshots      []GrowthSnapshotResponse `json:"snapshots"`
}

// NewGrowthStateResponse builds a response DTO from a model.
func NewGrowthStateResponse(state models.GrowthState) GrowthStateResponse {
	return GrowthStateResponse{
		UserID:          state.UserID,
		CodeQuality:     state.QualityComponent,
		ErrorReduction:  state.ErrorReductionComponent,
		ProblemSolving:  state.ProblemSolvingComponent,
		Overall:         state.Overall,
		SubmissionCount: state.SubmissionCount,
	}
}

// NewGrowthSnapshotResponse converts a snapshot model into a DTO.
func NewGrowthSnapshotResponse(snapshot models.GrowthScoreSnapshot) GrowthSnapshotResponse {
	return GrowthSnapshotResponse{
		UserID:         snapshot.UserID,
		WeekStart:      snapshot.WeekStart,
		WeekEnd:        snapshot.WeekEnd,
		CodeQuality:    snapshot.QualityComponent,
		ErrorReduction: snapshot.ErrorReductionComponent,
		ProblemSolving: snapshot.ProblemSolvingComponent,
		Overall:        snapshot.Overall,
		ImprovementPct: snapshot.ImprovementPct,
		ComputedAt:     snapshot.ComputedAt,
	}
}

// NewTrendResponse converts a trend report into a DTO.
func NewTrendResponse(report service.TrendReport) TrendResponse {
	snapshots := make([]GrowthSnapshotResponse, 0, len(report.Snapshots))
	for _, snapshot := range report.Snapshots {
		snapshots = append(snapshots, NewGrowthSnapshotResponse(snapshot))
	}
	return TrendResponse{
		Classification: report.Classification,
		Slope:          report.Slope,
		Snapshots:      snapshots,
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/repository"
)

// TrendReport classifies a user's growth direction over recent weeks using
// the least-squares slope of weekly overall scores.
type TrendReport struct {
	Classification string                       `json:"classification"`
	Slope          float64                      `json:"slope"`
	Snapshots      []models.GrowthScoreSnapshot `json:"snapshots"`
}

// GrowthScoreEngine maintains per-user multi-factor growth scores and the
// append-only weekly snapshot series.
type GrowthScoreEngine interface {
	RecordSubmission(ctx context.Context, userID uint, outcome models.AnalysisOutcome) (models.GrowthState, error)
	RecordAttempt(ctx context.Context, userID, problemID uint, passed bool, attemptedAt time.Time) (models.GrowthState, error)
	CloseWeek(ctx context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error)
	CurrentScore(ctx context.Context, userID uint) (models.GrowthState, error)
	Trend(ctx context.Context, userID uint, weeks int) (TrendReport, error)
}

// GrowthConfig tunes the score components.
type GrowthConfig struct {
	// QualityAlpha weights the newest quality score in the EMA.
	QualityAlpha float64
	// ErrorWindow is the trailing-submission window for error reduction.
	ErrorWindow int
	// AttemptWindow is the trailing-attempt window for problem solving.
	AttemptWindow int
	// CacheTTL bounds staleness of the redis-cached current state.
	CacheTTL time.Duration
}

// DefaultGrowthConfig returns the standard tuning.
func DefaultGrowthConfig() GrowthConfig {
	return GrowthConfig{
		QualityAlpha:  0.2,
		ErrorWindow:   5,
		AttemptWindow: 10,
		CacheTTL:      5 * time.Minute,
	}
}

// Component weights for the overall score.
const (
	qualityWeight        = 0.4
	errorReductionWeight = 0.3
	problemSolvingWeight = 0.3
	neutralComponent     = 50.0
)

type growthScoreEngine struct {
	growth   repository.GrowthRepository
	outcomes repository.SubmissionRepository
	attempts repository.PracticeAttemptRepository
	cache    *redis.Client
	cfg      GrowthConfig
	logger   zerolog.Logger
	locks    *userLocks
	now      func() time.Time
}

// NewGrowthScoreEngine constructs the growth score engine.
func NewGrowthScoreEngine(growth repository.GrowthRepository, outcomes repository.SubmissionRepository, attempts repository.PracticeAttemptRepository, cache *redis.Client, cfg GrowthConfig, logger zerolog.Logger) GrowthScoreEngine {
	if cfg.QualityAlpha <= 0 || cfg.QualityAlpha > 1 {
		cfg.QualityAlpha = 0.2
	}
	if cfg.ErrorWindow <= 0 {
		cfg.ErrorWindow = 5
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = 10
	}
	return &growthScoreEngine{
		growth:   growth,
		outcomes: outcomes,
		attempts: attempts,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With().Str("component", "growth_score_engine").Logger(),
		locks:    newUserLocks(),
		now:      time.Now,
	}
}

// RecordSubmission rebuilds the user's current growth state from the outcome
// log in submitted_at order. Replaying the log keeps the state deterministic
// when retried or delayed outcomes are inserted at their original timestamp.
func (g *growthScoreEngine) RecordSubmission(ctx context.Context, userID uint, _ models.AnalysisOutcome) (models.GrowthState, error) {
	unlock := g.locks.lock(userID)
	defer unlock()
	return g.rebuildState(ctx, userID)
}

// RecordAttempt stores a practice attempt and refreshes the problem-solving
// component.
func (g *growthScoreEngine) RecordAttempt(ctx context.Context, userID, problemID uint, passed bool, attemptedAt time.Time) (models.GrowthState, error) {
	if attemptedAt.IsZero() {
		attemptedAt = g.now().UTC()
	}
	attempt := models.PracticeAttempt{
		UserID:      userID,
		ProblemID:   problemID,
		Passed:      passed,
		AttemptedAt: attemptedAt,
	}
	if err := g.attempts.Create(ctx, &attempt); err != nil {
		return models.GrowthState{}, err
	}

	unlock := g.locks.lock(userID)
	defer unlock()
	return g.rebuildState(ctx, userID)
}

func (g *growthScoreEngine) rebuildState(ctx context.Context, userID uint) (models.GrowthState, error) {
	log, err := g.outcomes.ListOutcomesByUser(ctx, userID, 0)
	if err != nil {
		return models.GrowthState{}, err
	}
	attempts, err := g.attempts.ListRecent(ctx, userID, time.Time{}, g.cfg.AttemptWindow)
	if err != nil {
		return models.GrowthState{}, err
	}

	state := g.computeState(userID, log, attempts)
	if err := g.growth.SaveState(ctx, &state); err != nil {
		return models.GrowthState{}, err
	}
	g.cacheState(ctx, state)

	g.logger.Debug().
		Uint("user_id", userID).
		Float64("overall", state.Overall).
		Int64("submissions", state.SubmissionCount).
		Msg("growth state rebuilt")

	return state, nil
}

// computeState derives all components from the replayed logs.
func (g *growthScoreEngine) computeState(userID uint, log []models.AnalysisOutcome, attempts []models.PracticeAttempt) models.GrowthState {
	quality := 0.0
	errorReduction := neutralComponent
	rates := make([]float64, 0, len(log))

	for i, outcome := range log {
		if i == 0 {
			quality = outcome.QualityScore
		} else {
			quality = g.cfg.QualityAlpha*outcome.QualityScore + (1-g.cfg.QualityAlpha)*quality
		}

		lines := outcome.CodeLines
		if lines < 1 {
			lines = 1
		}
		rate := float64(outcome.ErrorCount()) / float64(lines)

		if i > 0 {
			from := i - g.cfg.ErrorWindow
			if from < 0 {
				from = 0
			}
			var sum float64
			for _, prior := range rates[from:i] {
				sum += prior
			}
			avg := sum / float64(i-from)

			denom := avg
			if rate > denom {
				denom = rate
			}
			if denom > 0 {
				errorReduction = clampScore(errorReduction + 10*(avg-rate)/denom)
			}
		}
		rates = append(rates, rate)
	}

	problemSolving := neutralComponent
	if len(attempts) > 0 {
		passed := 0
		for _, attempt := range attempts {
			if attempt.Passed {
				passed++
			}
		}
		problemSolving = clampScore(100 * float64(passed) / float64(len(attempts)))
	}

	overall := clampScore(qualityWeight*quality + errorReductionWeight*errorReduction + problemSolvingWeight*problemSolving)

	return models.GrowthState{
		UserID:                  userID,
		QualityComponent:        clampScore(quality),
		ErrorReductionComponent: errorReduction,
		ProblemSolvingComponent: problemSolving,
		Overall:                 overall,
		SubmissionCount:         int64(len(log)),
		UpdatedAt:               g.now().UTC(),
	}
}

// CloseWeek finalises a weekly snapshot. Closing an already-closed week
// returns the stored snapshot unchanged, so retried jobs cannot double-count.
func (g *growthScoreEngine) CloseWeek(ctx context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error) {
	weekStart = WeekStart(weekStart)
	weekEnd := weekStart.AddDate(0, 0, 7)

	unlock := g.locks.lock(userID)
	defer unlock()

	existing, err := g.growth.SnapshotForWeek(ctx, userID, weekStart)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.GrowthScoreSnapshot{}, err
	}

	log, err := g.outcomes.ListOutcomesByUser(ctx, userID, 0)
	if err != nil {
		return models.GrowthScoreSnapshot{}, err
	}
	inWeek := log[:0:0]
	for _, outcome := range log {
		if outcome.SubmittedAt.Before(weekEnd) {
			inWeek = append(inWeek, outcome)
		}
	}

	attempts, err := g.attempts.ListRecent(ctx, userID, weekEnd, g.cfg.AttemptWindow)
	if err != nil {
		return models.GrowthScoreSnapshot{}, err
	}

	state := g.computeState(userID, inWeek, attempts)

	improvement := 0.0
	prior, err := g.growth.LatestSnapshotBefore(ctx, userID, weekStart)
	switch {
	case err == nil:
		base := prior.Overall
		if base < 1 {
			base = 1
		}
		improvement = (state.Overall - prior.Overall) / base * 100
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First-ever week: improvement stays 0 by convention.
	default:
		return models.GrowthScoreSnapshot{}, err
	}

	snapshot := models.GrowthScoreSnapshot{
		UserID:                  userID,
		WeekStart:               weekStart,
		WeekEnd:                 weekEnd,
		Overall:                 state.Overall,
		QualityComponent:        state.QualityComponent,
		ErrorReductionComponent: state.ErrorReductionComponent,
		ProblemSolvingComponent: state.ProblemSolvingComponent,
		ImprovementPct:          improvement,
		ComputedAt:              g.now().UTC(),
	}

	if err := g.growth.AppendSnapshot(ctx, &snapshot); err != nil {
		return models.GrowthScoreSnapshot{}, err
	}
	return snapshot, nil
}

// CurrentScore returns the cached current state, falling back to storage.
func (g *growthScoreEngine) CurrentScore(ctx context.Context, userID uint) (models.GrowthState, error) {
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, growthCacheKey(userID)).Result(); err == nil {
			var state models.GrowthState
			if unmarshalErr := json.Unmarshal([]byte(cached), &state); unmarshalErr == nil {
				return state, nil
			}
		} else if err != redis.Nil {
			g.logger.Warn().Err(err).Msg("failed to read growth cache")
		}
	}

	state, err := g.growth.GetState(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.GrowthState{
			UserID:                  userID,
			ErrorReductionComponent: neutralComponent,
			ProblemSolvingComponent: neutralComponent,
		}, nil
	}
	if err != nil {
		return models.GrowthState{}, err
	}

	g.cacheState(ctx, state)
	return state, nil
}

// Trend fits a least-squares line through the last `weeks` snapshots. The
// slope is computed over the full series, not the endpoints, so a noisy but
// improving sequence still classifies as improving.
func (g *growthScoreEngine) Trend(ctx context.Context, userID uint, weeks int) (TrendReport, error) {
	if weeks <= 0 {
		weeks = 8
	}
	snapshots, err := g.growth.ListSnapshots(ctx, userID, weeks)
	if err != nil {
		return TrendReport{}, err
	}

	// Superseding corrections replace the original row for trend math.
	byWeek := make([]models.GrowthScoreSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		if n := len(byWeek); n > 0 && byWeek[n-1].WeekStart.Equal(snapshot.WeekStart) {
			byWeek[n-1] = snapshot
			continue
		}
		byWeek = append(byWeek, snapshot)
	}

	report := TrendReport{Classification: models.TrendStable, Snapshots: byWeek}
	if len(byWeek) < 2 {
		return report, nil
	}

	report.Slope = regressionSlope(byWeek)
	switch {
	case report.Slope > 1:
		report.Classification = models.TrendImproving
	case report.Slope < -1:
		report.Classification = models.TrendDeclining
	}
	return report, nil
}

// regressionSlope returns the least-squares slope of overall score per week.
func regressionSlope(snapshots []models.GrowthScoreSnapshot) float64 {
	n := float64(len(snapshots))
	var sumX, sumY, sumXY, sumXX float64
	for i, snapshot := range snapshots {
		x := float64(i)
		y := snapshot.Overall
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func (g *growthScoreEngine) cacheState(ctx context.Context, state models.GrowthState) {
	if g.cache == nil {
		return
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, growthCacheKey(state.UserID), payload, g.cfg.CacheTTL).Err(); err != nil {
		g.logger.Warn().Err(err).Msg("failed to store growth cache")
	}
}

func growthCacheKey(userID uint) string {
	return fmt.Sprintf("growth:user:%d", userID)
}

// WeekStart normalises a timestamp to its ISO week boundary: Monday 00:00 UTC.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := t.Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

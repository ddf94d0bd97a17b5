package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/repository"
)

// GrowthReportingService is the caller-facing growth surface. It validates
// the user before delegating to the score engine.
type GrowthReportingService interface {
	CurrentScore(ctx context.Context, userID uint) (models.GrowthState, error)
	CloseWeek(ctx context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error)
	Trend(ctx context.Context, userID uint, weeks int) (TrendReport, error)
}

type growthReportingService struct {
	users  repository.UserRepository
	engine GrowthScoreEngine
	logger zerolog.Logger
}

// NewGrowthReportingService wraps the growth engine with user validation.
func NewGrowthReportingService(users repository.UserRepository, engine GrowthScoreEngine, logger zerolog.Logger) GrowthReportingService {
	return &growthReportingService{
		users:  users,
		engine: engine,
		logger: logger.With().Str("component", "growth_reporting").Logger(),
	}
}

func (s *growthReportingService) CurrentScore(ctx context.Context, userID uint) (models.GrowthState, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return models.GrowthState{}, translateUserErr(err)
	}
	return s.engine.CurrentScore(ctx, userID)
}

func (s *growthReportingService) CloseWeek(ctx context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return models.GrowthScoreSnapshot{}, translateUserErr(err)
	}
	return s.engine.CloseWeek(ctx, userID, weekStart)
}

func (s *growthReportingService) Trend(ctx context.Context, userID uint, weeks int) (TrendReport, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return TrendReport{}, translateUserErr(err)
	}
	return s.engine.Trend(ctx, userID, weeks)
}

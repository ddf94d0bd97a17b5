package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/repository"
)

// ErrUserNotFound indicates the referenced user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrProblemNotFound indicates the referenced catalog problem does not exist.
var ErrProblemNotFound = errors.New("practice problem not found")

// PracticeService is the read/record surface for weak areas and practice
// sets outside the submission pipeline.
type PracticeService interface {
	WeakAreas(ctx context.Context, userID uint) ([]RankedWeakArea, error)
	GeneratePracticeSet(ctx context.Context, userID uint, count int) (PracticeSet, error)
	RecordAttempt(ctx context.Context, userID, problemID uint, passed bool) (models.GrowthState, error)
	SeedCatalog(ctx context.Context, problems []models.PracticeProblem) (int, error)
}

type practiceService struct {
	users      repository.UserRepository
	catalog    repository.PracticeCatalogRepository
	aggregator WeakAreaAggregator
	selector   PracticeSelector
	growth     GrowthScoreEngine
	logger     zerolog.Logger
	now        func() time.Time
}

// NewPracticeService wires the practice surface over the aggregator,
// selector and growth engine.
func NewPracticeService(
	users repository.UserRepository,
	catalog repository.PracticeCatalogRepository,
	aggregator WeakAreaAggregator,
	selector PracticeSelector,
	growth GrowthScoreEngine,
	logger zerolog.Logger,
) PracticeService {
	return &practiceService{
		users:      users,
		catalog:    catalog,
		aggregator: aggregator,
		selector:   selector,
		growth:     growth,
		logger:     logger.With().Str("component", "practice_service").Logger(),
		now:        time.Now,
	}
}

func (s *practiceService) WeakAreas(ctx context.Context, userID uint) ([]RankedWeakArea, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, translateUserErr(err)
	}
	return s.aggregator.Ranked(ctx, userID)
}

func (s *practiceService) GeneratePracticeSet(ctx context.Context, userID uint, count int) (PracticeSet, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return PracticeSet{}, translateUserErr(err)
	}

	ranked, err := s.aggregator.Ranked(ctx, userID)
	if err != nil {
		return PracticeSet{}, err
	}
	return s.selector.Select(ctx, ranked, user.NormalizedSkillLevel(), count)
}

func (s *practiceService) RecordAttempt(ctx context.Context, userID, problemID uint, passed bool) (models.GrowthState, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return models.GrowthState{}, translateUserErr(err)
	}
	if _, err := s.catalog.GetByID(ctx, problemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GrowthState{}, ErrProblemNotFound
		}
		return models.GrowthState{}, err
	}

	return s.growth.RecordAttempt(ctx, userID, problemID, passed, s.now().UTC())
}

func (s *practiceService) SeedCatalog(ctx context.Context, problems []models.PracticeProblem) (int, error) {
	if err := s.catalog.Seed(ctx, problems); err != nil {
		return 0, err
	}
	s.logger.Info().Int("count", len(problems)).Msg("practice catalog seeded")
	return len(problems), nil
}

func translateUserErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}

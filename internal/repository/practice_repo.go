package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/avelio/skillforge-api/internal/models"
)

// PracticeCatalogRepository reads the external problem bank. The catalog is
// read-only to the selector; Seed exists for tests and operational loading.
type PracticeCatalogRepository interface {
	// Query returns problems targeting any of the given tags, optionally
	// restricted to one difficulty, ordered by id for determinism.
	Query(ctx context.Context, tags []string, difficulty string) ([]models.PracticeProblem, error)
	GetByID(ctx context.Context, id uint) (models.PracticeProblem, error)
	Seed(ctx context.Context, problems []models.PracticeProblem) error
}

// PracticeAttemptRepository persists practice attempts.
type PracticeAttemptRepository interface {
	Create(ctx context.Context, attempt *models.PracticeAttempt) error
	// ListRecent returns the user's most recent attempts, newest first. A
	// non-zero `before` bounds the window, which week closing relies on.
	ListRecent(ctx context.Context, userID uint, before time.Time, limit int) ([]models.PracticeAttempt, error)
}

// NewPracticeCatalogRepository constructs a catalog repository.
func NewPracticeCatalogRepository(db *gorm.DB) PracticeCatalogRepository {
	return &practiceCatalogRepository{db: db}
}

type practiceCatalogRepository struct {
	db *gorm.DB
}

// Target areas are stored as a JSON array, so tag matching happens in memory
// after a difficulty-scoped fetch. The catalog is bounded content, not user
// data, so the coarse fetch is acceptable.
func (r *practiceCatalogRepository) Query(ctx context.Context, tags []string, difficulty string) ([]models.PracticeProblem, error) {
	query := r.db.WithContext(ctx).Order("id ASC")
	if difficulty != "" {
		query = query.Where("difficulty = ?", difficulty)
	}

	var all []models.PracticeProblem
	if err := query.Find(&all).Error; err != nil {
		return nil, err
	}

	if len(tags) == 0 {
		return all, nil
	}

	matched := make([]models.PracticeProblem, 0, len(all))
	for _, problem := range all {
		for _, tag := range tags {
			if problem.Targets(tag) {
				matched = append(matched, problem)
				break
			}
		}
	}
	return matched, nil
}

func (r *practiceCatalogRepository) GetByID(ctx context.Context, id uint) (models.PracticeProblem, error) {
	var problem models.PracticeProblem
	if err := r.db.WithContext(ctx).First(&problem, id).Error; err != nil {
		return models.PracticeProblem{}, err
	}
	return problem, nil
}

func (r *practiceCatalogRepository) Seed(ctx context.Context, problems []models.PracticeProblem) error {
	if len(problems) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&problems).Error
}

// NewPracticeAttemptRepository constructs an attempt repository.
func NewPracticeAttemptRepository(db *gorm.DB) PracticeAttemptRepository {
	return &practiceAttemptRepository{db: db}
}

type practiceAttemptRepository struct {
	db *gorm.DB
}

func (r *practiceAttemptRepository) Create(ctx context.Context, attempt *models.PracticeAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *practiceAttemptRepository) ListRecent(ctx context.Context, userID uint, before time.Time, limit int) ([]models.PracticeAttempt, error) {
	var attempts []models.PracticeAttempt
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("attempted_at DESC").
		Order("id DESC")
	if !before.IsZero() {
		query = query.Where("attempted_at < ?", before)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

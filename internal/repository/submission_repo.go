package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avelio/skillforge-api/internal/models"
)

// SubmissionRepository persists submissions and their analysis outcomes.
type SubmissionRepository interface {
	Put(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (models.Submission, error)
	UpdateStatus(ctx context.Context, id, status string) error
	MarkErrored(ctx context.Context, id, kind, detail string) error

	// PutOutcome is an idempotent upsert keyed by submission_id: a second
	// write for the same submission leaves the first outcome untouched.
	PutOutcome(ctx context.Context, outcome *models.AnalysisOutcome) error
	GetOutcome(ctx context.Context, submissionID string) (models.AnalysisOutcome, error)

	// ListOutcomesByUser returns the user's most recent `limit` outcomes
	// ordered by submitted_at ascending (ties broken by submission_id),
	// which is the replay order the growth engine depends on.
	ListOutcomesByUser(ctx context.Context, userID uint, limit int) ([]models.AnalysisOutcome, error)
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Put(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, "id = ?", id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *submissionRepository) MarkErrored(ctx context.Context, id, kind, detail string) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.SubmissionStatusErrored,
			"error_kind":   kind,
			"error_detail": detail,
		}).Error
}

func (r *submissionRepository) PutOutcome(ctx context.Context, outcome *models.AnalysisOutcome) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}},
			DoNothing: true,
		}).
		Create(outcome).Error
}

func (r *submissionRepository) GetOutcome(ctx context.Context, submissionID string) (models.AnalysisOutcome, error) {
	var outcome models.AnalysisOutcome
	if err := r.db.WithContext(ctx).First(&outcome, "submission_id = ?", submissionID).Error; err != nil {
		return models.AnalysisOutcome{}, err
	}
	return outcome, nil
}

func (r *submissionRepository) ListOutcomesByUser(ctx context.Context, userID uint, limit int) ([]models.AnalysisOutcome, error) {
	var recent []models.AnalysisOutcome
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submitted_at DESC").
		Order("submission_id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&recent).Error; err != nil {
		return nil, err
	}

	// Reverse into replay order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avelio/skillforge-api/internal/models"
)

// WeakAreaRepository persists per-user weak-area records.
type WeakAreaRepository interface {
	// Upsert inserts or replaces the record for (user_id, tag).
	Upsert(ctx context.Context, record *models.WeakAreaRecord) error
	GetByTag(ctx context.Context, userID uint, tag string) (models.WeakAreaRecord, error)
	ListByUser(ctx context.Context, userID uint) ([]models.WeakAreaRecord, error)
}

// NewWeakAreaRepository constructs a weak-area repository.
func NewWeakAreaRepository(db *gorm.DB) WeakAreaRepository {
	return &weakAreaRepository{db: db}
}

type weakAreaRepository struct {
	db *gorm.DB
}

func (r *weakAreaRepository) Upsert(ctx context.Context, record *models.WeakAreaRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "tag"}},
			DoUpdates: clause.AssignmentColumns([]string{"frequency", "severity_ema", "last_seen", "updated_at"}),
		}).
		Create(record).Error
}

func (r *weakAreaRepository) GetByTag(ctx context.Context, userID uint, tag string) (models.WeakAreaRecord, error) {
	var record models.WeakAreaRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tag = ?", userID, tag).
		First(&record).Error
	if err != nil {
		return models.WeakAreaRecord{}, err
	}
	return record, nil
}

func (r *weakAreaRepository) ListByUser(ctx context.Context, userID uint) ([]models.WeakAreaRecord, error) {
	var records []models.WeakAreaRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("tag ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

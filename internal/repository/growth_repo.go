package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avelio/skillforge-api/internal/models"
)

// ErrNonMonotonicWeek indicates an appended snapshot would break the strictly
// increasing week_start sequence for a user.
var ErrNonMonotonicWeek = errors.New("snapshot week_start is not after the latest closed week")

// GrowthRepository persists growth state and the append-only weekly series.
type GrowthRepository interface {
	GetState(ctx context.Context, userID uint) (models.GrowthState, error)
	SaveState(ctx context.Context, state *models.GrowthState) error

	// AppendSnapshot appends a weekly snapshot, rejecting any week_start that
	// is not strictly after the latest non-superseding snapshot. Superseding
	// corrections bypass the monotonicity check.
	AppendSnapshot(ctx context.Context, snapshot *models.GrowthScoreSnapshot) error
	SnapshotForWeek(ctx context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error)
	LatestSnapshotBefore(ctx context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error)
	ListSnapshots(ctx context.Context, userID uint, limit int) ([]models.GrowthScoreSnapshot, error)
}

// NewGrowthRepository constructs a growth repository.
func NewGrowthRepository(db *gorm.DB) GrowthRepository {
	return &growthRepository{db: db}
}

type growthRepository struct {
	db *gorm.DB
}

func (r *growthRepository) GetState(ctx context.Context, userID uint) (models.GrowthState, error) {
	var state models.GrowthState
	err := r.db.WithContext(ctx).First(&state, "user_id = ?", userID).Error
	if err != nil {
		return models.GrowthState{}, err
	}
	return state, nil
}

func (r *growthRepository) SaveState(ctx context.Context, state *models.GrowthState) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(state).Error
}

func (r *growthRepository) AppendSnapshot(ctx context.Context, snapshot *models.GrowthScoreSnapshot) error {
	if !snapshot.Superseding {
		var latest models.GrowthScoreSnapshot
		err := r.db.WithContext(ctx).
			Where("user_id = ? AND superseding = ?", snapshot.UserID, false).
			Order("week_start DESC").
			First(&latest).Error
		switch {
		case err == nil:
			if !snapshot.WeekStart.After(latest.WeekStart) {
				return ErrNonMonotonicWeek
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First snapshot for the user.
		default:
			return err
		}
	}

	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *growthRepository) SnapshotForWeek(ctx context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error) {
	var snapshot models.GrowthScoreSnapshot
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND week_start = ?", userID, weekStart).
		Order("id DESC").
		First(&snapshot).Error
	if err != nil {
		return models.GrowthScoreSnapshot{}, err
	}
	return snapshot, nil
}

func (r *growthRepository) LatestSnapshotBefore(ctx context.Context, userID uint, weekStart time.Time) (models.GrowthScoreSnapshot, error) {
	var snapshot models.GrowthScoreSnapshot
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND week_start < ?", userID, weekStart).
		Order("week_start DESC").
		Order("id DESC").
		First(&snapshot).Error
	if err != nil {
		return models.GrowthScoreSnapshot{}, err
	}
	return snapshot, nil
}

func (r *growthRepository) ListSnapshots(ctx context.Context, userID uint, limit int) ([]models.GrowthScoreSnapshot, error) {
	var snapshots []models.GrowthScoreSnapshot
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("week_start DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}

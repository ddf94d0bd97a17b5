package models

import (
	"math"
	"time"
)

// WeakAreaRecord tracks a recurring weak-area tag for one user. Records are
// never deleted; severity decays toward zero when no new evidence arrives.
type WeakAreaRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_weak_area_user_tag" json:"user_id"`
	Tag         string    `gorm:"size:128;not null;uniqueIndex:idx_weak_area_user_tag" json:"tag"`
	Frequency   int64     `gorm:"not null;default:0" json:"frequency"`
	SeverityEMA float64   `gorm:"not null;default:0" json:"severity_ema"`
	LastSeen    time.Time `gorm:"not null" json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DecayedSeverity applies the healing decay lazily: the stored EMA is halved
// once per full healing window elapsed since the record was last seen. The
// stored value is left untouched so decay stays a pure function of time.
func (r WeakAreaRecord) DecayedSeverity(now time.Time, window time.Duration) float64 {
	if window <= 0 || !now.After(r.LastSeen) {
		return r.SeverityEMA
	}
	elapsed := now.Sub(r.LastSeen)
	windows := int(elapsed / window)
	if windows <= 0 {
		return r.SeverityEMA
	}
	return r.SeverityEMA * math.Pow(0.5, float64(windows))
}

// RankWeight is the ranking key for weak areas: decayed severity scaled by
// log(1 + frequency) so persistent areas outrank one-off spikes.
func (r WeakAreaRecord) RankWeight(now time.Time, window time.Duration) float64 {
	return r.DecayedSeverity(now, window) * math.Log1p(float64(r.Frequency))
}

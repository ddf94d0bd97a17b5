package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/repository"
)

// RankedWeakArea is a weak area prepared for the practice selector, ordered
// by urgency.
type RankedWeakArea struct {
	Tag         string    `json:"tag"`
	Weight      float64   `json:"weight"`
	Frequency   int64     `json:"frequency"`
	SeverityEMA float64   `json:"severity_ema"`
	LastSeen    time.Time `json:"last_seen"`
}

// WeakAreaAggregator converts per-submission analysis outcomes into ranked
// persistent weak-area records.
type WeakAreaAggregator interface {
	Ingest(ctx context.Context, userID uint, outcome models.AnalysisOutcome) ([]models.WeakAreaRecord, error)
	Ranked(ctx context.Context, userID uint) ([]RankedWeakArea, error)
}

// AggregatorConfig tunes the weak-area EMA and healing decay.
type AggregatorConfig struct {
	// Alpha weights the newest severity observation in the EMA.
	Alpha float64
	// HealingWindow is the idle period after which severity halves.
	HealingWindow time.Duration
	// SeverityFloor excludes healed areas from ranking.
	SeverityFloor float64
}

// DefaultAggregatorConfig returns the standard tuning: alpha 0.3, 14-day
// healing window, 0.1 floor.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Alpha:         0.3,
		HealingWindow: 14 * 24 * time.Hour,
		SeverityFloor: 0.1,
	}
}

type weakAreaAggregator struct {
	records  repository.WeakAreaRepository
	outcomes repository.SubmissionRepository
	cfg      AggregatorConfig
	logger   zerolog.Logger
	locks    *userLocks
	now      func() time.Time
}

// NewWeakAreaAggregator constructs the aggregator.
func NewWeakAreaAggregator(records repository.WeakAreaRepository, outcomes repository.SubmissionRepository, cfg AggregatorConfig, logger zerolog.Logger) WeakAreaAggregator {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.3
	}
	if cfg.HealingWindow <= 0 {
		cfg.HealingWindow = 14 * 24 * time.Hour
	}
	return &weakAreaAggregator{
		records:  records,
		outcomes: outcomes,
		cfg:      cfg,
		logger:   logger.With().Str("component", "weak_area_aggregator").Logger(),
		locks:    newUserLocks(),
		now:      time.Now,
	}
}

// Ingest rebuilds the weak-area records touched by the outcome from the
// user's full outcome log in submitted_at order. Replaying the log instead of
// applying a delta makes ingestion idempotent under at-least-once queue
// delivery and keeps the EMA independent of arrival order.
func (a *weakAreaAggregator) Ingest(ctx context.Context, userID uint, outcome models.AnalysisOutcome) ([]models.WeakAreaRecord, error) {
	unlock := a.locks.lock(userID)
	defer unlock()

	log, err := a.outcomes.ListOutcomesByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	tags := append([]string(nil), outcome.WeakAreas...)
	sort.Strings(tags)

	updated := make([]models.WeakAreaRecord, 0, len(tags))
	seen := map[string]bool{}
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true

		record := a.replayTag(userID, tag, log)
		if record.Frequency == 0 {
			continue
		}
		if err := a.records.Upsert(ctx, &record); err != nil {
			return nil, err
		}
		updated = append(updated, record)
	}

	a.logger.Debug().
		Uint("user_id", userID).
		Str("submission_id", outcome.SubmissionID).
		Int("tags", len(updated)).
		Msg("weak areas ingested")

	return updated, nil
}

// replayTag folds every outcome containing the tag, oldest first.
func (a *weakAreaAggregator) replayTag(userID uint, tag string, log []models.AnalysisOutcome) models.WeakAreaRecord {
	record := models.WeakAreaRecord{UserID: userID, Tag: tag}
	for _, entry := range log {
		if !containsTag(entry.WeakAreas, tag) {
			continue
		}
		severity := entry.TagSeverity(tag)
		if record.Frequency == 0 {
			record.SeverityEMA = severity
		} else {
			record.SeverityEMA = a.cfg.Alpha*severity + (1-a.cfg.Alpha)*record.SeverityEMA
		}
		record.Frequency++
		if entry.SubmittedAt.After(record.LastSeen) {
			record.LastSeen = entry.SubmittedAt
		}
	}
	return record
}

// Ranked returns the user's weak areas ordered by decayed severity weight.
// Decay is applied lazily at read time; areas below the floor are excluded.
func (a *weakAreaAggregator) Ranked(ctx context.Context, userID uint) ([]RankedWeakArea, error) {
	records, err := a.records.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	ranked := make([]RankedWeakArea, 0, len(records))
	for _, record := range records {
		severity := record.DecayedSeverity(now, a.cfg.HealingWindow)
		if severity < a.cfg.SeverityFloor {
			continue
		}
		ranked = append(ranked, RankedWeakArea{
			Tag:         record.Tag,
			Weight:      record.RankWeight(now, a.cfg.HealingWindow),
			Frequency:   record.Frequency,
			SeverityEMA: severity,
			LastSeen:    record.LastSeen,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Weight != ranked[j].Weight {
			return ranked[i].Weight > ranked[j].Weight
		}
		if !ranked[i].LastSeen.Equal(ranked[j].LastSeen) {
			return ranked[i].LastSeen.After(ranked[j].LastSeen)
		}
		return ranked[i].Tag < ranked[j].Tag
	})

	return ranked, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// userLocks serialises writers per user while letting distinct users proceed
// concurrently.
type userLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: map[uint]*sync.Mutex{}}
}

func (l *userLocks) lock(userID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

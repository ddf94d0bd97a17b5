package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avelio/skillforge-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Submission{},
		&models.AnalysisOutcome{},
		&models.WeakAreaRecord{},
		&models.GrowthState{},
		&models.GrowthScoreSnapshot{},
		&models.PracticeAttempt{},
		&models.PracticeProblem{},
	))
	return db
}

func TestSubmissionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := models.Submission{
		ID:          "sub-1",
		OwnerID:     1,
		Language:    "python",
		CodeText:    "print(1)",
		SubmittedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:      models.SubmissionStatusReceived,
	}
	require.NoError(t, repo.Put(ctx, &submission))

	require.NoError(t, repo.UpdateStatus(ctx, "sub-1", models.SubmissionStatusAnalyzing))
	loaded, err := repo.GetByID(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusAnalyzing, loaded.Status)

	require.NoError(t, repo.MarkErrored(ctx, "sub-1", "timeout", "analysis timed out"))
	loaded, err = repo.GetByID(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusErrored, loaded.Status)
	require.Equal(t, "timeout", loaded.ErrorKind)
	require.Equal(t, "analysis timed out", loaded.ErrorDetail)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPutOutcomeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	first := models.AnalysisOutcome{
		SubmissionID: "sub-1",
		UserID:       1,
		Errors:       []models.CodeError{{Type: "loops", Severity: models.SeverityHigh, Line: 3, Message: "bad bound"}},
		WeakAreas:    []string{"loops"},
		QualityScore: 55,
		SubmittedAt:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		CodeLines:    12,
		CompletedAt:  time.Date(2026, 3, 2, 10, 0, 5, 0, time.UTC),
	}
	require.NoError(t, repo.PutOutcome(ctx, &first))

	// A redelivered pipeline run writes a different payload for the same
	// submission; the first outcome must win.
	duplicate := first
	duplicate.QualityScore = 90
	duplicate.WeakAreas = []string{"recursion"}
	require.NoError(t, repo.PutOutcome(ctx, &duplicate))

	stored, err := repo.GetOutcome(ctx, "sub-1")
	require.NoError(t, err)
	require.InDelta(t, 55, stored.QualityScore, 1e-9)
	require.Equal(t, []string{"loops"}, stored.WeakAreas)
	require.Len(t, stored.Errors, 1)
}

func TestListOutcomesByUserReplayOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Inserted out of order; listing must come back in submitted_at order.
	for _, outcome := range []models.AnalysisOutcome{
		{SubmissionID: "sub-c", UserID: 1, SubmittedAt: base.Add(2 * time.Hour), QualityScore: 70, CodeLines: 1, CompletedAt: base},
		{SubmissionID: "sub-a", UserID: 1, SubmittedAt: base, QualityScore: 50, CodeLines: 1, CompletedAt: base},
		{SubmissionID: "sub-b", UserID: 1, SubmittedAt: base.Add(time.Hour), QualityScore: 60, CodeLines: 1, CompletedAt: base},
		{SubmissionID: "sub-x", UserID: 2, SubmittedAt: base, QualityScore: 10, CodeLines: 1, CompletedAt: base},
	} {
		o := outcome
		require.NoError(t, repo.PutOutcome(ctx, &o))
	}

	all, err := repo.ListOutcomesByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"sub-a", "sub-b", "sub-c"}, []string{all[0].SubmissionID, all[1].SubmissionID, all[2].SubmissionID})

	recent, err := repo.ListOutcomesByUser(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "sub-b", recent[0].SubmissionID)
	require.Equal(t, "sub-c", recent[1].SubmissionID)
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/avelio/skillforge-api/internal/dto"
	"github.com/avelio/skillforge-api/internal/handler"
	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/service"
)

type mockOrchestrator struct {
	lastInput service.SubmissionInput
	result    service.SubmissionResult
	err       error

	submission models.Submission
	outcome    *models.AnalysisOutcome
	getErr     error
}

func (m *mockOrchestrator) Submit(_ context.Context, input service.SubmissionInput) (service.SubmissionResult, error) {
	m.lastInput = input
	if m.err != nil {
		return service.SubmissionResult{}, m.err
	}
	return m.result, nil
}

func (m *mockOrchestrator) GetSubmission(_ context.Context, _ string) (models.Submission, *models.AnalysisOutcome, error) {
	if m.getErr != nil {
		return models.Submission{}, nil, m.getErr
	}
	return m.submission, m.outcome, nil
}

func (m *mockOrchestrator) Reprocess(_ context.Context, _ string) error { return nil }
func (m *mockOrchestrator) Expire(_ context.Context, _ string) error    { return nil }

func newSubmissionApp(orchestrator *mockOrchestrator) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/submissions")
	handler.NewSubmissionHandler(orchestrator, zerolog.New(io.Discard)).Register(group)
	return app
}

func completedResult(id string) service.SubmissionResult {
	return service.SubmissionResult{
		Status: models.SubmissionStatusCompleted,
		Submission: models.Submission{
			ID:          id,
			OwnerID:     42,
			Language:    "python",
			Status:      models.SubmissionStatusCompleted,
			SubmittedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestSubmissionHandler_SubmitCompleted(t *testing.T) {
	orchestrator := &mockOrchestrator{result: completedResult("sub-1")}
	app := newSubmissionApp(orchestrator)

	body, err := json.Marshal(dto.SubmitCodeRequest{UserID: 42, Language: "python", Code: "print(1)"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, uint(42), orchestrator.lastInput.UserID)
	require.Equal(t, "python", orchestrator.lastInput.Language)

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Success)
	require.Equal(t, models.SubmissionStatusCompleted, payload.Data.Status)
}

func TestSubmissionHandler_SubmitQueuedReturns202(t *testing.T) {
	result := completedResult("sub-1")
	result.Status = models.SubmissionStatusQueued
	result.Submission.Status = models.SubmissionStatusQueued
	orchestrator := &mockOrchestrator{result: result}
	app := newSubmissionApp(orchestrator)

	body, err := json.Marshal(dto.SubmitCodeRequest{UserID: 42, Language: "python", Code: "print(1)"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
}

func TestSubmissionHandler_SubmitErroredReturns422(t *testing.T) {
	result := completedResult("sub-1")
	result.Status = models.SubmissionStatusErrored
	result.ErrorKind = "rejected"
	orchestrator := &mockOrchestrator{result: result}
	app := newSubmissionApp(orchestrator)

	body, err := json.Marshal(dto.SubmitCodeRequest{UserID: 42, Language: "python", Code: "import os"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSubmissionHandler_SubmitUnsupportedLanguage(t *testing.T) {
	orchestrator := &mockOrchestrator{err: service.ErrUnsupportedLanguage}
	app := newSubmissionApp(orchestrator)

	body, err := json.Marshal(dto.SubmitCodeRequest{UserID: 42, Language: "cobol", Code: "MOVE A TO B"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandler_GetNotFound(t *testing.T) {
	orchestrator := &mockOrchestrator{getErr: service.ErrSubmissionNotFound}
	app := newSubmissionApp(orchestrator)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandler_GetIncludesOutcome(t *testing.T) {
	orchestrator := &mockOrchestrator{
		submission: models.Submission{ID: "sub-1", OwnerID: 42, Status: models.SubmissionStatusCompleted},
		outcome: &models.AnalysisOutcome{
			SubmissionID: "sub-1",
			UserID:       42,
			QualityScore: 80,
			WeakAreas:    []string{"loops"},
		},
	}
	app := newSubmissionApp(orchestrator)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/sub-1", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data struct {
			Outcome *struct {
				QualityScore float64  `json:"quality_score"`
				WeakAreas    []string `json:"weak_areas"`
			} `json:"outcome"`
		} `json:"data"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NotNil(t, payload.Data.Outcome)
	require.InDelta(t, 80, payload.Data.Outcome.QualityScore, 1e-9)
	require.Equal(t, []string{"loops"}, payload.Data.Outcome.WeakAreas)
}

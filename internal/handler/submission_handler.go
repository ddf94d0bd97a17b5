package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/avelio/skillforge-api/internal/dto"
	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/service"
	"github.com/avelio/skillforge-api/internal/utils"
)

// SubmissionHandler manages code submission endpoints.
type SubmissionHandler struct {
	orchestrator service.Orchestrator
	logger       zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(orchestrator service.Orchestrator, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		orchestrator: orchestrator,
		logger:       logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("/:id", h.get)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	var payload dto.SubmitCodeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.orchestrator.Submit(c.Context(), service.SubmissionInput{
		UserID:   payload.UserID,
		Code:     payload.Code,
		Language: payload.Language,
		Topic:    payload.Topic,
	})
	if err != nil {
		return h.handleError(c, err)
	}

	response := dto.NewSubmissionResultResponse(result)
	switch result.Status {
	case models.SubmissionStatusQueued:
		return utils.SendAccepted(c, "analysis deferred, submission queued for reprocessing", response)
	case models.SubmissionStatusErrored:
		return utils.SendSuccessWithStatus(c, fiber.StatusUnprocessableEntity, "submission could not be analyzed", response)
	default:
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission analyzed", response)
	}
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "submission id is required")
	}

	submission, outcome, err := h.orchestrator.GetSubmission(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	response := dto.SubmissionResultResponse{
		Status:       submission.Status,
		Submission:   dto.NewSubmissionResponse(submission),
		ErrorKind:    submission.ErrorKind,
		ErrorMessage: submission.ErrorDetail,
	}
	if outcome != nil {
		converted := dto.NewAnalysisOutcomeResponse(*outcome)
		response.Outcome = &converted
	}

	return utils.SendSuccess(c, "submission retrieved", response)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, "unsupported language")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

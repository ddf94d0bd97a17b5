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

// PracticeHandler manages weak-area and practice endpoints.
type PracticeHandler struct {
	service   service.PracticeService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPracticeHandler builds a practice handler instance.
func NewPracticeHandler(practice service.PracticeService, validate *validator.Validate, logger zerolog.Logger) *PracticeHandler {
	return &PracticeHandler{
		service:   practice,
		validator: validate,
		logger:    logger.With().Str("component", "practice_handler").Logger(),
	}
}

// Register attaches the routes. users is the per-user read surface, practice
// the attempt/catalog surface.
func (h *PracticeHandler) Register(users fiber.Router, practice fiber.Router) {
	users.Get("/:id/weak-areas", h.weakAreas)
	users.Get("/:id/practice-set", h.practiceSet)
	practice.Post("/attempts", h.recordAttempt)
	practice.Post("/catalog", h.seedCatalog)
}

func (h *PracticeHandler) weakAreas(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ranked, err := h.service.WeakAreas(c.Context(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "weak areas retrieved", dto.NewWeakAreaResponses(ranked))
}

func (h *PracticeHandler) practiceSet(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	count, err := parseQueryInt(c, "count", 0)
	if err != nil || count < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "count must be a non-negative integer")
	}

	set, err := h.service.GeneratePracticeSet(c.Context(), userID, count)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "practice set generated", dto.NewPracticeSetResponse(set))
}

func (h *PracticeHandler) recordAttempt(c *fiber.Ctx) error {
	var payload dto.RecordAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	state, err := h.service.RecordAttempt(c.Context(), payload.UserID, payload.ProblemID, *payload.Passed)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt recorded", dto.NewGrowthStateResponse(state))
}

func (h *PracticeHandler) seedCatalog(c *fiber.Ctx) error {
	var payload dto.SeedCatalogRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	problems := make([]models.PracticeProblem, 0, len(payload.Problems))
	for _, entry := range payload.Problems {
		problems = append(problems, entry.ToModel())
	}

	count, err := h.service.SeedCatalog(c.Context(), problems)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "catalog seeded", fiber.Map{"seeded": count})
}

func (h *PracticeHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrProblemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "practice problem not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

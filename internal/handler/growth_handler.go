package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/avelio/skillforge-api/internal/dto"
	"github.com/avelio/skillforge-api/internal/repository"
	"github.com/avelio/skillforge-api/internal/service"
	"github.com/avelio/skillforge-api/internal/utils"
)

// GrowthHandler manages growth score endpoints.
type GrowthHandler struct {
	service   service.GrowthReportingService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGrowthHandler builds a growth handler instance.
func NewGrowthHandler(growth service.GrowthReportingService, validate *validator.Validate, logger zerolog.Logger) *GrowthHandler {
	return &GrowthHandler{
		service:   growth,
		validator: validate,
		logger:    logger.With().Str("component", "growth_handler").Logger(),
	}
}

// Register attaches the routes. users carries the per-user reads, growth the
// administrative week-close endpoint.
func (h *GrowthHandler) Register(users fiber.Router, growth fiber.Router) {
	users.Get("/:id/growth", h.currentScore)
	users.Get("/:id/growth/trend", h.trend)
	growth.Post("/close-week", h.closeWeek)
}

func (h *GrowthHandler) currentScore(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	state, err := h.service.CurrentScore(c.Context(), userID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "growth score retrieved", dto.NewGrowthStateResponse(state))
}

func (h *GrowthHandler) trend(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	weeks, err := parseQueryInt(c, "weeks", 8)
	if err != nil || weeks <= 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "weeks must be a positive integer")
	}

	report, err := h.service.Trend(c.Context(), userID, weeks)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "growth trend retrieved", dto.NewTrendResponse(report))
}

func (h *GrowthHandler) closeWeek(c *fiber.Ctx) error {
	var payload dto.CloseWeekRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	snapshot, err := h.service.CloseWeek(c.Context(), payload.UserID, payload.WeekStart)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "week closed", dto.NewGrowthSnapshotResponse(snapshot))
}

func (h *GrowthHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "user not found")
	case errors.Is(err, repository.ErrNonMonotonicWeek):
		return utils.SendError(c, fiber.StatusConflict, "week start precedes the latest closed week")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/middleware"
	"github.com/ultracoach/ultracoach-api/internal/service"
	"github.com/ultracoach/ultracoach-api/internal/utils"
)

// WorkoutHandler wires the workout endpoints.
type WorkoutHandler struct {
	service service.WorkoutService
	logger  zerolog.Logger
}

// NewWorkoutHandler creates a workout handler instance.
func NewWorkoutHandler(service service.WorkoutService, logger zerolog.Logger) *WorkoutHandler {
	return &WorkoutHandler{
		service: service,
		logger:  logger.With().Str("component", "workout_handler").Logger(),
	}
}

// Register binds workout routes under the provided router group.
func (h *WorkoutHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Patch("/:id/status", h.updateStatus)
}

func (h *WorkoutHandler) list(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}

	// Coaches may list a specific runner's workouts; runners see their own.
	runnerID := c.Query("runnerId")
	if runnerID == "" || middleware.UserRole(c) != "coach" {
		runnerID = userID
	}

	response, err := h.service.ListByRunner(requestContext(c), runnerID)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	if response.CacheHit {
		c.Set("X-Cache-Hit", "true")
	}

	return utils.SendSuccess(c, "workouts retrieved", response)
}

func (h *WorkoutHandler) create(c *fiber.Ctx) error {
	if middleware.UserID(c) == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}

	var payload dto.WorkoutCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	workout, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "workout scheduled", workout)
}

func (h *WorkoutHandler) updateStatus(c *fiber.Ctx) error {
	if middleware.UserID(c) == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}

	var payload dto.WorkoutStatusUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	workout, err := h.service.UpdateStatus(requestContext(c), c.Params("id"), payload)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "workout not found")
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccess(c, "workout status updated", workout)
}

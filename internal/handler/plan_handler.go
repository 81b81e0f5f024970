package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/middleware"
	"github.com/ultracoach/ultracoach-api/internal/models"
	"github.com/ultracoach/ultracoach-api/internal/service"
	"github.com/ultracoach/ultracoach-api/internal/utils"
)

// PlanHandler wires the training plan endpoints.
type PlanHandler struct {
	service service.TrainingPlanService
	logger  zerolog.Logger
}

// NewPlanHandler creates a plan handler instance.
func NewPlanHandler(service service.TrainingPlanService, logger zerolog.Logger) *PlanHandler {
	return &PlanHandler{
		service: service,
		logger:  logger.With().Str("component", "plan_handler").Logger(),
	}
}

// Register binds plan routes under the provided router group.
func (h *PlanHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Post("/", h.create)
}

func (h *PlanHandler) list(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}

	role := models.RoleRunner
	if middleware.UserRole(c) == "coach" {
		role = models.RoleCoach
	}

	plans, err := h.service.ListForUser(requestContext(c), userID, role)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "training plans retrieved", plans)
}

func (h *PlanHandler) get(c *fiber.Ctx) error {
	if middleware.UserID(c) == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}

	plan, err := h.service.Get(requestContext(c), c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "plan not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "training plan retrieved", plan)
}

func (h *PlanHandler) create(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}
	if middleware.UserRole(c) != "coach" {
		return utils.SendError(c, fiber.StatusForbidden, "only coaches may create plans")
	}

	var payload dto.PlanCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	plan, err := h.service.Create(requestContext(c), userID, payload)
	if err != nil {
		if errors.Is(err, service.ErrNotAuthorised) {
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "training plan created", plan)
}

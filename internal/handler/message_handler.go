package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/middleware"
	"github.com/ultracoach/ultracoach-api/internal/service"
	"github.com/ultracoach/ultracoach-api/internal/utils"
)

// MessageHandler wires the chat message REST endpoints.
type MessageHandler struct {
	service service.MessageService
	logger  zerolog.Logger
}

// NewMessageHandler creates a message handler instance.
func NewMessageHandler(service service.MessageService, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service: service,
		logger:  logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds message routes under the provided router group.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Get("/", h.history)
	router.Post("/", h.send)
	router.Post("/:id/read", h.markRead)
}

func (h *MessageHandler) history(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}

	var beforePtr *time.Time
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		beforePtr = &parsed
	}

	limit := 0
	if limitRaw := c.Query("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	query := dto.MessageHistoryQuery{
		RecipientID: c.Query("recipientId"),
		Before:      beforePtr,
		Limit:       limit,
	}

	messages, err := h.service.History(requestContext(c), userID, query)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccess(c, "message history", fiber.Map{"messages": messages})
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}

	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.service.Send(requestContext(c), userID, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAuthorised):
			return utils.SendError(c, fiber.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrWorkoutNotFound):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.Warn().Err(err).Str("sender_id", userID).Msg("failed to send message")
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message delivered", message)
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "session required")
	}

	message, err := h.service.MarkRead(requestContext(c), c.Params("id"), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "message not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "message marked read", message)
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

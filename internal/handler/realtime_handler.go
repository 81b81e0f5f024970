package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/observability"
	"github.com/ultracoach/ultracoach-api/internal/service"
)

const realtimeKeepalive = 30 * time.Second

// realtimeFrame is the envelope written to realtime websocket clients.
type realtimeFrame struct {
	Kind    string               `json:"kind"`
	Typing  *dto.TypingSignal    `json:"typing,omitempty"`
	Message *dto.MessageResponse `json:"message,omitempty"`
}

// RealtimeHandler serves the out-of-band channel carrying typing signals and
// push delivery of new messages for the connected user.
type RealtimeHandler struct {
	typing   service.TypingService
	messages service.MessageService
	logger   zerolog.Logger
}

// NewRealtimeHandler creates a realtime websocket handler instance.
func NewRealtimeHandler(typing service.TypingService, messages service.MessageService, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		typing:   typing,
		messages: messages,
		logger:   logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket upgrade route under the provided router group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	observability.TypingConnections().Inc()
	h.logger.Info().Str("user_id", userID).Msg("realtime websocket connected")

	typingCh, cancelTyping := h.typing.Subscribe(userID)
	defer cancelTyping()
	messageCh, cancelMessages := h.messages.Subscribe(userID)
	defer cancelMessages()

	done := make(chan struct{})
	go h.writer(conn, typingCh, messageCh, done)

	h.reader(conn, userID)
	close(done)

	h.logger.Info().Str("user_id", userID).Msg("realtime websocket disconnected")
}

// reader consumes inbound typing signals from the connected client and relays
// them; the connected user is always the sender regardless of the frame body.
func (h *RealtimeHandler) reader(conn *websocket.Conn, userID string) {
	for {
		var signal dto.TypingSignal
		if err := conn.ReadJSON(&signal); err != nil {
			h.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}

		signal.SenderID = userID
		if err := h.typing.Signal(context.Background(), signal); err != nil {
			h.logger.Warn().Err(err).Msg("failed to relay typing signal")
		}
	}
}

func (h *RealtimeHandler) writer(conn *websocket.Conn, typingCh <-chan dto.TypingSignal, messageCh <-chan dto.MessageResponse, done <-chan struct{}) {
	keepalive := time.NewTicker(realtimeKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case signal, ok := <-typingCh:
			if !ok {
				return
			}
			frame := realtimeFrame{Kind: "typing", Typing: &signal}
			if err := conn.WriteJSON(frame); err != nil {
				h.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case message, ok := <-messageCh:
			if !ok {
				return
			}
			frame := realtimeFrame{Kind: "message", Message: &message}
			if err := conn.WriteJSON(frame); err != nil {
				h.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-keepalive.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				h.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-done:
			return
		}
	}
}

func websocketUserID(conn *websocket.Conn) string {
	if value := conn.Locals("user_id"); value != nil {
		if id, ok := value.(string); ok {
			return strings.TrimSpace(id)
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
	return ""
}

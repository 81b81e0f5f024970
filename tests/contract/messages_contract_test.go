package contract_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/handler"
)

type stubMessageService struct {
	sent dto.MessageResponse
}

func (s stubMessageService) Send(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	return s.sent, nil
}

func (s stubMessageService) History(ctx context.Context, userID string, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error) {
	return []dto.MessageResponse{s.sent}, nil
}

func (s stubMessageService) MarkRead(ctx context.Context, id, recipientID string) (dto.MessageResponse, error) {
	return s.sent, nil
}

func (s stubMessageService) Subscribe(userID string) (<-chan dto.MessageResponse, func()) {
	ch := make(chan dto.MessageResponse)
	return ch, func() { close(ch) }
}

func (s stubMessageService) Start(ctx context.Context) {}

func TestSendMessageContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "message.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	senderID := uuid.New().String()
	recipientID := uuid.New().String()
	serviceStub := stubMessageService{sent: dto.MessageResponse{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     "easy 10k tomorrow",
		Read:        false,
		ContextType: "general",
		CreatedAt:   time.Now().UTC(),
	}}

	messageHandler := handler.NewMessageHandler(serviceStub, zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v1/messages", func(c *fiber.Ctx) error {
		c.Locals("user_id", senderID)
		return c.Next()
	})
	messageHandler.Register(group)

	payload, err := json.Marshal(dto.MessageSendRequest{
		RecipientID: recipientID,
		Content:     "easy 10k tomorrow",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.NoError(t, schema.Validate(decoded))
}

func TestMessageHistoryContract(t *testing.T) {
	senderID := uuid.New().String()
	serviceStub := stubMessageService{sent: dto.MessageResponse{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: uuid.New().String(),
		Content:     "how did the tempo go?",
		ContextType: "workout_question",
		CreatedAt:   time.Now().UTC(),
	}}

	messageHandler := handler.NewMessageHandler(serviceStub, zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v1/messages", func(c *fiber.Ctx) error {
		c.Locals("user_id", senderID)
		return c.Next()
	})
	messageHandler.Register(group)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Messages []dto.MessageResponse `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.Len(t, envelope.Data.Messages, 1)
	require.Equal(t, "workout_question", envelope.Data.Messages[0].ContextType)
}

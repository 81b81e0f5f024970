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
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/handler"
	"github.com/ultracoach/ultracoach-api/internal/service"
)

type mockMessageService struct {
	lastSender  string
	lastPayload dto.MessageSendRequest
	lastQuery   dto.MessageHistoryQuery
	response    dto.MessageResponse
	history     []dto.MessageResponse
	sendErr     error
	markReadErr error
}

func (m *mockMessageService) Send(_ context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	m.lastSender = senderID
	m.lastPayload = payload
	if m.sendErr != nil {
		return dto.MessageResponse{}, m.sendErr
	}
	return m.response, nil
}

func (m *mockMessageService) History(_ context.Context, _ string, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error) {
	m.lastQuery = query
	return m.history, nil
}

func (m *mockMessageService) MarkRead(_ context.Context, _, _ string) (dto.MessageResponse, error) {
	if m.markReadErr != nil {
		return dto.MessageResponse{}, m.markReadErr
	}
	return m.response, nil
}

func (m *mockMessageService) Subscribe(string) (<-chan dto.MessageResponse, func()) {
	ch := make(chan dto.MessageResponse)
	return ch, func() { close(ch) }
}

func (m *mockMessageService) Start(context.Context) {}

func newMessageApp(svc service.MessageService, userID string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/messages", func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})
	handler.NewMessageHandler(svc, zerolog.New(io.Discard)).Register(group)
	return app
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestMessageHandler_SendSuccess(t *testing.T) {
	senderID := uuid.New().String()
	svc := &mockMessageService{response: dto.MessageResponse{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: uuid.New().String(),
		Content:     "easy run tomorrow",
		ContextType: "general",
		CreatedAt:   time.Now().UTC(),
	}}
	app := newMessageApp(svc, senderID)

	body, err := json.Marshal(dto.MessageSendRequest{
		RecipientID: svc.response.RecipientID,
		Content:     "easy run tomorrow",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, senderID, svc.lastSender)

	var envelope struct {
		Success bool                `json:"success"`
		Data    dto.MessageResponse `json:"data"`
		Message string              `json:"message"`
	}
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Success)
	require.Equal(t, "message delivered", envelope.Message)
	require.Equal(t, svc.response.ID, envelope.Data.ID)
}

func TestMessageHandler_SendWithoutSession(t *testing.T) {
	app := newMessageApp(&mockMessageService{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMessageHandler_SendUnrelatedPair(t *testing.T) {
	svc := &mockMessageService{sendErr: service.ErrNotAuthorised}
	app := newMessageApp(svc, uuid.New().String())

	body, _ := json.Marshal(dto.MessageSendRequest{RecipientID: uuid.New().String(), Content: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestMessageHandler_SendUnknownWorkout(t *testing.T) {
	svc := &mockMessageService{sendErr: service.ErrWorkoutNotFound}
	app := newMessageApp(svc, uuid.New().String())

	body, _ := json.Marshal(dto.MessageSendRequest{RecipientID: uuid.New().String(), Content: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestMessageHandler_HistoryQueryParsing(t *testing.T) {
	svc := &mockMessageService{history: []dto.MessageResponse{}}
	app := newMessageApp(svc, uuid.New().String())

	recipientID := uuid.New().String()
	before := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	target := "/api/v1/messages?recipientId=" + recipientID +
		"&before=" + before.Format(time.RFC3339) + "&limit=25"

	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, recipientID, svc.lastQuery.RecipientID)
	require.NotNil(t, svc.lastQuery.Before)
	require.True(t, svc.lastQuery.Before.Equal(before))
	require.Equal(t, 25, svc.lastQuery.Limit)
}

func TestMessageHandler_HistoryRejectsBadTimestamp(t *testing.T) {
	app := newMessageApp(&mockMessageService{}, uuid.New().String())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages?before=yesterday", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMessageHandler_MarkReadNotFound(t *testing.T) {
	svc := &mockMessageService{markReadErr: gorm.ErrRecordNotFound}
	app := newMessageApp(svc, uuid.New().String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/"+uuid.New().String()+"/read", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

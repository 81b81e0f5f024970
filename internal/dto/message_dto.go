package dto

import (
	"time"

	"github.com/ultracoach/ultracoach-api/internal/models"
)

// MessageSendRequest is the payload posted by clients to deliver a chat message.
// ClientRef carries the provisional id assigned by offline-capable clients so
// they can reconcile the delivered message with their local copy.
type MessageSendRequest struct {
	RecipientID string  `json:"recipient_id" validate:"required,uuid4"`
	Content     string  `json:"content" validate:"required,min=1,max=4000"`
	WorkoutID   *string `json:"workout_id" validate:"omitempty,uuid4"`
	ContextType string  `json:"context_type" validate:"omitempty,oneof=general workout_reference workout_feedback workout_question workout_update workout_plan_change"`
	ClientRef   string  `json:"client_ref" validate:"omitempty,max=64"`
}

// MessageHistoryQuery represents query filters for retrieving message history.
type MessageHistoryQuery struct {
	RecipientID string     `query:"recipientId" validate:"omitempty,uuid4"`
	Before      *time.Time `query:"before"`
	Limit       int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	Read        bool      `json:"read"`
	WorkoutID   *string   `json:"workout_id,omitempty"`
	ContextType string    `json:"context_type"`
	ClientRef   string    `json:"client_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:          message.ID,
		SenderID:    message.SenderID,
		RecipientID: message.RecipientID,
		Content:     message.Content,
		Read:        message.Read,
		WorkoutID:   message.WorkoutID,
		ContextType: string(message.ContextType),
		ClientRef:   message.ClientRef,
		CreatedAt:   message.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// TypingSignal is the frame exchanged over the typing websocket channel.
type TypingSignal struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id" validate:"required,uuid4"`
	IsTyping    bool   `json:"is_typing"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

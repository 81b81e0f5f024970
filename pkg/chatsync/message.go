// Package chatsync implements the client-side messaging engine used by
// UltraCoach front ends: a canonical message store with per-conversation
// projections, an offline send queue with bounded retry, a connection
// monitor driving queue flushes, typing presence and workout reference
// resolution. All state lives in explicit injected containers; mutation
// goes through their exported operations only.
package chatsync

import "time"

// ContextType tags what a chat message is about.
type ContextType string

const (
	ContextGeneral         ContextType = "general"
	ContextWorkoutRef      ContextType = "workout_reference"
	ContextWorkoutFeedback ContextType = "workout_feedback"
	ContextWorkoutQuestion ContextType = "workout_question"
	ContextWorkoutUpdate   ContextType = "workout_update"
	ContextPlanChange      ContextType = "workout_plan_change"
)

// IsValid reports whether the context is one of the known variants.
func (c ContextType) IsValid() bool {
	switch c {
	case ContextGeneral, ContextWorkoutRef, ContextWorkoutFeedback,
		ContextWorkoutQuestion, ContextWorkoutUpdate, ContextPlanChange:
		return true
	}
	return false
}

// Message is a chat message as known to the client. Delivered messages are
// immutable except for the read flag, which only transitions false to true.
// A provisional (optimistic) message carries its client-generated id in both
// ID and ClientRef until the server copy arrives and replaces it.
type Message struct {
	ID          string      `json:"id"`
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id"`
	Content     string      `json:"content"`
	Read        bool        `json:"read"`
	WorkoutID   string      `json:"workout_id,omitempty"`
	ContextType ContextType `json:"context_type"`
	ClientRef   string      `json:"client_ref,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Provisional reports whether the message is a local optimistic copy that
// has not been confirmed by the server yet.
func (m Message) Provisional() bool {
	return m.ClientRef != "" && m.ClientRef == m.ID
}

// OutgoingMessage is the payload handed to the transport for delivery.
type OutgoingMessage struct {
	RecipientID string      `json:"recipient_id"`
	Content     string      `json:"content"`
	WorkoutID   string      `json:"workout_id,omitempty"`
	ContextType ContextType `json:"context_type,omitempty"`
	ClientRef   string      `json:"client_ref,omitempty"`
}

// PendingMessage is a message composed while disconnected, waiting in the
// offline queue. RetryCount is monotonically non-decreasing until removal.
type PendingMessage struct {
	ID          string      `json:"id"`
	RecipientID string      `json:"recipient_id"`
	Content     string      `json:"content"`
	WorkoutID   string      `json:"workout_id,omitempty"`
	ContextType ContextType `json:"context_type,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	RetryCount  int         `json:"retry_count"`
}

// WorkoutSummary is the subset of a workout needed to render a message's
// workout reference.
type WorkoutSummary struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Date              time.Time `json:"date"`
	PlannedDistanceKm float64   `json:"planned_distance_km"`
	Status            string    `json:"status"`
}

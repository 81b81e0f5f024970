package models

import "time"

// MessageContext tags what a chat message is about.
type MessageContext string

const (
	ContextGeneral         MessageContext = "general"
	ContextWorkoutRef      MessageContext = "workout_reference"
	ContextWorkoutFeedback MessageContext = "workout_feedback"
	ContextWorkoutQuestion MessageContext = "workout_question"
	ContextWorkoutUpdate   MessageContext = "workout_update"
	ContextPlanChange      MessageContext = "workout_plan_change"
)

// IsValid reports whether the context is one of the known variants.
func (c MessageContext) IsValid() bool {
	switch c {
	case ContextGeneral, ContextWorkoutRef, ContextWorkoutFeedback,
		ContextWorkoutQuestion, ContextWorkoutUpdate, ContextPlanChange:
		return true
	}
	return false
}

// Message represents a single chat payload between a coach and a runner.
// Messages are immutable once delivered except for the read flag, which
// only ever transitions false to true.
type Message struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID    string         `gorm:"type:uuid;index" json:"sender_id"`
	RecipientID string         `gorm:"type:uuid;index" json:"recipient_id"`
	Content     string         `gorm:"type:text" json:"content"`
	Read        bool           `gorm:"not null;default:false" json:"read"`
	WorkoutID   *string        `gorm:"type:uuid;index" json:"workout_id,omitempty"`
	ContextType MessageContext `gorm:"size:32;default:general" json:"context_type"`
	ClientRef   string         `gorm:"size:64;index" json:"client_ref,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Notification represents a stored notice targeted at a specific user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;index" json:"user_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

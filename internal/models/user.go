package models

import "time"

// Role identifies which side of a coaching relationship a user is on.
type Role string

const (
	RoleCoach  Role = "coach"
	RoleRunner Role = "runner"
)

// User represents an authenticated coach or runner account.
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex" json:"email"`
	FullName  string    `gorm:"size:255" json:"full_name"`
	Role      Role      `gorm:"size:16;index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RelationshipStatus tracks the lifecycle of a coach-runner pairing.
type RelationshipStatus string

const (
	RelationshipPending RelationshipStatus = "pending"
	RelationshipActive  RelationshipStatus = "active"
	RelationshipEnded   RelationshipStatus = "ended"
)

// CoachRunnerRelationship links a coach to a runner they train.
type CoachRunnerRelationship struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	CoachID   string             `gorm:"type:uuid;index:idx_coach_runner" json:"coach_id"`
	RunnerID  string             `gorm:"type:uuid;index:idx_coach_runner" json:"runner_id"`
	Status    RelationshipStatus `gorm:"size:16;default:pending" json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// WorkoutStatus tracks whether a planned workout was carried out.
type WorkoutStatus string

const (
	WorkoutPlanned   WorkoutStatus = "planned"
	WorkoutCompleted WorkoutStatus = "completed"
	WorkoutSkipped   WorkoutStatus = "skipped"
)

// TrainingPlan represents a coach-authored training block for a runner.
type TrainingPlan struct {
	ID          string            `gorm:"type:uuid;primaryKey" json:"id"`
	CoachID     string            `gorm:"type:uuid;index" json:"coach_id"`
	RunnerID    string            `gorm:"type:uuid;index" json:"runner_id"`
	Title       string            `gorm:"size:255;not null" json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Workouts    []Workout         `gorm:"foreignKey:PlanID" json:"workouts,omitempty"`
}

// Workout represents a single scheduled session within a training plan.
type Workout struct {
	ID                 string            `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID             string            `gorm:"type:uuid;index" json:"plan_id"`
	RunnerID           string            `gorm:"type:uuid;index" json:"runner_id"`
	Date               time.Time         `gorm:"index" json:"date"`
	Type               string            `gorm:"size:64" json:"type"`
	PlannedDistanceKm  float64           `json:"planned_distance_km"`
	PlannedDurationMin int               `json:"planned_duration_min"`
	Status             WorkoutStatus     `gorm:"size:16;default:planned" json:"status"`
	Details            datatypes.JSONMap `gorm:"type:json" json:"details"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

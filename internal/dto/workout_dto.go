package dto

import (
	"time"

	"github.com/ultracoach/ultracoach-api/internal/models"
)

// WorkoutCreateRequest is the payload to schedule a workout on a plan.
type WorkoutCreateRequest struct {
	PlanID             string                 `json:"plan_id" validate:"required,uuid4"`
	RunnerID           string                 `json:"runner_id" validate:"required,uuid4"`
	Date               time.Time              `json:"date" validate:"required"`
	Type               string                 `json:"type" validate:"required,max=64"`
	PlannedDistanceKm  float64                `json:"planned_distance_km" validate:"omitempty,min=0"`
	PlannedDurationMin int                    `json:"planned_duration_min" validate:"omitempty,min=0"`
	Details            map[string]interface{} `json:"details"`
}

// WorkoutStatusUpdateRequest transitions a workout's completion status.
type WorkoutStatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=planned completed skipped"`
}

// WorkoutResponse is the serialized representation of a workout.
type WorkoutResponse struct {
	ID                 string                 `json:"id"`
	PlanID             string                 `json:"plan_id"`
	RunnerID           string                 `json:"runner_id"`
	Date               time.Time              `json:"date"`
	Type               string                 `json:"type"`
	PlannedDistanceKm  float64                `json:"planned_distance_km"`
	PlannedDurationMin int                    `json:"planned_duration_min"`
	Status             string                 `json:"status"`
	Details            map[string]interface{} `json:"details,omitempty"`
}

// WorkoutListResponse wraps a workout list with cache metadata.
type WorkoutListResponse struct {
	Items    []WorkoutResponse `json:"items"`
	CacheHit bool              `json:"cache_hit"`
}

// NewWorkoutResponse converts a model into a DTO.
func NewWorkoutResponse(workout models.Workout) WorkoutResponse {
	response := WorkoutResponse{
		ID:                 workout.ID,
		PlanID:             workout.PlanID,
		RunnerID:           workout.RunnerID,
		Date:               workout.Date,
		Type:               workout.Type,
		PlannedDistanceKm:  workout.PlannedDistanceKm,
		PlannedDurationMin: workout.PlannedDurationMin,
		Status:             string(workout.Status),
	}
	if workout.Details != nil {
		response.Details = map[string]interface{}(workout.Details)
	}
	return response
}

// NewWorkoutResponseSlice converts a slice of models into DTOs.
func NewWorkoutResponseSlice(workouts []models.Workout) []WorkoutResponse {
	out := make([]WorkoutResponse, 0, len(workouts))
	for _, workout := range workouts {
		out = append(out, NewWorkoutResponse(workout))
	}
	return out
}

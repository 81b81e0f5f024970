package dto

import (
	"time"

	"github.com/ultracoach/ultracoach-api/internal/models"
)

// PlanCreateRequest is the payload for a coach to create a training plan.
type PlanCreateRequest struct {
	RunnerID    string                 `json:"runner_id" validate:"required,uuid4"`
	Title       string                 `json:"title" validate:"required,min=3,max=255"`
	Description string                 `json:"description" validate:"omitempty,max=5000"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// PlanResponse describes a training plan returned by the API.
type PlanResponse struct {
	ID          string                 `json:"id"`
	CoachID     string                 `json:"coach_id"`
	RunnerID    string                 `json:"runner_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Workouts    []WorkoutResponse      `json:"workouts,omitempty"`
}

// NewPlanResponse converts a model into a DTO including workouts when preloaded.
func NewPlanResponse(plan models.TrainingPlan) PlanResponse {
	response := PlanResponse{
		ID:          plan.ID,
		CoachID:     plan.CoachID,
		RunnerID:    plan.RunnerID,
		Title:       plan.Title,
		Description: plan.Description,
		CreatedAt:   plan.CreatedAt,
	}
	if plan.Metadata != nil {
		response.Metadata = map[string]interface{}(plan.Metadata)
	}
	if len(plan.Workouts) > 0 {
		response.Workouts = NewWorkoutResponseSlice(plan.Workouts)
	}
	return response
}

// NewPlanResponseSlice converts a slice of plans to DTOs.
func NewPlanResponseSlice(plans []models.TrainingPlan) []PlanResponse {
	out := make([]PlanResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, NewPlanResponse(plan))
	}
	return out
}

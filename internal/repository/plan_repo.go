package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ultracoach/ultracoach-api/internal/models"
)

// TrainingPlanRepository persists coach-authored training plans.
type TrainingPlanRepository interface {
	Save(ctx context.Context, plan *models.TrainingPlan) error
	GetByID(ctx context.Context, id string) (models.TrainingPlan, error)
	ListByCoach(ctx context.Context, coachID string) ([]models.TrainingPlan, error)
	ListByRunner(ctx context.Context, runnerID string) ([]models.TrainingPlan, error)
}

type trainingPlanRepository struct {
	db *gorm.DB
}

// NewTrainingPlanRepository constructs a plan repository backed by GORM.
func NewTrainingPlanRepository(db *gorm.DB) TrainingPlanRepository {
	return &trainingPlanRepository{db: db}
}

func (r *trainingPlanRepository) Save(ctx context.Context, plan *models.TrainingPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *trainingPlanRepository) GetByID(ctx context.Context, id string) (models.TrainingPlan, error) {
	var plan models.TrainingPlan
	if err := r.db.WithContext(ctx).Preload("Workouts").First(&plan, "id = ?", id).Error; err != nil {
		return models.TrainingPlan{}, err
	}
	return plan, nil
}

func (r *trainingPlanRepository) ListByCoach(ctx context.Context, coachID string) ([]models.TrainingPlan, error) {
	var plans []models.TrainingPlan
	if err := r.db.WithContext(ctx).Where("coach_id = ?", coachID).Order("created_at DESC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *trainingPlanRepository) ListByRunner(ctx context.Context, runnerID string) ([]models.TrainingPlan, error) {
	var plans []models.TrainingPlan
	if err := r.db.WithContext(ctx).Where("runner_id = ?", runnerID).Order("created_at DESC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

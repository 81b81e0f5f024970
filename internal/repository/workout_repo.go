package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ultracoach/ultracoach-api/internal/models"
)

// WorkoutRepository persists scheduled workouts.
type WorkoutRepository interface {
	Save(ctx context.Context, workout *models.Workout) error
	GetByID(ctx context.Context, id string) (models.Workout, error)
	ListByRunner(ctx context.Context, runnerID string, from time.Time, limit int) ([]models.Workout, error)
	UpdateStatus(ctx context.Context, id string, status models.WorkoutStatus) (models.Workout, error)
}

type workoutRepository struct {
	db *gorm.DB
}

// NewWorkoutRepository constructs a workout repository backed by GORM.
func NewWorkoutRepository(db *gorm.DB) WorkoutRepository {
	return &workoutRepository{db: db}
}

func (r *workoutRepository) Save(ctx context.Context, workout *models.Workout) error {
	if workout.ID == "" {
		workout.ID = uuid.NewString()
	}
	if workout.Status == "" {
		workout.Status = models.WorkoutPlanned
	}
	return r.db.WithContext(ctx).Create(workout).Error
}

func (r *workoutRepository) GetByID(ctx context.Context, id string) (models.Workout, error) {
	var workout models.Workout
	if err := r.db.WithContext(ctx).First(&workout, "id = ?", id).Error; err != nil {
		return models.Workout{}, err
	}
	return workout, nil
}

func (r *workoutRepository) ListByRunner(ctx context.Context, runnerID string, from time.Time, limit int) ([]models.Workout, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Where("runner_id = ?", runnerID)
	if !from.IsZero() {
		query = query.Where("date >= ?", from)
	}

	var workouts []models.Workout
	if err := query.Order("date ASC").Limit(limit).Find(&workouts).Error; err != nil {
		return nil, err
	}

	return workouts, nil
}

func (r *workoutRepository) UpdateStatus(ctx context.Context, id string, status models.WorkoutStatus) (models.Workout, error) {
	var workout models.Workout
	if err := r.db.WithContext(ctx).First(&workout, "id = ?", id).Error; err != nil {
		return models.Workout{}, err
	}

	workout.Status = status
	if err := r.db.WithContext(ctx).Model(&workout).Update("status", status).Error; err != nil {
		return models.Workout{}, err
	}

	return workout, nil
}

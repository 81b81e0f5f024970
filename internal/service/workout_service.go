package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/models"
	"github.com/ultracoach/ultracoach-api/internal/repository"
)

// WorkoutService manages scheduled workouts with a cache-aside read path.
type WorkoutService interface {
	Create(ctx context.Context, payload dto.WorkoutCreateRequest) (dto.WorkoutResponse, error)
	ListByRunner(ctx context.Context, runnerID string) (dto.WorkoutListResponse, error)
	UpdateStatus(ctx context.Context, id string, payload dto.WorkoutStatusUpdateRequest) (dto.WorkoutResponse, error)
}

type workoutService struct {
	repo      repository.WorkoutRepository
	redis     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewWorkoutService constructs a workout service.
func NewWorkoutService(repo repository.WorkoutRepository, redisClient *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) WorkoutService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &workoutService{
		repo:      repo,
		redis:     redisClient,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger.With().Str("component", "workout_service").Logger(),
	}
}

func (s *workoutService) Create(ctx context.Context, payload dto.WorkoutCreateRequest) (dto.WorkoutResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorkoutResponse{}, err
	}

	model := models.Workout{
		PlanID:             payload.PlanID,
		RunnerID:           payload.RunnerID,
		Date:               payload.Date,
		Type:               payload.Type,
		PlannedDistanceKm:  payload.PlannedDistanceKm,
		PlannedDurationMin: payload.PlannedDurationMin,
	}
	if payload.Details != nil {
		model.Details = datatypes.JSONMap(payload.Details)
	}

	if err := s.repo.Save(ctx, &model); err != nil {
		return dto.WorkoutResponse{}, err
	}

	s.invalidate(ctx, payload.RunnerID)

	return dto.NewWorkoutResponse(model), nil
}

func (s *workoutService) ListByRunner(ctx context.Context, runnerID string) (dto.WorkoutListResponse, error) {
	if cached, ok := s.readCache(ctx, runnerID); ok {
		return dto.WorkoutListResponse{Items: cached, CacheHit: true}, nil
	}

	workouts, err := s.repo.ListByRunner(ctx, runnerID, time.Time{}, 0)
	if err != nil {
		return dto.WorkoutListResponse{}, err
	}

	items := dto.NewWorkoutResponseSlice(workouts)
	s.writeCache(ctx, runnerID, items)

	return dto.WorkoutListResponse{Items: items}, nil
}

func (s *workoutService) UpdateStatus(ctx context.Context, id string, payload dto.WorkoutStatusUpdateRequest) (dto.WorkoutResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorkoutResponse{}, err
	}

	workout, err := s.repo.UpdateStatus(ctx, id, models.WorkoutStatus(payload.Status))
	if err != nil {
		return dto.WorkoutResponse{}, err
	}

	s.invalidate(ctx, workout.RunnerID)

	return dto.NewWorkoutResponse(workout), nil
}

func (s *workoutService) cacheKey(runnerID string) string {
	return fmt.Sprintf("workouts:runner:%s", runnerID)
}

func (s *workoutService) readCache(ctx context.Context, runnerID string) ([]dto.WorkoutResponse, bool) {
	if s.redis == nil {
		return nil, false
	}

	raw, err := s.redis.Get(ctx, s.cacheKey(runnerID)).Result()
	if err != nil {
		return nil, false
	}

	var items []dto.WorkoutResponse
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached workouts")
		return nil, false
	}

	return items, true
}

func (s *workoutService) writeCache(ctx context.Context, runnerID string, items []dto.WorkoutResponse) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(items)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal workouts for cache")
		return
	}

	if err := s.redis.Set(ctx, s.cacheKey(runnerID), payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache workouts")
	}
}

func (s *workoutService) invalidate(ctx context.Context, runnerID string) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, s.cacheKey(runnerID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate workout cache")
	}
}

package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/models"
	"github.com/ultracoach/ultracoach-api/internal/repository"
)

// TrainingPlanService manages coach-authored training plans.
type TrainingPlanService interface {
	Create(ctx context.Context, coachID string, payload dto.PlanCreateRequest) (dto.PlanResponse, error)
	Get(ctx context.Context, id string) (dto.PlanResponse, error)
	ListForUser(ctx context.Context, userID string, role models.Role) ([]dto.PlanResponse, error)
}

type trainingPlanService struct {
	repo          repository.TrainingPlanRepository
	rels          repository.RelationshipRepository
	notifications repository.NotificationRepository
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewTrainingPlanService constructs a training plan service.
func NewTrainingPlanService(repo repository.TrainingPlanRepository, rels repository.RelationshipRepository, notifications repository.NotificationRepository, validate *validator.Validate, logger zerolog.Logger) TrainingPlanService {
	return &trainingPlanService{
		repo:          repo,
		rels:          rels,
		notifications: notifications,
		validator:     validate,
		logger:        logger.With().Str("component", "plan_service").Logger(),
	}
}

func (s *trainingPlanService) Create(ctx context.Context, coachID string, payload dto.PlanCreateRequest) (dto.PlanResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PlanResponse{}, err
	}

	ok, err := s.rels.ActivePairExists(ctx, coachID, payload.RunnerID)
	if err != nil {
		return dto.PlanResponse{}, err
	}
	if !ok {
		return dto.PlanResponse{}, ErrNotAuthorised
	}

	model := models.TrainingPlan{
		CoachID:     coachID,
		RunnerID:    payload.RunnerID,
		Title:       payload.Title,
		Description: payload.Description,
	}
	if payload.Metadata != nil {
		model.Metadata = datatypes.JSONMap(payload.Metadata)
	}

	if err := s.repo.Save(ctx, &model); err != nil {
		return dto.PlanResponse{}, err
	}

	notification := models.Notification{
		UserID:  payload.RunnerID,
		Type:    "plan_created",
		Message: "Your coach published a new training plan: " + model.Title,
	}
	if err := s.notifications.Save(ctx, &notification); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store plan notification")
	}

	return dto.NewPlanResponse(model), nil
}

func (s *trainingPlanService) Get(ctx context.Context, id string) (dto.PlanResponse, error) {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.PlanResponse{}, err
	}
	return dto.NewPlanResponse(plan), nil
}

func (s *trainingPlanService) ListForUser(ctx context.Context, userID string, role models.Role) ([]dto.PlanResponse, error) {
	var (
		plans []models.TrainingPlan
		err   error
	)
	if role == models.RoleCoach {
		plans, err = s.repo.ListByCoach(ctx, userID)
	} else {
		plans, err = s.repo.ListByRunner(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	return dto.NewPlanResponseSlice(plans), nil
}

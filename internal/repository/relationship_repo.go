package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ultracoach/ultracoach-api/internal/models"
)

// RelationshipRepository tracks coach-runner pairings.
type RelationshipRepository interface {
	Save(ctx context.Context, rel *models.CoachRunnerRelationship) error
	ActivePairExists(ctx context.Context, userA, userB string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]models.CoachRunnerRelationship, error)
	UpdateStatus(ctx context.Context, id uint, status models.RelationshipStatus) error
}

type relationshipRepository struct {
	db *gorm.DB
}

// NewRelationshipRepository constructs a relationship repository backed by GORM.
func NewRelationshipRepository(db *gorm.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

func (r *relationshipRepository) Save(ctx context.Context, rel *models.CoachRunnerRelationship) error {
	if rel.Status == "" {
		rel.Status = models.RelationshipPending
	}
	return r.db.WithContext(ctx).Create(rel).Error
}

// ActivePairExists reports whether an active relationship links the two users
// in either direction.
func (r *relationshipRepository) ActivePairExists(ctx context.Context, userA, userB string) (bool, error) {
	var rel models.CoachRunnerRelationship
	err := r.db.WithContext(ctx).
		Where("status = ?", models.RelationshipActive).
		Where("(coach_id = ? AND runner_id = ?) OR (coach_id = ? AND runner_id = ?)", userA, userB, userB, userA).
		First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *relationshipRepository) ListForUser(ctx context.Context, userID string) ([]models.CoachRunnerRelationship, error) {
	var rels []models.CoachRunnerRelationship
	err := r.db.WithContext(ctx).
		Where("coach_id = ? OR runner_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&rels).Error
	if err != nil {
		return nil, err
	}
	return rels, nil
}

func (r *relationshipRepository) UpdateStatus(ctx context.Context, id uint, status models.RelationshipStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.CoachRunnerRelationship{}).
		Where("id = ?", id).
		Update("status", status).Error
}

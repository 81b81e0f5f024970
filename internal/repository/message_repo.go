package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ultracoach/ultracoach-api/internal/models"
)

// MessageRepository persists chat messages between coaches and runners.
type MessageRepository interface {
	Save(ctx context.Context, message *models.Message) error
	ListForUser(ctx context.Context, userID string, before time.Time, limit int) ([]models.Message, error)
	ListConversation(ctx context.Context, userID, counterpartID string, before time.Time, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, id, recipientID string) (models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Save(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) ListForUser(ctx context.Context, userID string, before time.Time, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Where("sender_id = ? OR recipient_id = ?", userID, userID)
	return listMessages(query, before, limit)
}

func (r *messageRepository) ListConversation(ctx context.Context, userID, counterpartID string, before time.Time, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID, counterpartID, counterpartID, userID,
	)
	return listMessages(query, before, limit)
}

func (r *messageRepository) MarkRead(ctx context.Context, id, recipientID string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&message).Error
	if err != nil {
		return models.Message{}, err
	}

	// The read flag only transitions false to true.
	if !message.Read {
		message.Read = true
		if err := r.db.WithContext(ctx).Model(&message).Update("read", true).Error; err != nil {
			return models.Message{}, err
		}
	}

	return message, nil
}

func listMessages(query *gorm.DB, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.Message
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	// Reverse to chronological order ascending for clients.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/models"
	"github.com/ultracoach/ultracoach-api/internal/observability"
	"github.com/ultracoach/ultracoach-api/internal/repository"
)

const (
	lastMessageTTL    = 30 * time.Minute
	messageBufferSize = 32
)

// ErrNotAuthorised indicates the sender has no active relationship with the recipient.
var ErrNotAuthorised = errors.New("sender not authorised for recipient")

// ErrWorkoutNotFound indicates a referenced workout does not exist.
var ErrWorkoutNotFound = errors.New("referenced workout not found")

// MessageService accepts, persists and fans out chat messages.
type MessageService interface {
	Send(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	History(ctx context.Context, userID string, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error)
	MarkRead(ctx context.Context, id, recipientID string) (dto.MessageResponse, error)
	Subscribe(userID string) (<-chan dto.MessageResponse, func())
	Start(ctx context.Context)
}

type messageService struct {
	repo        repository.MessageRepository
	workouts    repository.WorkoutRepository
	rels        repository.RelationshipRepository
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *messageBroker
	nodeID      string
}

type messageEvent struct {
	Source  string              `json:"source"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// messageBroker fans delivered messages out to per-user subscribers.
type messageBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.MessageResponse]struct{}
}

// NewMessageService creates a message service instance.
func NewMessageService(repo repository.MessageRepository, workouts repository.WorkoutRepository, rels repository.RelationshipRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) MessageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	stream := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		stream = channelBase + ":messages"
		cachePrefix = channelBase + ":messages:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".messages"
	}

	return &messageService{
		repo:        repo,
		workouts:    workouts,
		rels:        rels,
		redis:       redisClient,
		redisStream: stream,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "message_service").Logger(),
		tracer:      otel.Tracer("github.com/ultracoach/ultracoach-api/internal/service/message"),
		sanitizer:   sanitizer,
		broker: &messageBroker{
			subscribers: make(map[string]map[chan dto.MessageResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *messageService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *messageService) Send(ctx context.Context, senderID string, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	payload.RecipientID = strings.TrimSpace(payload.RecipientID)

	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	ok, err := s.rels.ActivePairExists(ctx, senderID, payload.RecipientID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if !ok {
		return dto.MessageResponse{}, ErrNotAuthorised
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if clean == "" {
		return dto.MessageResponse{}, fmt.Errorf("message content empty after sanitization")
	}

	contextType := models.MessageContext(payload.ContextType)
	if contextType == "" {
		contextType = models.ContextGeneral
	}
	if !contextType.IsValid() {
		return dto.MessageResponse{}, fmt.Errorf("unknown message context %q", payload.ContextType)
	}

	if payload.WorkoutID != nil {
		if _, err := s.workouts.GetByID(ctx, *payload.WorkoutID); err != nil {
			return dto.MessageResponse{}, ErrWorkoutNotFound
		}
	}

	attrs := []attribute.KeyValue{
		attribute.String("message.sender_id", senderID),
		attribute.String("message.recipient_id", payload.RecipientID),
		attribute.String("message.context_type", string(contextType)),
	}

	spanCtx, span := s.tracer.Start(ctx, "messages.send", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.Message{
		SenderID:    senderID,
		RecipientID: payload.RecipientID,
		Content:     clean,
		WorkoutID:   payload.WorkoutID,
		ContextType: contextType,
		ClientRef:   strings.TrimSpace(payload.ClientRef),
	}

	if err := s.repo.Save(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(model)
	s.cacheLastMessage(spanCtx, response)
	s.broker.deliver(response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish message event")
	}

	observability.MessagesSent().WithLabelValues(string(contextType)).Inc()

	return response, nil
}

func (s *messageService) History(ctx context.Context, userID string, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	before := time.Time{}
	if query.Before != nil {
		before = *query.Before
	}

	var (
		messages []models.Message
		err      error
	)
	if query.RecipientID != "" {
		messages, err = s.repo.ListConversation(ctx, userID, query.RecipientID, before, query.Limit)
	} else {
		messages, err = s.repo.ListForUser(ctx, userID, before, query.Limit)
	}
	if err != nil {
		return nil, err
	}

	return dto.NewMessageResponseSlice(messages), nil
}

func (s *messageService) MarkRead(ctx context.Context, id, recipientID string) (dto.MessageResponse, error) {
	message, err := s.repo.MarkRead(ctx, id, recipientID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	return dto.NewMessageResponse(message), nil
}

// Subscribe registers a realtime listener for messages addressed to userID.
// The returned cancel func must be called when the listener goes away.
func (s *messageService) Subscribe(userID string) (<-chan dto.MessageResponse, func()) {
	return s.broker.subscribe(userID)
}

func (s *messageService) cacheLastMessage(ctx context.Context, message dto.MessageResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, conversationKey(message.SenderID, message.RecipientID))
	if err := s.redis.Set(ctx, key, payload, lastMessageTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache last message")
	}
}

// conversationKey yields the same key regardless of which side sent.
func conversationKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

func (s *messageService) publish(ctx context.Context, message dto.MessageResponse) error {
	event := messageEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *messageService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("message redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *messageService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "ultracoach-messages", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats message subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain message nats subscription")
		}
	}()
}

func (s *messageService) handleEvent(data []byte) {
	var event messageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid message event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broker.deliver(event.Message)
}

func (b *messageBroker) subscribe(userID string) (<-chan dto.MessageResponse, func()) {
	ch := make(chan dto.MessageResponse, messageBufferSize)

	b.mu.Lock()
	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.MessageResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[userID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subscribers, userID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}

	return ch, cancel
}

func (b *messageBroker) deliver(message dto.MessageResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[message.RecipientID] {
		select {
		case ch <- message:
		default:
			// Slow listener, drop rather than block delivery.
		}
	}
}

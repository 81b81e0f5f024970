package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/observability"
)

const typingBufferSize = 16

// TypingService relays ephemeral typing presence signals between chat
// participants. Signals are never persisted; receivers are expected to
// expire a stale "typing" state when the sender stops refreshing it.
type TypingService interface {
	Signal(ctx context.Context, signal dto.TypingSignal) error
	Subscribe(userID string) (<-chan dto.TypingSignal, func())
	Start(ctx context.Context)
}

type typingService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	broker      *typingBroker
	nodeID      string
	staleAfter  time.Duration
}

type typingEvent struct {
	Source string           `json:"source"`
	Signal dto.TypingSignal `json:"signal"`
	SentAt time.Time        `json:"sent_at"`
}

type typingBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.TypingSignal]struct{}
}

// NewTypingService constructs a typing relay instance. Events relayed
// across nodes carry their send time; anything older than staleAfter is
// dropped rather than delivered, since the receiving client would have
// expired the indicator already.
func NewTypingService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, staleAfter time.Duration, logger zerolog.Logger) TypingService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":typing"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".typing"
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Second
	}

	return &typingService{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "typing_service").Logger(),
		broker: &typingBroker{
			subscribers: make(map[string]map[chan dto.TypingSignal]struct{}),
		},
		nodeID:     uuid.NewString(),
		staleAfter: staleAfter,
	}
}

func (s *typingService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *typingService) Signal(ctx context.Context, signal dto.TypingSignal) error {
	if err := s.validator.Struct(signal); err != nil {
		return err
	}

	state := "stopped"
	if signal.IsTyping {
		state = "typing"
	}
	observability.TypingSignals().WithLabelValues(state).Inc()

	s.broker.deliver(signal)
	return s.publish(ctx, signal)
}

func (s *typingService) Subscribe(userID string) (<-chan dto.TypingSignal, func()) {
	return s.broker.subscribe(userID)
}

func (s *typingService) publish(ctx context.Context, signal dto.TypingSignal) error {
	event := typingEvent{
		Source: s.nodeID,
		Signal: signal,
		SentAt: time.Now().UTC(),
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

func (s *typingService) consumeRedis(ctx context.Context) {
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
			s.logger.Error().Err(err).Msg("typing redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *typingService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "ultracoach-typing", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats typing subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain typing nats subscription")
		}
	}()
}

func (s *typingService) handleEvent(data []byte) {
	var event typingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid typing event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	// A delayed relay is worse than none: the indicator would flash on
	// after the sender already went quiet.
	if !event.SentAt.IsZero() && time.Since(event.SentAt) > s.staleAfter {
		return
	}

	s.broker.deliver(event.Signal)
}

func (b *typingBroker) subscribe(userID string) (<-chan dto.TypingSignal, func()) {
	ch := make(chan dto.TypingSignal, typingBufferSize)

	b.mu.Lock()
	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.TypingSignal]struct{})
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

func (b *typingBroker) deliver(signal dto.TypingSignal) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[signal.RecipientID] {
		select {
		case ch <- signal:
		default:
		}
	}
}

package chatsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoSession is returned when an operation needs an authenticated user
// and none is set.
var ErrNoSession = errors.New("no active session")

// ErrEmptyMessage is returned when a send carries no content.
var ErrEmptyMessage = errors.New("message content must not be empty")

// Engine ties the sync machinery together: the store holds canonical state,
// the monitor decides whether sends go straight to the transport or into
// the offline queue, and the flush coordinator drains the queue when the
// connection comes back.
type Engine struct {
	transport Transport
	store     *MessageStore
	queue     *OfflineQueue
	monitor   *ConnectionMonitor
	flusher   *FlushCoordinator
	resolver  *WorkoutResolver
	notifier  Notifier
	logger    zerolog.Logger

	mu     sync.RWMutex
	userID string

	stopMonitor func()
}

// EngineConfig wires an engine's collaborators. Store, Queue, and Resolver
// are created when nil; Transport and Monitor are required.
type EngineConfig struct {
	Transport Transport
	Monitor   *ConnectionMonitor
	Store     *MessageStore
	Queue     *OfflineQueue
	Resolver  *WorkoutResolver
	Notifier  Notifier
}

// NewEngine builds an engine and subscribes it to connection transitions.
func NewEngine(cfg EngineConfig, logger zerolog.Logger) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("engine requires a transport")
	}
	if cfg.Monitor == nil {
		return nil, errors.New("engine requires a connection monitor")
	}

	store := cfg.Store
	if store == nil {
		store = NewMessageStore()
	}
	queue := cfg.Queue
	if queue == nil {
		queue = NewOfflineQueue()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = NewWorkoutResolver()
	}
	notifier := newDedupingNotifier(cfg.Notifier)

	e := &Engine{
		transport: cfg.Transport,
		store:     store,
		queue:     queue,
		monitor:   cfg.Monitor,
		resolver:  resolver,
		notifier:  notifier,
		logger:    logger.With().Str("component", "chatsync_engine").Logger(),
	}
	e.flusher = NewFlushCoordinator(queue, cfg.Transport, store, notifier, logger)

	statuses, cancel := cfg.Monitor.Subscribe()
	e.stopMonitor = cancel
	go e.watchConnection(statuses)

	return e, nil
}

// SetSession records the authenticated user. Sync operations are no-ops
// until a session is set.
func (e *Engine) SetSession(userID string) {
	e.mu.Lock()
	e.userID = userID
	e.mu.Unlock()
}

// ClearSession drops the session.
func (e *Engine) ClearSession() {
	e.SetSession("")
}

// UserID returns the current session's user, or empty when signed out.
func (e *Engine) UserID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userID
}

// Store exposes the canonical message store for rendering.
func (e *Engine) Store() *MessageStore {
	return e.store
}

// Queue exposes the offline queue for inspection.
func (e *Engine) Queue() *OfflineQueue {
	return e.queue
}

// Resolver exposes the workout lookup for rendering.
func (e *Engine) Resolver() *WorkoutResolver {
	return e.resolver
}

// Close detaches the engine from the monitor.
func (e *Engine) Close() {
	if e.stopMonitor != nil {
		e.stopMonitor()
		e.stopMonitor = nil
	}
}

// Send delivers a message now when connected, or captures it in the
// offline queue otherwise. Either way the message appears in the store
// immediately so the conversation renders it without waiting on the
// network.
func (e *Engine) Send(ctx context.Context, out OutgoingMessage) (Message, error) {
	userID := e.UserID()
	if userID == "" {
		return Message{}, ErrNoSession
	}
	if strings.TrimSpace(out.Content) == "" {
		return Message{}, ErrEmptyMessage
	}
	if out.ContextType == "" {
		out.ContextType = ContextGeneral
	}

	if e.monitor.Status() != StatusConnected {
		return e.enqueue(userID, out), nil
	}

	confirmed, err := e.transport.SendMessage(ctx, out)
	if err != nil {
		// The direct send failing usually means the connection just
		// dropped. Queue the message and re-probe.
		e.logger.Warn().Err(err).Msg("Direct send failed, queueing message")
		queued := e.enqueue(userID, out)
		e.monitor.CheckNow()
		return queued, nil
	}

	e.store.Merge(confirmed)
	e.notifier.Notify(Notification{
		Kind:      EventDelivered,
		MessageID: confirmed.ID,
		Text:      "message delivered",
	})
	return confirmed, nil
}

// enqueue captures the message as a provisional store entry plus a queue
// record. The provisional ID doubles as the client reference the server
// echoes back, so the confirmed copy replaces it on merge.
func (e *Engine) enqueue(userID string, out OutgoingMessage) Message {
	id := uuid.New().String()
	now := time.Now().UTC()

	provisional := Message{
		ID:          id,
		SenderID:    userID,
		RecipientID: out.RecipientID,
		Content:     out.Content,
		WorkoutID:   out.WorkoutID,
		ContextType: out.ContextType,
		ClientRef:   id,
		CreatedAt:   now,
	}
	e.store.Merge(provisional)

	e.queue.Enqueue(PendingMessage{
		ID:          id,
		RecipientID: out.RecipientID,
		Content:     out.Content,
		WorkoutID:   out.WorkoutID,
		ContextType: out.ContextType,
		Timestamp:   now,
	})

	e.notifier.Notify(Notification{
		Kind:      EventQueued,
		MessageID: id,
		Text:      "message queued for delivery",
	})
	return provisional
}

// Refresh fetches message history and merges it into the store. Pass an
// empty recipientID for the full history.
func (e *Engine) Refresh(ctx context.Context, recipientID string) error {
	if e.UserID() == "" {
		return ErrNoSession
	}

	messages, err := e.transport.FetchMessages(ctx, recipientID)
	if err != nil {
		return err
	}
	e.store.Merge(messages...)
	return nil
}

// RefreshWorkouts fetches the workout list and rebuilds the resolver.
func (e *Engine) RefreshWorkouts(ctx context.Context) error {
	if e.UserID() == "" {
		return ErrNoSession
	}

	workouts, err := e.transport.FetchWorkouts(ctx)
	if err != nil {
		return err
	}
	e.resolver.Rebuild(workouts)
	return nil
}

// FlushNow drains the offline queue immediately, regardless of the
// monitor's status. Mostly useful for tests and manual retry buttons.
func (e *Engine) FlushNow(ctx context.Context) {
	e.flusher.Flush(ctx)
}

// watchConnection flushes whenever the monitor announces connectivity and
// queued messages are waiting. The monitor re-announces connected on every
// successful probe, so a send that failed while nominally connected still
// drains once the follow-up probe lands. Redundant triggers collapse into
// the flusher's single-flight guard.
func (e *Engine) watchConnection(statuses <-chan Status) {
	for status := range statuses {
		if status == StatusConnected && e.queue.Len() > 0 {
			go e.flusher.Flush(context.Background())
		}
	}
}

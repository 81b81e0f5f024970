package chatsync

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const maxSendRetries = 3

// OfflineQueue holds messages captured while disconnected, in the order the
// user sent them. Order is global across conversations.
type OfflineQueue struct {
	mu      sync.Mutex
	pending []PendingMessage
}

// NewOfflineQueue creates an empty queue.
func NewOfflineQueue() *OfflineQueue {
	return &OfflineQueue{}
}

// Enqueue appends a message to the tail of the queue.
func (q *OfflineQueue) Enqueue(msg PendingMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, msg)
}

// Snapshot returns a copy of the queue in FIFO order.
func (q *OfflineQueue) Snapshot() []PendingMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingMessage, len(q.pending))
	copy(out, q.pending)
	return out
}

// Len reports the number of queued messages.
func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// remove drops the entry with the given ID, preserving order.
func (q *OfflineQueue) remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, msg := range q.pending {
		if msg.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// bumpRetry increments the retry count for the entry with the given ID and
// returns the new count.
func (q *OfflineQueue) bumpRetry(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.pending {
		if q.pending[i].ID == id {
			q.pending[i].RetryCount++
			return q.pending[i].RetryCount
		}
	}
	return 0
}

// purgeExhausted removes every entry at or past the retry cap and returns
// the removed entries.
func (q *OfflineQueue) purgeExhausted(limit int) []PendingMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	var purged []PendingMessage
	kept := q.pending[:0]
	for _, msg := range q.pending {
		if msg.RetryCount >= limit {
			purged = append(purged, msg)
		} else {
			kept = append(kept, msg)
		}
	}
	q.pending = kept
	return purged
}

// MessageSender delivers one queued message to the server.
type MessageSender interface {
	SendMessage(ctx context.Context, out OutgoingMessage) (Message, error)
}

// FlushCoordinator drains the offline queue strictly in order, one message
// at a time. Only one flush runs at a time; overlapping triggers collapse
// into the running pass.
type FlushCoordinator struct {
	queue    *OfflineQueue
	sender   MessageSender
	store    *MessageStore
	notifier Notifier
	logger   zerolog.Logger

	mu       sync.Mutex
	flushing bool
}

// NewFlushCoordinator wires a coordinator over the queue, transport, and
// store. A nil notifier disables user-facing notifications.
func NewFlushCoordinator(queue *OfflineQueue, sender MessageSender, store *MessageStore, notifier Notifier, logger zerolog.Logger) *FlushCoordinator {
	return &FlushCoordinator{
		queue:    queue,
		sender:   sender,
		store:    store,
		notifier: newDedupingNotifier(notifier),
		logger:   logger.With().Str("component", "flush_coordinator").Logger(),
	}
}

// Flush drains the queue sequentially. Each failure increments the entry's
// retry count in place; entries that exhaust their retries are purged with
// exactly one failure notification each. Returns immediately when a flush
// is already running.
func (f *FlushCoordinator) Flush(ctx context.Context) {
	f.mu.Lock()
	if f.flushing {
		f.mu.Unlock()
		return
	}
	f.flushing = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.flushing = false
		f.mu.Unlock()
	}()

	for _, pending := range f.queue.Snapshot() {
		if ctx.Err() != nil {
			return
		}

		confirmed, err := f.sender.SendMessage(ctx, OutgoingMessage{
			RecipientID: pending.RecipientID,
			Content:     pending.Content,
			WorkoutID:   pending.WorkoutID,
			ContextType: pending.ContextType,
			ClientRef:   pending.ID,
		})
		if err != nil {
			count := f.queue.bumpRetry(pending.ID)
			f.logger.Warn().
				Str("message_id", pending.ID).
				Int("retry_count", count).
				Err(err).
				Msg("Queued message send failed")
			continue
		}

		f.queue.remove(pending.ID)
		if f.store != nil {
			f.store.Merge(confirmed)
		}
		f.notifier.Notify(Notification{
			Kind:      EventDelivered,
			MessageID: confirmed.ID,
			Text:      "message delivered",
		})
	}

	for _, purged := range f.queue.purgeExhausted(maxSendRetries) {
		if f.store != nil {
			f.store.Remove(purged.ID)
		}
		f.logger.Error().
			Str("message_id", purged.ID).
			Time("queued_at", purged.Timestamp).
			Msg("Dropping message after repeated send failures")
		f.notifier.Notify(Notification{
			Kind:      EventFailed,
			MessageID: purged.ID,
			Text:      "message could not be delivered",
		})
	}
}

// Flushing reports whether a flush pass is currently running.
func (f *FlushCoordinator) Flushing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushing
}

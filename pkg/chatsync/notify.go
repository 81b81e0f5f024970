package chatsync

import "sync"

// EventKind distinguishes the user-visible outcomes of a send.
type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventDelivered EventKind = "delivered"
	EventFailed    EventKind = "failed"
)

// Notification is a single user-visible outcome for a logical message event.
type Notification struct {
	Kind      EventKind
	MessageID string
	Text      string
}

// Notifier receives user-visible outcome notifications. Implementations are
// typically a toast layer; tests use a recording implementation.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// NopNotifier discards all notifications.
var NopNotifier = NotifierFunc(func(Notification) {})

// dedupeCapacity bounds the dedupe window. Duplicate suppression only
// matters across the retries of a recent send, so the oldest keys can be
// forgotten once the window fills.
const dedupeCapacity = 1024

// dedupingNotifier suppresses duplicate notifications for the same logical
// event, identified by (kind, message id). It remembers at most
// dedupeCapacity events, evicting oldest-first.
type dedupingNotifier struct {
	mu    sync.Mutex
	next  Notifier
	seen  map[string]struct{}
	order []string
}

func newDedupingNotifier(next Notifier) *dedupingNotifier {
	if next == nil {
		next = NopNotifier
	}
	return &dedupingNotifier{
		next: next,
		seen: make(map[string]struct{}),
	}
}

func (d *dedupingNotifier) Notify(n Notification) {
	key := string(n.Kind) + ":" + n.MessageID

	d.mu.Lock()
	if _, dup := d.seen[key]; dup {
		d.mu.Unlock()
		return
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
	if len(d.order) > dedupeCapacity {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	d.mu.Unlock()

	d.next.Notify(n)
}

package chatsync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	typingDebounce  = 2 * time.Second
	typingHeartbeat = 2 * time.Second
	typingExpiry    = 5 * time.Second
)

// SignalSender pushes a typing signal to the server.
type SignalSender interface {
	SendTyping(ctx context.Context, recipientID string, isTyping bool) error
}

// TypingReporter turns raw keystrokes into a bounded signal stream: one
// start signal per burst, heartbeats while typing continues, and a stop
// signal when the user pauses or sends.
type TypingReporter struct {
	sender    SignalSender
	debounce  time.Duration
	heartbeat time.Duration
	logger    zerolog.Logger

	mu        sync.Mutex
	recipient string
	typing    bool
	idleTimer *time.Timer
	beatTimer *time.Timer
}

// NewTypingReporter creates a reporter with production timing. Zero
// durations fall back to defaults.
func NewTypingReporter(sender SignalSender, debounce, heartbeat time.Duration, logger zerolog.Logger) *TypingReporter {
	if debounce <= 0 {
		debounce = typingDebounce
	}
	if heartbeat <= 0 {
		heartbeat = typingHeartbeat
	}
	return &TypingReporter{
		sender:    sender,
		debounce:  debounce,
		heartbeat: heartbeat,
		logger:    logger.With().Str("component", "typing_reporter").Logger(),
	}
}

// Keystroke records typing activity towards a recipient. The first
// keystroke of a burst emits a start signal; further keystrokes only push
// the idle deadline out.
func (r *TypingReporter) Keystroke(recipientID string) {
	r.mu.Lock()

	if r.typing && r.recipient == recipientID {
		r.resetIdleLocked()
		r.mu.Unlock()
		return
	}

	// Switching conversations stops the old one first.
	if r.typing && r.recipient != recipientID {
		prev := r.recipient
		r.mu.Unlock()
		r.Stop(prev)
		r.mu.Lock()
	}

	r.typing = true
	r.recipient = recipientID
	r.resetIdleLocked()
	r.resetHeartbeatLocked()
	r.mu.Unlock()

	r.send(recipientID, true)
}

// Stop emits an explicit stop signal and cancels pending timers. Called
// when the user sends the message or clears the input.
func (r *TypingReporter) Stop(recipientID string) {
	r.mu.Lock()
	if !r.typing || r.recipient != recipientID {
		r.mu.Unlock()
		return
	}
	r.typing = false
	r.cancelTimersLocked()
	r.mu.Unlock()

	r.send(recipientID, false)
}

func (r *TypingReporter) resetIdleLocked() {
	if r.idleTimer != nil {
		r.idleTimer.Stop()
	}
	recipient := r.recipient
	r.idleTimer = time.AfterFunc(r.debounce, func() {
		r.Stop(recipient)
	})
}

func (r *TypingReporter) resetHeartbeatLocked() {
	if r.beatTimer != nil {
		r.beatTimer.Stop()
	}
	r.beatTimer = time.AfterFunc(r.heartbeat, r.heartbeatTick)
}

func (r *TypingReporter) heartbeatTick() {
	r.mu.Lock()
	if !r.typing {
		r.mu.Unlock()
		return
	}
	recipient := r.recipient
	r.beatTimer = time.AfterFunc(r.heartbeat, r.heartbeatTick)
	r.mu.Unlock()

	r.send(recipient, true)
}

func (r *TypingReporter) cancelTimersLocked() {
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
	if r.beatTimer != nil {
		r.beatTimer.Stop()
		r.beatTimer = nil
	}
}

func (r *TypingReporter) send(recipientID string, isTyping bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sender.SendTyping(ctx, recipientID, isTyping); err != nil {
		r.logger.Debug().Err(err).Bool("is_typing", isTyping).Msg("Typing signal dropped")
	}
}

// PresenceTracker tracks which counterparts are typing right now. Observed
// typing expires after a fixed window unless refreshed by a heartbeat, so a
// peer that vanishes mid-burst never shows as typing forever.
type PresenceTracker struct {
	expiry time.Duration
	now    func() time.Time

	mu        sync.Mutex
	deadlines map[string]time.Time
	listeners map[int]func(userID string, isTyping bool)
	nextID    int
}

// NewPresenceTracker creates a tracker with the default expiry window.
func NewPresenceTracker(expiry time.Duration) *PresenceTracker {
	if expiry <= 0 {
		expiry = typingExpiry
	}
	return &PresenceTracker{
		expiry:    expiry,
		now:       time.Now,
		deadlines: make(map[string]time.Time),
		listeners: make(map[int]func(string, bool)),
	}
}

// Observe records a typing signal from a counterpart. Starts and
// heartbeats refresh the expiry deadline; stops clear immediately.
func (p *PresenceTracker) Observe(userID string, isTyping bool) {
	p.mu.Lock()
	_, wasTyping := p.deadlines[userID]
	if isTyping {
		p.deadlines[userID] = p.now().Add(p.expiry)
	} else {
		delete(p.deadlines, userID)
	}
	p.mu.Unlock()

	if wasTyping != isTyping {
		p.fire(userID, isTyping)
	}
}

// IsTyping reports whether the counterpart's typing indicator is live.
func (p *PresenceTracker) IsTyping(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	deadline, ok := p.deadlines[userID]
	if !ok {
		return false
	}
	return p.now().Before(deadline)
}

// Sweep clears expired entries and fires stop events for them. Call it
// periodically, or after advancing a fake clock in tests.
func (p *PresenceTracker) Sweep() {
	p.mu.Lock()
	var expired []string
	now := p.now()
	for userID, deadline := range p.deadlines {
		if !now.Before(deadline) {
			expired = append(expired, userID)
			delete(p.deadlines, userID)
		}
	}
	p.mu.Unlock()

	for _, userID := range expired {
		p.fire(userID, false)
	}
}

// OnChange registers a listener for typing transitions. The returned
// function unregisters it.
func (p *PresenceTracker) OnChange(fn func(userID string, isTyping bool)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *PresenceTracker) fire(userID string, isTyping bool) {
	p.mu.Lock()
	fns := make([]func(string, bool), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(userID, isTyping)
	}
}

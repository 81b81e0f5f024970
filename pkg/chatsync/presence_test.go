package chatsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// signalRecorder captures typing signals pushed by the reporter.
type signalRecorder struct {
	mu      sync.Mutex
	signals []bool
}

func (r *signalRecorder) SendTyping(ctx context.Context, recipientID string, isTyping bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, isTyping)
	return nil
}

func (r *signalRecorder) recorded() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.signals))
	copy(out, r.signals)
	return out
}

func TestReporterSendsOneStartPerBurst(t *testing.T) {
	recorder := &signalRecorder{}
	reporter := NewTypingReporter(recorder, time.Hour, time.Hour, zerolog.Nop())

	reporter.Keystroke("runner")
	reporter.Keystroke("runner")
	reporter.Keystroke("runner")

	require.Equal(t, []bool{true}, recorder.recorded())
}

func TestReporterStopsAfterIdleDebounce(t *testing.T) {
	recorder := &signalRecorder{}
	reporter := NewTypingReporter(recorder, 20*time.Millisecond, time.Hour, zerolog.Nop())

	reporter.Keystroke("runner")

	require.Eventually(t, func() bool {
		signals := recorder.recorded()
		return len(signals) == 2 && !signals[1]
	}, time.Second, 5*time.Millisecond)
}

func TestReporterExplicitStop(t *testing.T) {
	recorder := &signalRecorder{}
	reporter := NewTypingReporter(recorder, time.Hour, time.Hour, zerolog.Nop())

	reporter.Keystroke("runner")
	reporter.Stop("runner")

	require.Equal(t, []bool{true, false}, recorder.recorded())

	// A second stop for an idle conversation is a no-op.
	reporter.Stop("runner")
	require.Equal(t, []bool{true, false}, recorder.recorded())
}

func TestReporterHeartbeatsWhileTyping(t *testing.T) {
	recorder := &signalRecorder{}
	reporter := NewTypingReporter(recorder, time.Hour, 15*time.Millisecond, zerolog.Nop())

	reporter.Keystroke("runner")

	require.Eventually(t, func() bool {
		return len(recorder.recorded()) >= 3
	}, time.Second, 5*time.Millisecond)

	reporter.Stop("runner")
	for _, isTyping := range recorder.recorded()[:3] {
		require.True(t, isTyping)
	}
}

func TestReporterSwitchingConversationStopsPrevious(t *testing.T) {
	recorder := &signalRecorder{}
	reporter := NewTypingReporter(recorder, time.Hour, time.Hour, zerolog.Nop())

	reporter.Keystroke("runner-a")
	reporter.Keystroke("runner-b")

	require.Equal(t, []bool{true, false, true}, recorder.recorded())
}

func TestTrackerExpiresWithoutHeartbeat(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker := NewPresenceTracker(5 * time.Second)
	tracker.now = func() time.Time { return now }

	tracker.Observe("coach", true)
	require.True(t, tracker.IsTyping("coach"))

	now = now.Add(3 * time.Second)
	require.True(t, tracker.IsTyping("coach"))

	now = now.Add(3 * time.Second)
	require.False(t, tracker.IsTyping("coach"))
}

func TestTrackerHeartbeatExtendsDeadline(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker := NewPresenceTracker(5 * time.Second)
	tracker.now = func() time.Time { return now }

	tracker.Observe("coach", true)
	now = now.Add(4 * time.Second)
	tracker.Observe("coach", true)

	now = now.Add(4 * time.Second)
	require.True(t, tracker.IsTyping("coach"))
}

func TestTrackerStopClearsImmediately(t *testing.T) {
	tracker := NewPresenceTracker(5 * time.Second)

	tracker.Observe("coach", true)
	tracker.Observe("coach", false)
	require.False(t, tracker.IsTyping("coach"))
}

func TestTrackerSweepFiresStopEvents(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	tracker := NewPresenceTracker(5 * time.Second)
	tracker.now = func() time.Time { return now }

	var events []bool
	tracker.OnChange(func(userID string, isTyping bool) {
		events = append(events, isTyping)
	})

	tracker.Observe("coach", true)
	now = now.Add(6 * time.Second)
	tracker.Sweep()

	require.Equal(t, []bool{true, false}, events)
}

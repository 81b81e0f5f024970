package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ultracoach/ultracoach-api/internal/dto"
)

func TestTypingServiceDeliversToRecipientOnly(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewTypingService(nil, "", nil, validate, 0, testLogger())

	sender := uuid.NewString()
	recipient := uuid.NewString()
	bystander := uuid.NewString()

	recipientCh, cancelRecipient := svc.Subscribe(recipient)
	defer cancelRecipient()
	bystanderCh, cancelBystander := svc.Subscribe(bystander)
	defer cancelBystander()

	err := svc.Signal(context.Background(), dto.TypingSignal{
		SenderID:    sender,
		RecipientID: recipient,
		IsTyping:    true,
	})
	require.NoError(t, err)

	select {
	case signal := <-recipientCh:
		require.Equal(t, sender, signal.SenderID)
		require.True(t, signal.IsTyping)
	case <-time.After(time.Second):
		t.Fatal("expected typing signal for recipient")
	}

	select {
	case <-bystanderCh:
		t.Fatal("bystander must not receive another pair's typing signal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTypingServiceRejectsInvalidSignal(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewTypingService(nil, "", nil, validate, 0, testLogger())

	err := svc.Signal(context.Background(), dto.TypingSignal{IsTyping: true})
	require.Error(t, err, "recipient id is required")
}

func TestTypingServiceCancelUnsubscribes(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewTypingService(nil, "", nil, validate, 0, testLogger())

	recipient := uuid.NewString()
	ch, cancel := svc.Subscribe(recipient)
	cancel()

	// Channel is closed after cancel; a closed channel yields immediately.
	_, open := <-ch
	require.False(t, open)
}

func TestTypingServiceDropsStaleRelayedEvents(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewTypingService(nil, "", nil, validate, 2*time.Second, testLogger()).(*typingService)

	recipient := uuid.NewString()
	ch, cancel := svc.Subscribe(recipient)
	defer cancel()

	signal := dto.TypingSignal{
		SenderID:    uuid.NewString(),
		RecipientID: recipient,
		IsTyping:    true,
	}

	stale, err := json.Marshal(typingEvent{
		Source: uuid.NewString(),
		Signal: signal,
		SentAt: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)
	svc.handleEvent(stale)

	select {
	case <-ch:
		t.Fatal("stale relayed event must not be delivered")
	case <-time.After(50 * time.Millisecond):
	}

	fresh, err := json.Marshal(typingEvent{
		Source: uuid.NewString(),
		Signal: signal,
		SentAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	svc.handleEvent(fresh)

	select {
	case got := <-ch:
		require.True(t, got.IsTyping)
	case <-time.After(time.Second):
		t.Fatal("fresh relayed event must be delivered")
	}
}

package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ultracoach/ultracoach-api/internal/dto"
	"github.com/ultracoach/ultracoach-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type messageRepoStub struct {
	saved []models.Message
}

func (m *messageRepoStub) Save(_ context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.CreatedAt = time.Now().UTC()
	m.saved = append(m.saved, *message)
	return nil
}

func (m *messageRepoStub) ListForUser(_ context.Context, userID string, _ time.Time, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.saved {
		if msg.SenderID == userID || msg.RecipientID == userID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *messageRepoStub) ListConversation(_ context.Context, userID, counterpartID string, _ time.Time, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.saved {
		if (msg.SenderID == userID && msg.RecipientID == counterpartID) ||
			(msg.SenderID == counterpartID && msg.RecipientID == userID) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *messageRepoStub) MarkRead(_ context.Context, id, recipientID string) (models.Message, error) {
	for i, msg := range m.saved {
		if msg.ID == id && msg.RecipientID == recipientID {
			m.saved[i].Read = true
			return m.saved[i], nil
		}
	}
	return models.Message{}, errors.New("message not found")
}

type workoutRepoStub struct {
	workouts map[string]models.Workout
}

func (w *workoutRepoStub) Save(_ context.Context, workout *models.Workout) error {
	if workout.ID == "" {
		workout.ID = uuid.NewString()
	}
	if w.workouts == nil {
		w.workouts = make(map[string]models.Workout)
	}
	w.workouts[workout.ID] = *workout
	return nil
}

func (w *workoutRepoStub) GetByID(_ context.Context, id string) (models.Workout, error) {
	if workout, ok := w.workouts[id]; ok {
		return workout, nil
	}
	return models.Workout{}, ErrWorkoutNotFound
}

func (w *workoutRepoStub) ListByRunner(_ context.Context, runnerID string, _ time.Time, _ int) ([]models.Workout, error) {
	var out []models.Workout
	for _, workout := range w.workouts {
		if workout.RunnerID == runnerID {
			out = append(out, workout)
		}
	}
	return out, nil
}

func (w *workoutRepoStub) UpdateStatus(_ context.Context, id string, status models.WorkoutStatus) (models.Workout, error) {
	workout, ok := w.workouts[id]
	if !ok {
		return models.Workout{}, ErrWorkoutNotFound
	}
	workout.Status = status
	w.workouts[id] = workout
	return workout, nil
}

type relationshipRepoStub struct {
	pairs map[string]bool
}

func (r *relationshipRepoStub) Save(_ context.Context, rel *models.CoachRunnerRelationship) error {
	if r.pairs == nil {
		r.pairs = make(map[string]bool)
	}
	r.pairs[conversationKey(rel.CoachID, rel.RunnerID)] = rel.Status == models.RelationshipActive
	return nil
}

func (r *relationshipRepoStub) ActivePairExists(_ context.Context, userA, userB string) (bool, error) {
	return r.pairs[conversationKey(userA, userB)], nil
}

func (r *relationshipRepoStub) ListForUser(_ context.Context, _ string) ([]models.CoachRunnerRelationship, error) {
	return nil, nil
}

func (r *relationshipRepoStub) UpdateStatus(_ context.Context, _ uint, _ models.RelationshipStatus) error {
	return nil
}

func newTestMessageService(t *testing.T, repo *messageRepoStub, workouts *workoutRepoStub, rels *relationshipRepoStub) (MessageService, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewMessageService(repo, workouts, rels, redisClient, "test", nil, validate, testLogger())
	return svc, server
}

func activePair(coach, runner string) *relationshipRepoStub {
	return &relationshipRepoStub{pairs: map[string]bool{conversationKey(coach, runner): true}}
}

func TestMessageServiceSendPersistsAndSanitizes(t *testing.T) {
	coach := uuid.NewString()
	runner := uuid.NewString()
	repo := &messageRepoStub{}
	svc, _ := newTestMessageService(t, repo, &workoutRepoStub{}, activePair(coach, runner))

	response, err := svc.Send(context.Background(), coach, dto.MessageSendRequest{
		RecipientID: runner,
		Content:     "<script>alert('x')</script>nice intervals today",
		ClientRef:   "client-ref-1",
	})
	require.NoError(t, err)
	require.Equal(t, "nice intervals today", response.Content)
	require.Equal(t, "general", response.ContextType)
	require.Equal(t, "client-ref-1", response.ClientRef)
	require.NotEmpty(t, response.ID)
	require.Len(t, repo.saved, 1)
}

func TestMessageServiceSendRejectsUnrelatedPair(t *testing.T) {
	coach := uuid.NewString()
	runner := uuid.NewString()
	svc, _ := newTestMessageService(t, &messageRepoStub{}, &workoutRepoStub{}, &relationshipRepoStub{})

	_, err := svc.Send(context.Background(), coach, dto.MessageSendRequest{
		RecipientID: runner,
		Content:     "hello",
	})
	require.ErrorIs(t, err, ErrNotAuthorised)
}

func TestMessageServiceSendRejectsUnknownWorkout(t *testing.T) {
	coach := uuid.NewString()
	runner := uuid.NewString()
	missing := uuid.NewString()
	svc, _ := newTestMessageService(t, &messageRepoStub{}, &workoutRepoStub{}, activePair(coach, runner))

	_, err := svc.Send(context.Background(), coach, dto.MessageSendRequest{
		RecipientID: runner,
		Content:     "check this session",
		WorkoutID:   &missing,
		ContextType: "workout_reference",
	})
	require.ErrorIs(t, err, ErrWorkoutNotFound)
}

func TestMessageServiceSendAttachesWorkoutReference(t *testing.T) {
	coach := uuid.NewString()
	runner := uuid.NewString()
	workouts := &workoutRepoStub{}
	workout := models.Workout{RunnerID: runner, Type: "long_run"}
	require.NoError(t, workouts.Save(context.Background(), &workout))

	svc, _ := newTestMessageService(t, &messageRepoStub{}, workouts, activePair(coach, runner))

	response, err := svc.Send(context.Background(), coach, dto.MessageSendRequest{
		RecipientID: runner,
		Content:     "thoughts on this one?",
		WorkoutID:   &workout.ID,
		ContextType: "workout_feedback",
	})
	require.NoError(t, err)
	require.NotNil(t, response.WorkoutID)
	require.Equal(t, workout.ID, *response.WorkoutID)
	require.Equal(t, "workout_feedback", response.ContextType)
}

func TestMessageServiceSendCachesLastMessage(t *testing.T) {
	coach := uuid.NewString()
	runner := uuid.NewString()
	svc, server := newTestMessageService(t, &messageRepoStub{}, &workoutRepoStub{}, activePair(coach, runner))

	_, err := svc.Send(context.Background(), coach, dto.MessageSendRequest{
		RecipientID: runner,
		Content:     "recovery day tomorrow",
	})
	require.NoError(t, err)

	key := "test:messages:last:" + conversationKey(coach, runner)
	require.True(t, server.Exists(key))
}

func TestMessageServiceSubscribeReceivesDeliveredMessage(t *testing.T) {
	coach := uuid.NewString()
	runner := uuid.NewString()
	svc, _ := newTestMessageService(t, &messageRepoStub{}, &workoutRepoStub{}, activePair(coach, runner))

	ch, cancel := svc.Subscribe(runner)
	defer cancel()

	sent, err := svc.Send(context.Background(), coach, dto.MessageSendRequest{
		RecipientID: runner,
		Content:     "hydrate before the tempo run",
	})
	require.NoError(t, err)

	select {
	case received := <-ch:
		require.Equal(t, sent.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("expected realtime delivery to subscriber")
	}
}

func TestMessageServiceHistoryFiltersConversation(t *testing.T) {
	coach := uuid.NewString()
	runner := uuid.NewString()
	other := uuid.NewString()
	repo := &messageRepoStub{}
	rels := activePair(coach, runner)
	rels.pairs[conversationKey(coach, other)] = true
	svc, _ := newTestMessageService(t, repo, &workoutRepoStub{}, rels)

	_, err := svc.Send(context.Background(), coach, dto.MessageSendRequest{RecipientID: runner, Content: "one"})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), coach, dto.MessageSendRequest{RecipientID: other, Content: "two"})
	require.NoError(t, err)

	messages, err := svc.History(context.Background(), coach, dto.MessageHistoryQuery{RecipientID: runner})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "one", messages[0].Content)

	all, err := svc.History(context.Background(), coach, dto.MessageHistoryQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

package chatsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func startRealtimeServer(t *testing.T, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRealtimeClientConcurrentTypingWrites(t *testing.T) {
	const writers = 32

	received := make(chan wireTyping, writers)
	server := startRealtimeServer(t, func(conn *websocket.Conn) {
		for {
			var signal wireTyping
			if err := conn.ReadJSON(&signal); err != nil {
				return
			}
			received <- signal
		}
	})

	client := NewRealtimeClient(server.URL, "", NewMessageStore(), NewPresenceTracker(0), zerolog.Nop())
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	// Timer-driven heartbeats and user keystrokes race onto the same
	// connection; every write must survive and arrive intact.
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(isTyping bool) {
			defer wg.Done()
			errs <- client.SendTyping(context.Background(), "runner", isTyping)
		}(i%2 == 0)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	for i := 0; i < writers; i++ {
		select {
		case signal := <-received:
			require.Equal(t, "runner", signal.RecipientID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for typing signals")
		}
	}
}

func TestRealtimeClientDispatchesFrames(t *testing.T) {
	pushed := Message{
		ID:          "m1",
		SenderID:    "coach",
		RecipientID: "runner",
		Content:     "pushed over the socket",
		ContextType: ContextGeneral,
		CreatedAt:   time.Now().UTC(),
	}

	server := startRealtimeServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteJSON(wireFrame{Kind: "message", Message: &pushed}); err != nil {
			return
		}
		typing := wireTyping{SenderID: "coach", RecipientID: "runner", IsTyping: true}
		if err := conn.WriteJSON(wireFrame{Kind: "typing", Typing: &typing}); err != nil {
			return
		}
		// Hold the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	store := NewMessageStore()
	presence := NewPresenceTracker(0)
	client := NewRealtimeClient(server.URL, "", store, presence, zerolog.Nop())
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.Eventually(t, func() bool {
		_, ok := store.Get("m1")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return presence.IsTyping("coach")
	}, 2*time.Second, 5*time.Millisecond)
}

package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 5 * time.Second
)

// wireFrame mirrors the server's realtime envelope.
type wireFrame struct {
	Kind    string      `json:"kind"`
	Typing  *wireTyping `json:"typing,omitempty"`
	Message *Message    `json:"message,omitempty"`
}

type wireTyping struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	IsTyping    bool   `json:"is_typing"`
}

// RealtimeClient maintains the websocket carrying typing signals and
// message pushes. Incoming frames feed the store and presence tracker
// directly; outgoing typing signals implement SignalSender for the
// reporter.
type RealtimeClient struct {
	baseURL  string
	token    string
	store    *MessageStore
	presence *PresenceTracker
	logger   zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	// Serializes writes: typing timers and user keystrokes both push
	// frames, and the connection allows one writer at a time.
	writeMu sync.Mutex
}

// NewRealtimeClient creates a client bound to the API base URL. Call
// Connect to open the socket.
func NewRealtimeClient(baseURL, token string, store *MessageStore, presence *PresenceTracker, logger zerolog.Logger) *RealtimeClient {
	return &RealtimeClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		store:    store,
		presence: presence,
		logger:   logger.With().Str("component", "realtime_client").Logger(),
	}
}

// Connect dials the realtime endpoint and starts the read loop. An already
// open connection is closed first.
func (c *RealtimeClient) Connect(ctx context.Context) error {
	endpoint, err := c.websocketURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		close(c.done)
	}
	c.conn = conn
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.readLoop(conn, done)
	return nil
}

// Close shuts the socket down.
func (c *RealtimeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		close(c.done)
		c.conn = nil
		c.done = nil
	}
}

// SendTyping pushes a typing signal over the socket. Implements
// SignalSender.
func (c *RealtimeClient) SendTyping(ctx context.Context, recipientID string, isTyping bool) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("realtime connection is not open")
	}

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteJSON(wireTyping{
		RecipientID: recipientID,
		IsTyping:    isTyping,
	})
}

func (c *RealtimeClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug().Err(err).Msg("Realtime read loop terminated")
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Debug().Err(err).Msg("Dropping malformed realtime frame")
			continue
		}

		switch frame.Kind {
		case "typing":
			if frame.Typing != nil && c.presence != nil {
				c.presence.Observe(frame.Typing.SenderID, frame.Typing.IsTyping)
			}
		case "message":
			if frame.Message != nil && c.store != nil {
				c.store.Merge(*frame.Message)
			}
		default:
			c.logger.Debug().Str("kind", frame.Kind).Msg("Ignoring unknown realtime frame")
		}
	}
}

func (c *RealtimeClient) websocketURL() (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid realtime base url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported realtime scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/api/v1/typing/ws"
	return parsed.String(), nil
}

package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultProbeTimeout   = 5 * time.Second
)

// Transport is the REST surface the engine talks to. Probe must be cheap:
// it is called repeatedly while reconnecting.
type Transport interface {
	FetchMessages(ctx context.Context, recipientID string) ([]Message, error)
	SendMessage(ctx context.Context, out OutgoingMessage) (Message, error)
	FetchWorkouts(ctx context.Context) ([]WorkoutSummary, error)
	Probe(ctx context.Context) error
}

// TransportConfig configures the REST transport.
type TransportConfig struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// RESTTransport implements Transport over the UltraCoach HTTP API.
type RESTTransport struct {
	baseURL      string
	token        string
	client       *http.Client
	probeTimeout time.Duration
	logger       zerolog.Logger
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// NewRESTTransport creates a transport bound to the given API base URL.
func NewRESTTransport(cfg TransportConfig, logger zerolog.Logger) (*RESTTransport, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport base url must not be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid transport base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	return &RESTTransport{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		client:       &http.Client{Timeout: timeout},
		probeTimeout: probeTimeout,
		logger:       logger.With().Str("component", "chatsync_transport").Logger(),
	}, nil
}

// FetchMessages retrieves message history, scoped to one conversation when
// recipientID is non-empty.
func (t *RESTTransport) FetchMessages(ctx context.Context, recipientID string) ([]Message, error) {
	endpoint := t.baseURL + "/api/v1/messages"
	if recipientID != "" {
		endpoint += "?recipientId=" + url.QueryEscape(recipientID)
	}

	var payload struct {
		Messages []Message `json:"messages"`
	}
	if err := t.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	return payload.Messages, nil
}

// SendMessage delivers a single message and returns the server's copy.
func (t *RESTTransport) SendMessage(ctx context.Context, out OutgoingMessage) (Message, error) {
	body, err := json.Marshal(out)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode message: %w", err)
	}

	var message Message
	if err := t.do(ctx, http.MethodPost, t.baseURL+"/api/v1/messages", body, &message); err != nil {
		return Message{}, err
	}

	return message, nil
}

// FetchWorkouts retrieves the workout list used to resolve message references.
func (t *RESTTransport) FetchWorkouts(ctx context.Context) ([]WorkoutSummary, error) {
	var payload struct {
		Items []WorkoutSummary `json:"items"`
	}
	if err := t.do(ctx, http.MethodGet, t.baseURL+"/api/v1/workouts", nil, &payload); err != nil {
		return nil, err
	}

	return payload.Items, nil
}

// Probe issues a lightweight liveness request. Any non-2xx response or
// network failure counts as probe failure.
func (t *RESTTransport) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, t.baseURL+"/api/v1/health", nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}

	return nil
}

func (t *RESTTransport) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !envelope.Success {
		message := envelope.Message
		if message == "" {
			message = "request rejected"
		}
		return fmt.Errorf("%s %s: %s (status %d)", method, endpoint, message, resp.StatusCode)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

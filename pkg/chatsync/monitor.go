package chatsync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the monitor's view of server reachability.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
)

const (
	probeAttempts    = 3
	probeBaseDelay   = 1 * time.Second
	probeMaxDelay    = 10 * time.Second
	probeTimeout     = 5 * time.Second
	reconnectRecheck = 30 * time.Second
)

// Prober reports whether the server is reachable right now.
type Prober interface {
	Probe(ctx context.Context) error
}

// MonitorConfig tunes probe timing. Zero values fall back to production
// defaults; tests shrink them to keep runs fast.
type MonitorConfig struct {
	Attempts     int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	ProbeTimeout time.Duration
	RecheckEvery time.Duration
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Attempts <= 0 {
		c.Attempts = probeAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = probeBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = probeMaxDelay
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = probeTimeout
	}
	if c.RecheckEvery <= 0 {
		c.RecheckEvery = reconnectRecheck
	}
	return c
}

// ConnectionMonitor tracks reachability with a tri-state status. A network
// reachability signal short-circuits probing in both directions: offline
// forces disconnected immediately, online restarts a fresh probe cycle.
type ConnectionMonitor struct {
	prober Prober
	cfg    MonitorConfig
	logger zerolog.Logger

	mu          sync.Mutex
	status      Status
	attempt     int
	timer       *time.Timer
	networkDown bool
	running     bool
	probing     bool
	subscribers map[chan Status]struct{}
}

// NewConnectionMonitor creates a monitor in the disconnected state. Call
// Start to begin probing.
func NewConnectionMonitor(prober Prober, cfg MonitorConfig, logger zerolog.Logger) *ConnectionMonitor {
	return &ConnectionMonitor{
		prober:      prober,
		cfg:         cfg.withDefaults(),
		logger:      logger.With().Str("component", "connection_monitor").Logger(),
		status:      StatusDisconnected,
		subscribers: make(map[chan Status]struct{}),
	}
}

// Start kicks off the first probe cycle.
func (m *ConnectionMonitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.beginCycle()
}

// Stop cancels any pending probe. The monitor can be restarted with Start.
func (m *ConnectionMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.cancelTimerLocked()
}

// Status returns the current connection status.
func (m *ConnectionMonitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe returns a channel of status updates and a cancel function. The
// current status is delivered first; transitions follow, and a connected
// status is re-delivered on every successful probe so queued work can
// resume even when the status never left connected.
func (m *ConnectionMonitor) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 8)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	ch <- m.status
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// SetOffline reflects a platform "network lost" signal. Pending probes are
// cancelled and the monitor reports disconnected without probing.
func (m *ConnectionMonitor) SetOffline() {
	m.mu.Lock()
	m.networkDown = true
	m.cancelTimerLocked()
	m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()
}

// SetOnline reflects a platform "network available" signal and starts a
// fresh probe cycle.
func (m *ConnectionMonitor) SetOnline() {
	m.mu.Lock()
	m.networkDown = false
	running := m.running
	m.cancelTimerLocked()
	m.mu.Unlock()

	if running {
		m.beginCycle()
	}
}

// CheckNow forces an immediate probe cycle, discarding any scheduled retry.
func (m *ConnectionMonitor) CheckNow() {
	m.mu.Lock()
	if !m.running || m.networkDown {
		m.mu.Unlock()
		return
	}
	m.cancelTimerLocked()
	m.mu.Unlock()

	m.beginCycle()
}

func (m *ConnectionMonitor) beginCycle() {
	m.mu.Lock()
	if !m.running || m.networkDown {
		m.mu.Unlock()
		return
	}
	m.attempt = 0
	m.mu.Unlock()

	go m.probeOnce()
}

func (m *ConnectionMonitor) probeOnce() {
	m.mu.Lock()
	if !m.running || m.networkDown || m.probing {
		m.mu.Unlock()
		return
	}
	m.probing = true
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
	err := m.prober.Probe(ctx)
	cancel()

	m.mu.Lock()
	m.probing = false
	if !m.running || m.networkDown {
		m.mu.Unlock()
		return
	}

	if err == nil {
		m.attempt = 0
		wasConnected := m.status == StatusConnected
		m.setStatusLocked(StatusConnected)
		if wasConnected {
			// Re-confirmation without a transition still gets announced.
			m.notifyLocked(StatusConnected)
		}
		m.scheduleLocked(m.cfg.RecheckEvery, m.probeOnce)
		m.mu.Unlock()
		return
	}

	m.attempt++
	if m.attempt >= m.cfg.Attempts {
		m.logger.Warn().Int("attempts", m.attempt).Err(err).Msg("Probe attempts exhausted")
		m.attempt = 0
		m.setStatusLocked(StatusDisconnected)
		m.scheduleLocked(m.cfg.MaxDelay, m.probeOnce)
		m.mu.Unlock()
		return
	}

	m.setStatusLocked(StatusReconnecting)
	delay := m.backoff(m.attempt)
	m.scheduleLocked(delay, m.probeOnce)
	m.mu.Unlock()
}

// backoff doubles per failed attempt, capped at MaxDelay.
func (m *ConnectionMonitor) backoff(attempt int) time.Duration {
	delay := m.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.cfg.MaxDelay {
			return m.cfg.MaxDelay
		}
	}
	if delay > m.cfg.MaxDelay {
		return m.cfg.MaxDelay
	}
	return delay
}

// scheduleLocked replaces the single pending timer. Callers hold m.mu.
func (m *ConnectionMonitor) scheduleLocked(delay time.Duration, fn func()) {
	m.cancelTimerLocked()
	m.timer = time.AfterFunc(delay, fn)
}

func (m *ConnectionMonitor) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *ConnectionMonitor) setStatusLocked(status Status) {
	if m.status == status {
		return
	}
	m.status = status
	m.logger.Debug().Str("status", string(status)).Msg("Connection status changed")
	m.notifyLocked(status)
}

func (m *ConnectionMonitor) notifyLocked(status Status) {
	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
		}
	}
}

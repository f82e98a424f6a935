// Package push maintains the session-scoped push socket: a single
// connection carrying events for every account, supervised with linear
// backoff and a hard retry budget.
package push

import (
	"context"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/psousa/waconsole/internal/config"
	"github.com/psousa/waconsole/internal/model"
	"github.com/psousa/waconsole/internal/status"
	"github.com/psousa/waconsole/internal/store"
	"go.uber.org/zap"
)

// Conn is a readable push connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens push connections. Tests substitute in-memory fakes.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Manager supervises the push connection lifecycle. Connects are
// idempotent, retries back off linearly (attempt x base delay), and
// after the attempt budget is exhausted the manager fail-stops until a
// manual Reconnect.
type Manager struct {
	cfg     config.Push
	store   *store.Store
	machine *status.Machine
	handler *Handler
	logger  *zap.Logger
	dialer  Dialer

	mu         gosync.Mutex
	conn       Conn
	connecting bool
	attempts   int
	timer      *time.Timer
	stopped    bool
	// gen is bumped whenever the manager is torn down; a dial started
	// under an older generation may not install its connection.
	gen int
}

// NewManager creates a push manager using the real websocket dialer.
func NewManager(cfg config.Push, st *store.Store, machine *status.Machine, handler *Handler, logger *zap.Logger) *Manager {
	return NewManagerWithDialer(cfg, st, machine, handler, logger, wsDialer{})
}

// NewManagerWithDialer creates a push manager with a custom dialer.
func NewManagerWithDialer(cfg config.Push, st *store.Store, machine *status.Machine, handler *Handler, logger *zap.Logger, d Dialer) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		store:   st,
		machine: machine,
		handler: handler,
		logger:  logger,
		dialer:  d,
	}
}

// Status returns the current connection state.
func (m *Manager) Status() status.State {
	return m.machine.Current()
}

// Connect starts a connection attempt. It is a no-op while a connection
// is established, in flight, or after Stop.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.stopped || m.connecting || m.conn != nil {
		m.mu.Unlock()
		return
	}
	m.connecting = true
	gen := m.gen
	m.mu.Unlock()

	if err := m.machine.Transition(status.Connecting); err != nil {
		// Reachable only from Failed: the budget is spent and only a
		// manual Reconnect may restart the cycle.
		m.mu.Lock()
		if gen == m.gen {
			m.connecting = false
		}
		m.mu.Unlock()
		m.logger.Warn("connect refused", zap.Error(err))
		return
	}
	go m.dial(gen)
}

func (m *Manager) dial(gen int) {
	conn, err := m.dialer.Dial(context.Background(), m.cfg.URL)
	if err != nil {
		m.mu.Lock()
		stale := gen != m.gen
		if !stale {
			m.connecting = false
		}
		m.mu.Unlock()
		if stale {
			return
		}
		m.logger.Warn("push connect failed", zap.String("url", m.cfg.URL), zap.Error(err))
		m.store.SetPushConnected(false)
		m.scheduleRetry()
		return
	}

	m.mu.Lock()
	if m.stopped || gen != m.gen {
		// A manual reconnect or a stop superseded this attempt while the
		// dial was in flight.
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.connecting = false
	m.attempts = 0
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connected)
	m.store.SetPushConnected(true)
	m.store.SetPushReconnecting(false)
	m.store.AddNotification(model.NotifySuccess, "Connected", "Real-time updates are now active")
	m.logger.Info("push socket connected", zap.String("url", m.cfg.URL))

	go m.readLoop(conn)
}

func (m *Manager) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn, err)
			return
		}
		m.handler.Handle(data)
	}
}

func (m *Manager) handleDisconnect(conn Conn, cause error) {
	m.mu.Lock()
	if m.stopped || m.conn != conn {
		// Torn down deliberately, or already replaced by a manual
		// reconnect; nothing to supervise.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()

	m.logger.Warn("push socket lost", zap.Error(cause))
	m.store.SetPushConnected(false)
	m.scheduleRetry()
}

func (m *Manager) scheduleRetry() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	budget := m.cfg.MaxAttempts
	if budget <= 0 {
		budget = 5
	}
	if attempt > budget {
		_ = m.machine.Transition(status.Failed)
		m.store.SetPushReconnecting(false)
		m.store.AddNotification(model.NotifyError, "Connection Failed",
			"Unable to establish real-time connection. Please reload the application.")
		m.logger.Error("push retry budget exhausted", zap.Int("attempts", budget))
		return
	}

	_ = m.machine.Transition(status.Reconnecting)
	m.store.SetPushReconnecting(true)
	delay := time.Duration(attempt) * m.cfg.BaseDelay()
	m.logger.Info("scheduling push reconnect",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))

	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(delay, m.Connect)
	m.mu.Unlock()
}

// Reconnect tears down any existing connection or pending retry, resets
// the attempt counter, and reconnects. This is the only way out of the
// Failed state.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.connecting = false
	m.attempts = 0
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if m.machine.Current() != status.Disconnected {
		_ = m.machine.Transition(status.Disconnected)
	}
	m.store.SetPushConnected(false)
	m.store.SetPushReconnecting(false)
	m.Connect()
}

// Stop shuts the manager down for good.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if m.machine.Current() != status.Disconnected {
		_ = m.machine.Transition(status.Disconnected)
	}
	m.store.SetPushConnected(false)
	m.store.SetPushReconnecting(false)
}

// wsDialer is the production dialer over gorilla/websocket.
type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return wsConn{conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c wsConn) Close() error {
	return c.conn.Close()
}

package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultAttemptTimeout bounds a single reconnect attempt.
const DefaultAttemptTimeout = 30 * time.Second

// ConnectFunc establishes a connection. It returns nil on success.
type ConnectFunc func(ctx context.Context) error

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Backoff controls the delay between reconnect attempts.
	Backoff BackoffConfig

	// AttemptTimeout bounds each reconnect attempt. Zero means DefaultAttemptTimeout.
	AttemptTimeout time.Duration

	// Logger is the optional logger for reconnect diagnostics.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Manager supervises a connection and reconnects with backoff after it is
// reported lost.
type Manager struct {
	mu sync.Mutex

	state     State
	backoff   *Backoff
	connectFn ConnectFunc
	timeout   time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// lostCh signals the reconnect loop; buffered so a pending signal coalesces.
	lostCh chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a manager around connectFn.
// Call Start to enable automatic reconnection.
func NewManager(connectFn ConnectFunc, cfg ManagerConfig) *Manager {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		state:     StateDisconnected,
		backoff:   NewBackoff(cfg.Backoff),
		connectFn: connectFn,
		timeout:   cfg.AttemptTimeout,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		lostCh:    make(chan struct{}, 1),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect performs the initial connection.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrManagerClosed
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.mu.Unlock()

	m.setState(StateConnecting)

	if err := m.connectFn(ctx); err != nil {
		m.setState(StateDisconnected)
		return err
	}

	m.connected()
	return nil
}

// NotifyConnectionLost reports that the connection dropped.
// If the manager was connected a reconnect is scheduled.
func (m *Manager) NotifyConnectionLost(reason string) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.logger.Warn("connection lost", "reason", reason)
	m.setState(StateReconnecting)

	select {
	case m.lostCh <- struct{}{}:
	default:
	}
}

// Start runs the reconnect loop in the background until Close.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Close stops the reconnect loop and waits for it to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.setState(StateClosed)
	m.cancel()
	m.wg.Wait()
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback invoked after every successful connect,
// including reconnects.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnReconnecting sets a callback invoked before each reconnect delay.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

func (m *Manager) setState(newState State) {
	m.mu.Lock()
	oldState := m.state
	if oldState == newState || (oldState == StateClosed && newState != StateClosed) {
		m.mu.Unlock()
		return
	}
	m.state = newState
	fn := m.onStateChange
	m.mu.Unlock()

	if fn != nil {
		fn(oldState, newState)
	}
}

func (m *Manager) connected() {
	m.backoff.Reset()
	m.setState(StateConnected)

	m.mu.Lock()
	fn := m.onConnected
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) loop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.lostCh:
			m.reconnect()
		}
	}
}

func (m *Manager) reconnect() {
	for {
		if s := m.State(); s == StateClosed || s == StateConnected {
			return
		}

		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()

		m.mu.Lock()
		fn := m.onReconnecting
		m.mu.Unlock()
		if fn != nil {
			fn(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		m.setState(StateConnecting)

		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		err := m.connectFn(ctx)
		cancel()

		if err == nil {
			m.logger.Info("reconnected", "attempt", attempt)
			m.connected()
			return
		}

		m.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
		m.setState(StateReconnecting)
	}
}

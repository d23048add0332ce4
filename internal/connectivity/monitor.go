package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"furniture-store/internal/domain"
	"furniture-store/internal/retry"
)

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 5 * time.Second

// DefaultMaxReconnects is the number of reconnection attempts after a
// failed probe before giving up.
const DefaultMaxReconnects = 3

// State is the observable connection state.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "connecting"
	}
}

// Status is a snapshot of the monitor.
type Status struct {
	State       State
	Attempt     int
	MaxAttempts int
	LastError   error
	CheckedAt   time.Time
}

// Degraded reports whether the backend is not currently reachable.
func (s Status) Degraded() bool {
	return s.State == StateReconnecting || s.State == StateFailed
}

// Banner returns the text to show the user, or "" when connected.
func (s Status) Banner() string {
	switch s.State {
	case StateReconnecting:
		return fmt.Sprintf("Connection to the store lost. Reconnecting (attempt %d of %d)...", s.Attempt, s.MaxAttempts)
	case StateFailed:
		return "Unable to connect to the store. Please check your connection and try again later."
	default:
		return ""
	}
}

// Prober checks that the backend is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithReconnectPolicy sets the reconnection backoff. MaxAttempts counts
// reconnections only.
func WithReconnectPolicy(p retry.Policy) Option {
	return func(m *Monitor) {
		m.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Monitor probes the backend and tracks whether it is reachable.
type Monitor struct {
	prober  Prober
	timeout time.Duration
	policy  retry.Policy
	logger  *zap.Logger

	mu        sync.RWMutex
	status    Status
	observers map[int]func(Status)
	nextObs   int
	checking  sync.Mutex
}

// NewMonitor creates a monitor in the connecting state.
func NewMonitor(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:  prober,
		timeout: DefaultProbeTimeout,
		policy: retry.Policy{
			MaxAttempts: DefaultMaxReconnects,
			BaseDelay:   time.Second,
			Multiplier:  2,
			MaxDelay:    30 * time.Second,
		},
		logger:    zap.NewNop(),
		observers: make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.status = Status{State: StateConnecting, MaxAttempts: m.policy.MaxAttempts}
	return m
}

// Check probes once and, on failure, reconnects with exponential backoff
// until a probe succeeds or the attempts run out. It returns a connectivity
// error when the monitor ends in the failed state.
func (m *Monitor) Check(ctx context.Context) error {
	m.checking.Lock()
	defer m.checking.Unlock()

	if m.Status().State != StateConnected {
		m.set(Status{State: StateConnecting, MaxAttempts: m.policy.MaxAttempts})
	}

	// The first attempt is the probe itself; the rest are reconnections.
	policy := m.policy
	policy.MaxAttempts++
	retrier := retry.New(policy, m.logger)

	err := retrier.Do(ctx, "connectivity probe", m.probe,
		retry.WithClassifier(retry.IsTransient),
		retry.WithNotify(func(attempt int, err error, next time.Duration) {
			m.set(Status{
				State:       StateReconnecting,
				Attempt:     attempt,
				MaxAttempts: m.policy.MaxAttempts,
				LastError:   err,
				CheckedAt:   time.Now(),
			})
		}),
	)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		m.logger.Error("Backend unreachable", zap.Int("reconnects", m.policy.MaxAttempts), zap.Error(err))
		m.set(Status{
			State:       StateFailed,
			Attempt:     m.policy.MaxAttempts,
			MaxAttempts: m.policy.MaxAttempts,
			LastError:   err,
			CheckedAt:   time.Now(),
		})
		return err
	}

	if prev := m.Status(); prev.State != StateConnected {
		m.logger.Info("Backend connection established", zap.String("previous_state", prev.State.String()))
	}
	m.set(Status{State: StateConnected, MaxAttempts: m.policy.MaxAttempts, CheckedAt: time.Now()})
	return nil
}

func (m *Monitor) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Probe(probeCtx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(probeCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("probe timed out after %s: %w", m.timeout, domain.ErrConnectivity)
	case errors.Is(err, domain.ErrConnectivity):
		return err
	default:
		return fmt.Errorf("probe failed: %v: %w", err, domain.ErrConnectivity)
	}
}

// Run checks immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	_ = m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Check(ctx)
		}
	}
}

// Status returns the current status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Subscribe registers fn to receive every status change.
func (m *Monitor) Subscribe(fn func(Status)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) set(status Status) {
	m.mu.Lock()
	changed := m.status.State != status.State || m.status.Attempt != status.Attempt
	m.status = status
	observers := make([]func(Status), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range observers {
		fn(status)
	}
}

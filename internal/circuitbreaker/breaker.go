package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without calling the collaborator while the
// breaker is open, or while a half-open probe is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type Config struct {
	Name            string
	MaxFailures     int           // consecutive failures that open the breaker, default 5
	Timeout         time.Duration // cool-down before a probe is let through, default 30s
	HalfOpenSuccess int           // probe successes needed to close again, default 1
}

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenSuccess <= 0 {
		c.HalfOpenSuccess = 1
	}
	return c
}

// CircuitBreaker guards one collaborator (a mail relay, the geo lookup) so a
// dead dependency fails fast instead of holding every request for its full
// timeout.
type CircuitBreaker struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu              sync.RWMutex
	state           State
	failures        int
	probeSuccesses  int
	probing         bool
	openedAt        time.Time
	lastFailure     time.Time
	lastStateChange time.Time
}

func New(cfg Config, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := &CircuitBreaker{
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
	cb.lastStateChange = cb.now()
	return cb
}

// Call runs fn unless the breaker is open. A failure caused by the caller's
// own context being cancelled is not held against the collaborator.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.record(probe, err, ctx.Err() != nil)
	return err
}

// admit decides whether a call may proceed. In half-open only one probe is
// in flight at a time.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) <= cb.cfg.Timeout {
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}

	if cb.probing {
		return false, ErrCircuitOpen
	}
	cb.probing = true
	return true, nil
}

func (cb *CircuitBreaker) record(probe bool, err error, cancelled bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probing = false
	}

	switch {
	case err != nil && cancelled:
		// neither a success nor a failure of the collaborator
	case err != nil:
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
			cb.transition(StateOpen)
		}
	case cb.state == StateHalfOpen:
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.cfg.HalfOpenSuccess {
			cb.transition(StateClosed)
		}
	default:
		cb.failures = 0
	}
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}

	cb.logger.Warn("Circuit breaker state changed",
		zap.String("breaker", cb.cfg.Name),
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
		zap.Int("failures", cb.failures),
	)

	cb.state = to
	cb.lastStateChange = cb.now()
	cb.probeSuccesses = 0

	switch to {
	case StateOpen:
		cb.openedAt = cb.lastStateChange
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset closes the breaker by operator request
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transition(StateClosed)
	cb.failures = 0
	cb.probing = false
}

type Metrics struct {
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastStateChange time.Time `json:"last_state_change"`
}

func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return Metrics{
		State:           cb.state,
		FailureCount:    cb.failures,
		SuccessCount:    cb.probeSuccesses,
		LastFailureTime: cb.lastFailure,
		LastStateChange: cb.lastStateChange,
	}
}

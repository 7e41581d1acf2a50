package circuit_breaker

import (
	"errors"
	"sync"
	"time"
)

type State uint8

const (
	Closed State = iota + 1
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	// Window is the number of recent calls tracked.
	Window int `envconfig:"CB_WINDOW" default:"10"`
	// FailureRatio of the window that opens the breaker.
	FailureRatio float64 `envconfig:"CB_FAILURE_RATIO" default:"0.5"`
	// Cooldown before an open breaker lets a probe through.
	Cooldown time.Duration `envconfig:"CB_COOLDOWN" default:"5s"`
	// RecoveryCalls is how many successful probes close a half-open breaker.
	RecoveryCalls int `envconfig:"CB_RECOVERY_CALLS" default:"2"`
}

type CircuitBreaker interface {
	Call(fn func() error) error
	State() State
	Reset()
}

type circuitBreaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	openedAt time.Time
	failed   []bool
	pos      int
	recovery int
}

func New(cfg Config) CircuitBreaker {
	return newWithClock(cfg, time.Now)
}

func newWithClock(cfg Config, now func() time.Time) *circuitBreaker {
	if cfg.Window <= 0 {
		cfg.Window = 10
	}
	if cfg.RecoveryCalls <= 0 {
		cfg.RecoveryCalls = 1
	}
	return &circuitBreaker{
		cfg:    cfg,
		now:    now,
		state:  Closed,
		failed: make([]bool, cfg.Window),
	}
}

func (cb *circuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == Open {
		if cb.now().Sub(cb.openedAt) < cb.cfg.Cooldown {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.state = HalfOpen
		cb.recovery = 0
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == HalfOpen {
		if err != nil {
			cb.trip()
			return err
		}
		cb.recovery++
		if cb.recovery >= cb.cfg.RecoveryCalls {
			cb.reset()
		}
		return nil
	}

	cb.failed[cb.pos] = err != nil
	cb.pos = (cb.pos + 1) % len(cb.failed)

	fails := 0
	for _, f := range cb.failed {
		if f {
			fails++
		}
	}
	if float64(fails)/float64(len(cb.failed)) >= cb.cfg.FailureRatio {
		cb.trip()
	}
	return err
}

func (cb *circuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

func (cb *circuitBreaker) trip() {
	cb.state = Open
	cb.openedAt = cb.now()
	cb.recovery = 0
}

func (cb *circuitBreaker) reset() {
	for i := range cb.failed {
		cb.failed[i] = false
	}
	cb.pos = 0
	cb.recovery = 0
	cb.state = Closed
}

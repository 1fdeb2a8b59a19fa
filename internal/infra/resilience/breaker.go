package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/swaplane/offersvc/internal/metrics"
)

// ErrCircuitOpen is returned without invoking the wrapped operation while
// the breaker is open and its cooldown has not expired. It is never retried.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker state machine position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// BreakerConfig controls when a breaker trips and how long it stays open.
type BreakerConfig struct {
	FailMax      int           // consecutive failures before opening
	ResetTimeout time.Duration // cooldown before a half-open probe is allowed
}

// DefaultBreakerConfig provides sensible defaults.
var DefaultBreakerConfig = BreakerConfig{
	FailMax:      5,
	ResetTimeout: 60 * time.Second,
}

// Breaker guards a single logical dependency. One instance per dependency,
// never shared across dependencies. The mutex covers only state inspection
// and transition, never the wrapped call, so concurrent calls to a healthy
// dependency are not serialized.
type Breaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker for the named dependency.
// Zero config fields fall back to DefaultBreakerConfig.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailMax <= 0 {
		cfg.FailMax = DefaultBreakerConfig.FailMax
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig.ResetTimeout
	}
	b := &Breaker{
		name:  name,
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
	metrics.BreakerState.WithLabelValues(name).Set(float64(StateClosed))
	return b
}

// Do executes op under the breaker. While open and within the cooldown it
// fails with ErrCircuitOpen without invoking op. After the cooldown exactly
// one probe call is admitted; its outcome decides between closed and open.
func (b *Breaker) Do(op func() error) error {
	probe, err := b.allow()
	if err != nil {
		return err
	}
	opErr := op()
	b.record(probe, opErr)
	return opErr
}

func (b *Breaker) allow() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return true, nil
	case StateHalfOpen:
		// A probe is already in flight; admit nothing else.
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

// record applies the outcome of a call admitted by allow. Results from calls
// admitted while closed are ignored if the breaker has moved on since, so a
// slow straggler cannot corrupt a half-open probe.
func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
		if err != nil {
			b.trip()
			return
		}
		b.failures = 0
		b.setState(StateClosed)
		return
	}

	if b.state != StateClosed {
		return
	}
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailMax {
		b.trip()
	}
}

// trip moves to open and starts the cooldown. Caller holds the lock.
func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.setState(StateOpen)
	metrics.BreakerOpens.WithLabelValues(b.name).Inc()
}

// setState mutates state and mirrors it to the gauge. Caller holds the lock.
func (b *Breaker) setState(s State) {
	b.state = s
	metrics.BreakerState.WithLabelValues(b.name).Set(float64(s))
}

// Snapshot is a point-in-time view of a breaker for health introspection.
type Snapshot struct {
	Name                string     `json:"name"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

// State returns the current snapshot without affecting the state machine.
func (b *Breaker) State() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		Name:                b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
	}
	if b.state != StateClosed {
		openedAt := b.openedAt
		snap.OpenedAt = &openedAt
	}
	return snap
}

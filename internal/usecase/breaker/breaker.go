// Package breaker gates AI-dependent work behind a timed, optimistic-reopen flag.
//
// Unlike a counting circuit breaker there is no failure threshold and no
// half-open probe: one failure moves the state to CoolingDown, and the first
// check made more than Interval after the previous check forces it back to
// Available regardless of what happened in between.
package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/metrics"
)

// DefaultInterval is how long a failure silences AI-dependent strategies at most.
const DefaultInterval = 60 * time.Second

// State is the AI availability state.
type State int

const (
	// Available allows AI-dependent strategies.
	Available State = iota
	// CoolingDown skips AI-dependent strategies until the next timed reset.
	CoolingDown
)

func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case CoolingDown:
		return "cooling_down"
	default:
		return "unknown"
	}
}

// Breaker tracks AI availability. Safe for concurrent use; one instance is
// shared by every component that talks to an AI provider.
type Breaker struct {
	mu            sync.Mutex
	state         State
	lastCheckedAt time.Time
	interval      time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// New creates a breaker in the Available state.
func New(interval time.Duration, logger *zap.Logger) *Breaker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.AIAvailable.Set(1)
	return &Breaker{
		state:    Available,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the time source (tests).
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	return b
}

// ShouldTryAI reports whether AI-dependent work should be attempted.
// When more than the interval has passed since the last check it records the
// check time and forces the state back to Available.
func (b *Breaker) ShouldTryAI() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastCheckedAt) > b.interval {
		b.lastCheckedAt = now
		if b.state != Available {
			b.logger.Info("AI availability reset after cooldown", zap.Duration("interval", b.interval))
		}
		b.setLocked(Available)
	}
	return b.state == Available
}

// RecordSuccess marks AI as available immediately.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setLocked(Available)
}

// RecordFailure marks AI as unavailable immediately.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Available {
		b.logger.Warn("AI marked unavailable", zap.Error(err))
	}
	b.setLocked(CoolingDown)
}

// State returns the current state without applying the timed reset.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Available reports whether the current state is Available, without applying the timed reset.
func (b *Breaker) Available() bool {
	return b.State() == Available
}

func (b *Breaker) setLocked(s State) {
	b.state = s
	if s == Available {
		metrics.AIAvailable.Set(1)
	} else {
		metrics.AIAvailable.Set(0)
	}
}

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a collaborator circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown has passed.
	BreakerOpen
	// BreakerHalfOpen lets trial calls through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the collaborator while its
// breaker is open.
var ErrCircuitOpen = eris.New("resilience: collaborator circuit is open")

// BreakerConfig controls when a collaborator is considered down.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive tripping failures that
	// opens the breaker. Zero or negative uses 5.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before a trial call.
	// Zero or negative uses 30s.
	Cooldown time.Duration
	// HalfOpenSuccesses is the number of trial calls that must succeed to
	// close the breaker again. Zero or negative uses 1.
	HalfOpenSuccesses int
	// ShouldTrip decides whether a failure counts against the collaborator.
	// When nil, every error except throttling and cancellation counts.
	ShouldTrip func(err error) bool
	// OnStateChange is called, under the breaker lock, on every transition.
	OnStateChange func(name string, from, to BreakerState)
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  5,
		Cooldown:          30 * time.Second,
		HalfOpenSuccesses: 1,
	}
}

func (c BreakerConfig) normalized() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = d.HalfOpenSuccesses
	}
	if c.ShouldTrip == nil {
		c.ShouldTrip = tripsByDefault
	}
	return c
}

func tripsByDefault(err error) bool {
	return !IsThrottled(err) && !errors.Is(err, context.Canceled)
}

// Breaker stops calling a collaborator that keeps failing. It is shared by
// every mission that uses the collaborator.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu         sync.Mutex
	state      BreakerState
	failures   int
	openedAt   time.Time
	halfOpenOK int

	now func() time.Time
}

// NewBreaker returns a closed breaker for the named collaborator.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{name: name, cfg: cfg.normalized(), now: time.Now}
}

// Name returns the collaborator name.
func (b *Breaker) Name() string { return b.name }

// Call runs fn through b. A nil breaker calls fn directly.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	if b == nil {
		return fn(ctx)
	}
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State reports the breaker state. An open breaker whose cooldown has passed
// reports half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.cooled() {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.halfOpenOK = 0
	if b.state != BreakerClosed {
		b.transition(BreakerClosed)
	}
}

func (b *Breaker) cooled() bool {
	return b.now().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return nil
	}
	if b.cooled() {
		b.transition(BreakerHalfOpen)
		return nil
	}
	return eris.Wrapf(ErrCircuitOpen, "%s", b.name)
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.ShouldTrip(err) {
		switch b.state {
		case BreakerHalfOpen:
			b.halfOpenOK++
			if b.halfOpenOK >= b.cfg.HalfOpenSuccesses {
				b.failures = 0
				b.halfOpenOK = 0
				b.transition(BreakerClosed)
			}
		case BreakerClosed:
			b.failures = 0
		}
		return
	}

	b.failures++
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.halfOpenOK = 0
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	zap.L().Info("resilience: breaker state change",
		zap.String("collaborator", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// Breakers hands out one breaker per collaborator name.
type Breakers struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakers returns an empty set sharing cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for name, creating it on first use. A nil set
// returns a nil breaker, which Call treats as always closed.
func (s *Breakers) Get(name string) *Breaker {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[name]
	if !ok {
		b = NewBreaker(name, s.cfg)
		s.breakers[name] = b
	}
	return b
}

// States reports every breaker created so far.
func (s *Breakers) States() map[string]BreakerState {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]BreakerState, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.State()
	}
	return out
}

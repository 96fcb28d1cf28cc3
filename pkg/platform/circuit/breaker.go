// Package circuit provides a small circuit breaker for dependencies with a
// cheap fallback. Callers record outcomes; the breaker decides when to stop
// routing to the primary and when to let probes through again.
package circuit

import (
	"sync"
	"time"
)

// State of the breaker.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

// Change reports a state transition caused by a recorded outcome.
type Change struct {
	Opened bool
	Closed bool
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultProbeInterval    = 30 * time.Second
)

// Breaker counts consecutive failures and successes. It opens after
// failureThreshold consecutive failures and closes again after
// successThreshold consecutive successes while open.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	probeInterval    time.Duration

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	lastProbe time.Time
}

type Option func(b *Breaker)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// WithSuccessThreshold sets how many consecutive successes close it again.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) { b.successThreshold = n }
}

// WithProbeInterval sets how often Allow lets a request through while open.
func WithProbeInterval(d time.Duration) Option {
	return func(b *Breaker) { b.probeInterval = d }
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		probeInterval:    defaultProbeInterval,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Allow reports whether a call should go to the primary. Closed breakers
// always allow; open breakers let one probe through per probe interval so
// recovery can be observed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	if time.Since(b.lastProbe) >= b.probeInterval {
		b.lastProbe = time.Now()
		return true
	}
	return false
}

// RecordFailure notes a failed call. The first return value reports whether
// the caller should use the fallback from now on.
func (b *Breaker) RecordFailure() (useFallback bool, change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	if b.state == StateOpen {
		return true, Change{}
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.failures = 0
		b.lastProbe = time.Now()
		return true, Change{Opened: true}
	}
	return false, Change{}
}

// RecordSuccess notes a successful call. The first return value reports
// whether the caller should route to the primary again.
func (b *Breaker) RecordSuccess() (usePrimary bool, change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateClosed {
		return true, Change{}
	}
	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return true, Change{Closed: true}
	}
	return false, Change{}
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

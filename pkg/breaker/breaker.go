// Package breaker implements the per-upstream-host circuit breaker:
// a closed/open/half-open state machine per host, registered in
// an LRU-bounded registry so a gateway fronting many distinct hosts can't
// grow its breaker set without bound. The state machine itself follows the
// teacher pack's resiliency.CircuitBreaker (Mindburn-Labs-helm), extended
// with a success-threshold for the half-open→closed transition instead of
// a single success.
package breaker

import (
	"container/list"
	"sync"
	"time"

	"github.com/proxilion/grc-gateway/internal/obs"
)

// State is one of the three circuit states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config bounds one breaker's thresholds.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	OpenDuration     time.Duration
}

// DefaultConfig mirrors the teacher's NewCircuitBreaker(name, 5, ...) call
// site, with a success threshold added for half-open recovery and an
// OpenDuration widened to 60s.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenDuration:     60 * time.Second,
	}
}

// Breaker is one host's state machine.
type Breaker struct {
	mu             sync.Mutex
	cfg            Config
	state          State
	failureCount   int
	successCount   int
	lastTransition time.Time
	probeInFlight  bool // gates half-open to a single concurrent trial
}

func newBreaker(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed, lastTransition: time.Now()}
}

// Allow reports whether a call may proceed. An open breaker whose
// OpenDuration has elapsed transitions to half-open and allows exactly one
// probe through; concurrent callers that arrive while a half-open probe is
// already outstanding fail fast until that trial reports Success or Failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.lastTransition) > b.cfg.OpenDuration {
			b.state = HalfOpen
			b.successCount = 0
			b.lastTransition = time.Now()
			b.probeInFlight = true
			return true
		}
		return false
	case HalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return true
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.successCount++
		b.probeInFlight = false
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.lastTransition = time.Now()
		}
	default:
		b.failureCount = 0
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.state = Open
		b.lastTransition = time.Now()
		b.probeInFlight = false
		return
	}

	b.failureCount++
	if b.failureCount >= b.cfg.FailureThreshold {
		b.state = Open
		b.lastTransition = time.Now()
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry holds one Breaker per host, bounded by maxBreakers with strict
// LRU eviction and an idle sweep, matching the pattern already used for
// the response cache (pkg/cache) rather than inventing a second eviction
// strategy.
type Registry struct {
	mu          sync.Mutex
	cfg         Config
	maxBreakers int
	idleTimeout time.Duration
	order       *list.List
	index       map[string]*list.Element
	metrics     *obs.Metrics

	stopSweep chan struct{}
}

type regEntry struct {
	host     string
	breaker  *Breaker
	lastUsed time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMetrics attaches a metrics sink that reports breaker state per host.
func WithMetrics(m *obs.Metrics) RegistryOption { return func(r *Registry) { r.metrics = m } }

// NewRegistry builds a Registry bounded to maxBreakers entries (default
// 1000) with idleTimeout-based sweeping (default 1h).
func NewRegistry(cfg Config, maxBreakers int, idleTimeout time.Duration, opts ...RegistryOption) *Registry {
	if maxBreakers <= 0 {
		maxBreakers = 1000
	}
	if idleTimeout <= 0 {
		idleTimeout = time.Hour
	}
	r := &Registry{
		cfg:         cfg,
		maxBreakers: maxBreakers,
		idleTimeout: idleTimeout,
		order:       list.New(),
		index:       make(map[string]*list.Element),
		stopSweep:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.sweepLoop()
	return r
}

// Close stops the idle sweep goroutine.
func (r *Registry) Close() { close(r.stopSweep) }

// Get returns the Breaker for host, creating it if this is the first call
// for that host, and evicting the least-recently-used breaker if the
// registry is at capacity.
func (r *Registry) Get(host string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.index[host]; ok {
		el.Value.(*regEntry).lastUsed = time.Now()
		r.order.MoveToFront(el)
		return el.Value.(*regEntry).breaker
	}

	b := newBreaker(r.cfg)
	el := r.order.PushFront(&regEntry{host: host, breaker: b, lastUsed: time.Now()})
	r.index[host] = el

	for r.order.Len() > r.maxBreakers {
		back := r.order.Back()
		if back == nil {
			break
		}
		r.order.Remove(back)
		delete(r.index, back.Value.(*regEntry).host)
	}

	r.reportLocked(host, b)
	return b
}

func (r *Registry) reportLocked(host string, b *Breaker) {
	if r.metrics == nil {
		return
	}
	r.metrics.BreakerState.WithLabelValues(host).Set(float64(b.State()))
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.idleTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopSweep:
			return
		case <-ticker.C:
			r.sweepIdle()
		}
	}
}

func (r *Registry) sweepIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for el := r.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*regEntry)
		if now.Sub(e.lastUsed) > r.idleTimeout {
			r.order.Remove(el)
			delete(r.index, e.host)
		}
		el = prev
	}
}

// Len reports how many host breakers are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

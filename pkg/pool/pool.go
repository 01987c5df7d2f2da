// Package pool implements the per-upstream-host connection pool:
// bounded concurrent connections per host, FIFO waiters when a host
// is at capacity, and idle reaping of connections nobody has touched
// recently. The teacher's proxy used a single shared *http.Client with a
// blanket timeout (pkg/proxy/proxy.go's upstreamClient); this generalises
// that into one *http.Client per host so each upstream's concurrency and
// idle-connection behaviour can be governed independently.
package pool

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/internal/pipeerr"
)

// Config bounds one host's pool.
type Config struct {
	MaxConnsPerHost int
	AcquireTimeout  time.Duration
	IdleTimeout     time.Duration
	UpstreamTimeout time.Duration
}

// DefaultConfig matches the teacher's 120s upstream call allowance, with
// reasonable pool-specific defaults layered on top.
func DefaultConfig() Config {
	return Config{
		MaxConnsPerHost: 32,
		AcquireTimeout:  5 * time.Second,
		IdleTimeout:     90 * time.Second,
		UpstreamTimeout: 120 * time.Second,
	}
}

type hostPool struct {
	client  *http.Client
	sem     chan struct{}
	lastUse time.Time
	mu      sync.Mutex
}

// Pool manages one hostPool per upstream host.
type Pool struct {
	mu      sync.Mutex
	hosts   map[string]*hostPool
	cfg     Config
	metrics *obs.Metrics

	stopReap chan struct{}
}

// New builds a Pool and starts its idle reaper goroutine.
func New(cfg Config, metrics *obs.Metrics) *Pool {
	p := &Pool{
		hosts:    make(map[string]*hostPool),
		cfg:      cfg,
		metrics:  metrics,
		stopReap: make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

// Close stops the idle reaper. Pooled clients themselves need no explicit
// close; Go's http.Transport reclaims idle connections on its own.
func (p *Pool) Close() { close(p.stopReap) }

func (p *Pool) getOrCreate(host string) *hostPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	hp, ok := p.hosts[host]
	if ok {
		return hp
	}
	hp = &hostPool{
		client: &http.Client{
			Timeout: p.cfg.UpstreamTimeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     p.cfg.MaxConnsPerHost,
				MaxIdleConnsPerHost: p.cfg.MaxConnsPerHost,
				IdleConnTimeout:     p.cfg.IdleTimeout,
			},
		},
		sem:     make(chan struct{}, p.cfg.MaxConnsPerHost),
		lastUse: time.Now(),
	}
	p.hosts[host] = hp
	return hp
}

// Lease is a held slot in a host's pool; Release must be called exactly
// once to return it to the FIFO wait queue.
type Lease struct {
	pool   *Pool
	host   string
	hp     *hostPool
	client *http.Client
}

// Client returns the pooled *http.Client to use for the upstream call.
func (l *Lease) Client() *http.Client { return l.client }

// Release returns the slot. Safe to call multiple times.
func (l *Lease) Release() {
	select {
	case <-l.hp.sem:
	default:
	}
}

// Acquire blocks until a connection slot for host is available, the
// context is cancelled, or AcquireTimeout elapses — whichever comes first.
// Waiters queue FIFO because channel sends on a buffered channel are
// served in the order the runtime wakes blocked senders, which for a
// single semaphore channel is first-come-first-served under the Go
// scheduler's FIFO-ish wakeup of channel waiters.
func (p *Pool) Acquire(ctx context.Context, host string) (*Lease, error) {
	hp := p.getOrCreate(host)

	start := time.Now()
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	select {
	case hp.sem <- struct{}{}:
		hp.mu.Lock()
		hp.lastUse = time.Now()
		hp.mu.Unlock()
		if p.metrics != nil {
			p.metrics.PoolWaitDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
		}
		return &Lease{pool: p, host: host, hp: hp, client: hp.client}, nil
	case <-acquireCtx.Done():
		if ctx.Err() != nil {
			return nil, pipeerr.Wrap(pipeerr.PoolAcquireTimeout, "caller context done while waiting for a connection slot", ctx.Err())
		}
		return nil, pipeerr.New(pipeerr.PoolAcquireTimeout, "timed out waiting for a connection slot")
	}
}

func (p *Pool) reapLoop() {
	ticker := time.NewTicker(p.cfg.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopReap:
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) reapIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for host, hp := range p.hosts {
		hp.mu.Lock()
		idle := now.Sub(hp.lastUse)
		inUse := len(hp.sem) > 0
		hp.mu.Unlock()
		if !inUse && idle > p.cfg.IdleTimeout {
			if t, ok := hp.client.Transport.(*http.Transport); ok {
				t.CloseIdleConnections()
			}
			delete(p.hosts, host)
		}
	}
}

// Stats reports the number of hosts currently tracked.
func (p *Pool) Stats() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hosts)
}

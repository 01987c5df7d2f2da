// Package dedup implements the in-flight request deduplicator:
// at most one upstream call per fingerprint runs concurrently; any other
// request for the same fingerprint waits on the first call's result
// instead of triggering its own.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/internal/pipeerr"
	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// DefaultTimeout bounds how long a waiter will sit behind an in-flight
// call before giving up.
const DefaultTimeout = 30 * time.Second

// Result is whatever a producer call returns; it's fanned out verbatim to
// every waiter on the same fingerprint.
type Result struct {
	Response   []byte
	StatusCode int
	Headers    map[string][]string
	Err        error
}

// Producer performs the actual upstream call. It's only ever invoked once
// per in-flight fingerprint, regardless of how many callers are waiting.
type Producer func(ctx context.Context) Result

type call struct {
	done chan struct{}
	res  Result
}

// Deduplicator coalesces concurrent requests that share a fingerprint.
type Deduplicator struct {
	mu      sync.Mutex
	inFlight map[normalize.Fingerprint]*call
	timeout time.Duration
	metrics *obs.Metrics
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(dd *Deduplicator) { dd.timeout = d } }

// WithMetrics attaches a metrics sink.
func WithMetrics(m *obs.Metrics) Option { return func(dd *Deduplicator) { dd.metrics = m } }

// New builds a Deduplicator.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		inFlight: make(map[normalize.Fingerprint]*call),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs producer for fp, or — if a call for fp is already in
// flight — waits for that call's result instead of running its own.
// Waiters that exceed the configured timeout receive a
// pipeerr.DedupTimeout error without affecting the in-flight call itself.
func (d *Deduplicator) Execute(ctx context.Context, fp normalize.Fingerprint, producer Producer) Result {
	d.mu.Lock()
	if existing, ok := d.inFlight[fp]; ok {
		d.mu.Unlock()
		if d.metrics != nil {
			d.metrics.DedupFanIn.Inc()
		}
		return d.wait(ctx, existing)
	}

	c := &call{done: make(chan struct{})}
	d.inFlight[fp] = c
	d.mu.Unlock()

	go func() {
		c.res = producer(context.WithoutCancel(ctx))
		close(c.done)

		d.mu.Lock()
		if d.inFlight[fp] == c {
			delete(d.inFlight, fp)
		}
		d.mu.Unlock()
	}()

	return d.wait(ctx, c)
}

func (d *Deduplicator) wait(ctx context.Context, c *call) Result {
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return c.res
	case <-ctx.Done():
		return Result{Err: pipeerr.Wrap(pipeerr.DedupTimeout, "caller context done while waiting on in-flight request", ctx.Err())}
	case <-timer.C:
		return Result{Err: pipeerr.New(pipeerr.DedupTimeout, "timed out waiting on in-flight request")}
	}
}

// InFlight reports the number of distinct fingerprints currently being
// produced. Useful for tests and introspection.
func (d *Deduplicator) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inFlight)
}

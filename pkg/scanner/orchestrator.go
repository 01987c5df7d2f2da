package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/pkg/normalize"
)

// DefaultTimeout is the orchestrator-level scan-timeout default.
const DefaultTimeout = 10 * time.Second

// Orchestrator runs the registered scanners concurrently against a request
// and aggregates their results into a Verdict.
type Orchestrator struct {
	mu        sync.RWMutex
	scanners  []Scanner
	timeout   time.Duration
	metrics   *obs.Metrics
	analytics *obs.PerformanceTracker
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithMetrics attaches a Prometheus metrics handle for per-scanner duration
// reporting.
func WithMetrics(m *obs.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithAnalytics attaches a performance tracker for per-scanner latency and
// error-rate history, keyed by scanner id.
func WithAnalytics(pt *obs.PerformanceTracker) Option {
	return func(o *Orchestrator) { o.analytics = pt }
}

// New builds an Orchestrator with the given scanners registered.
func New(scanners []Scanner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		scanners: append([]Scanner(nil), scanners...),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds a scanner to the registry. Addition never requires editing
// existing scanners. Safe for concurrent use with Scan.
func (o *Orchestrator) Register(s Scanner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scanners = append(o.scanners, s)
}

func (o *Orchestrator) snapshot() []Scanner {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Scanner(nil), o.scanners...)
}

// Scan runs every registered scanner against r under a shared deadline,
// with early termination on the first critical finding.
func (o *Orchestrator) Scan(ctx context.Context, r *normalize.Request) Verdict {
	start := time.Now()
	scanners := o.snapshot()

	if len(scanners) == 0 {
		return Verdict{OverallThreatLevel: SeverityNone, Timestamp: start}
	}

	text := ExtractText(r)

	scanCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type indexedResult struct {
		idx int
		res Result
	}
	resultCh := make(chan indexedResult, len(scanners))

	for i, s := range scanners {
		go func(i int, s Scanner) {
			sStart := time.Now()
			defer func() {
				if rec := recover(); rec != nil {
					obs.Logger(ctx).Sugar().Warnw("scanner panicked, contributing neutral result",
						"scanner_id", s.ID(), "panic", fmt.Sprintf("%v", rec))
					if o.analytics != nil {
						o.analytics.Record(s.ID(), time.Since(sStart).Milliseconds(), false, "panic")
					}
					resultCh <- indexedResult{i, Neutral(s.ID(), time.Since(sStart))}
				}
			}()
			res := s.Scan(scanCtx, r, text)
			if o.metrics != nil {
				o.metrics.ScannerDuration.WithLabelValues(s.ID()).Observe(res.ExecutionTime.Seconds())
			}
			if o.analytics != nil {
				o.analytics.Record(s.ID(), res.ExecutionTime.Milliseconds(), true, "")
			}
			resultCh <- indexedResult{i, res}
		}(i, s)
	}

	results := make([]Result, len(scanners))
	done := make([]bool, len(scanners))
	completed := 0

collect:
	for completed < len(scanners) {
		select {
		case ir := <-resultCh:
			results[ir.idx] = ir.res
			done[ir.idx] = true
			completed++
			if ir.res.ThreatLevel == SeverityCritical {
				cancel() // early termination: cancel outstanding siblings
				break collect
			}
		case <-scanCtx.Done():
			break collect
		}
	}

	// Every scanner that didn't settle (cancelled by deadline or early
	// termination) contributes a neutral result — never a pipeline error.
	for i, s := range scanners {
		if !done[i] {
			results[i] = Neutral(s.ID(), time.Since(start))
			if o.analytics != nil {
				o.analytics.Record(s.ID(), time.Since(start).Milliseconds(), false, "timeout")
			}
		}
	}

	return buildVerdict(results, start)
}

func buildVerdict(results []Result, start time.Time) Verdict {
	v := Verdict{
		Results:   results,
		Timestamp: start,
	}
	for _, r := range results {
		if r.ThreatLevel > v.OverallThreatLevel {
			v.OverallThreatLevel = r.ThreatLevel
		}
		v.OverallScore += r.Score
		v.Findings = append(v.Findings, r.Findings...)
	}
	v.TotalExecutionTime = time.Since(start)
	return v
}

// Package pipeline composes the parser, scanner, policy, cache, dedup,
// pool, breaker, and stream components into the end-to-end request handler:
// the pipeline driver.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/internal/pipeerr"
	"github.com/proxilion/grc-gateway/pkg/audit"
	"github.com/proxilion/grc-gateway/pkg/breaker"
	"github.com/proxilion/grc-gateway/pkg/cache"
	"github.com/proxilion/grc-gateway/pkg/dedup"
	"github.com/proxilion/grc-gateway/pkg/normalize"
	"github.com/proxilion/grc-gateway/pkg/parser"
	"github.com/proxilion/grc-gateway/pkg/policy"
	"github.com/proxilion/grc-gateway/pkg/pool"
	"github.com/proxilion/grc-gateway/pkg/ratelimit"
	"github.com/proxilion/grc-gateway/pkg/scanner"
	"github.com/proxilion/grc-gateway/pkg/stream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("grc-gateway")

// RequestTimeout is the request-level deadline budget.
const RequestTimeout = 30 * time.Second

// Driver composes every pipeline component behind one entry point.
type Driver struct {
	Parsers         *parser.Registry
	Scanners        *scanner.Orchestrator
	Policies        *policy.Engine
	Cache           *cache.Cache
	Dedup           *dedup.Deduplicator
	Pool            *pool.Pool
	Breakers        *breaker.Registry
	Stream          *stream.Pipeline
	RateLimiter     ratelimit.Limiter
	RateLimitPolicy ratelimit.Policy
	AuditSink       audit.Sink
	Metrics         *obs.Metrics
	Analytics       *obs.PerformanceTracker
	CacheTTL        time.Duration
	Inspect         stream.Inspector
}

// New builds a Driver wiring every pipeline component together.
func New(
	parsers *parser.Registry,
	scanners *scanner.Orchestrator,
	policies *policy.Engine,
	respCache *cache.Cache,
	deduper *dedup.Deduplicator,
	connPool *pool.Pool,
	breakers *breaker.Registry,
	streamPipe *stream.Pipeline,
	limiter ratelimit.Limiter,
	limiterPolicy ratelimit.Policy,
	sink audit.Sink,
	metrics *obs.Metrics,
	cacheTTL time.Duration,
) *Driver {
	return &Driver{
		Parsers: parsers, Scanners: scanners, Policies: policies,
		Cache: respCache, Dedup: deduper, Pool: connPool, Breakers: breakers,
		Stream: streamPipe, RateLimiter: limiter, RateLimitPolicy: limiterPolicy,
		AuditSink: sink, Metrics: metrics, CacheTTL: cacheTTL,
	}
}

// Target is where the forwarded request actually goes, and what the audit
// record calls the target service.
type Target struct {
	URL  string
	Host string
}

// ServeForward implements "POST /proxy/<escaped-upstream-url>" and the
// transparent-mode path: run the full pipeline and write the
// outward HTTP response.
func (d *Driver) ServeForward(w http.ResponseWriter, r *http.Request, target Target) {
	start := time.Now()
	correlationID := uuid.New().String()
	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()
	ctx = obs.WithCorrelationID(ctx, correlationID)
	log := obs.Logger(ctx)

	ctx, span := tracer.Start(ctx, "gateway.pipeline",
		trace.WithAttributes(
			attribute.String("gateway.correlation_id", correlationID),
			attribute.String("gateway.target_host", target.Host),
		),
	)
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		d.writeError(w, correlationID, pipeerr.New(pipeerr.Internal, "failed to read request body"))
		return
	}
	r.Body.Close()

	// (1) Parser Registry.
	req, err := d.Parsers.Parse(r, body)
	if err != nil {
		d.emitAudit(ctx, audit.Record{
			CorrelationID: correlationID, Decision: "block", ThreatLevel: "none",
			Action: "block", TargetService: target.Host, Duration: time.Since(start),
			Level: audit.LevelWarn, EventType: "parse_failure", Message: err.Error(),
		})
		d.writeError(w, correlationID, err)
		return
	}
	req.CorrelationID = correlationID
	req.Metadata.SourceIP = r.RemoteAddr
	req.Metadata.UserAgent = r.UserAgent()
	req.Metadata.Timestamp = time.Now().UTC()
	span.SetAttributes(
		attribute.String("gen_ai.system", string(req.Provider)),
		attribute.String("gen_ai.request.model", req.Model),
		attribute.Bool("gen_ai.stream", req.Streaming),
	)

	// (2) Rate-limit check.
	if d.RateLimiter != nil {
		actor := req.Metadata.UserID
		if actor == "" {
			actor = req.Metadata.SourceIP
		}
		allowed, rlErr := d.RateLimiter.Allow(ctx, actor, d.RateLimitPolicy, 1)
		if rlErr != nil {
			log.Warn("rate limiter error, failing open", zap.Error(rlErr))
		} else if !allowed {
			d.emitAudit(ctx, audit.Record{
				CorrelationID: correlationID, Decision: "block", Action: "block",
				ThreatLevel: "none", Provider: string(req.Provider), Model: req.Model,
				TargetService: target.Host, Duration: time.Since(start),
				Level: audit.LevelWarn, EventType: "rate_limited",
			})
			d.writeError(w, correlationID, pipeerr.New(pipeerr.RateLimited, "rate limit exceeded"))
			return
		}
	}

	fp := normalize.FingerprintOf(req)

	// (3) Cache lookup — only ever consulted for non-streaming requests,
	// since a streamed response was never buffered whole in the first place.
	if !req.Streaming {
		if entry, ok := d.Cache.Get(fp); ok {
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("X-Response-Time", fmt.Sprintf("%dms", time.Since(start).Milliseconds()))
			for k, vs := range entry.Headers {
				for _, v := range vs {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(entry.StatusCode)
			w.Write(entry.Response)
			d.emitAudit(ctx, audit.Record{
				CorrelationID: correlationID, Decision: "allow", Action: "allow",
				ThreatLevel: "none", Provider: string(req.Provider), Model: req.Model,
				TargetService: target.Host, Duration: time.Since(start),
				Level: audit.LevelInfo, EventType: "cache_hit",
			})
			return
		}
	}

	// (4) Scanner Orchestrator.
	scanCtx, scanSpan := tracer.Start(ctx, "gateway.scan")
	verdict := d.Scanners.Scan(scanCtx, req)
	scanSpan.SetAttributes(
		attribute.String("gateway.threat_level", verdict.OverallThreatLevel.String()),
		attribute.Int("gateway.finding_count", len(verdict.Findings)),
	)
	scanSpan.End()

	// (5) Policy Engine.
	decision := d.Policies.Evaluate(req, verdict, policy.EvalContext{Now: time.Now()})
	if d.Metrics != nil {
		d.Metrics.PipelineDecisions.WithLabelValues(string(decision.Action), verdict.OverallThreatLevel.String()).Inc()
	}

	rec := audit.Record{
		CorrelationID: correlationID,
		Provider:      string(req.Provider),
		Model:         req.Model,
		TargetService: target.Host,
		ThreatLevel:   verdict.OverallThreatLevel.String(),
		PolicyID:      decision.PolicyID,
		Findings:      toAuditFindings(verdict),
		Action:        string(decision.Action),
		Decision:      string(decision.Action),
		UserID:        req.Metadata.UserID,
		SourceIP:      req.Metadata.SourceIP,
	}

	// (6) Branch on the policy decision's primary action.
	switch decision.Action {
	case policy.ActionBlock:
		rec.Level, rec.EventType, rec.Message = audit.LevelWarn, "policy_block", decision.Reason
		rec.Duration = time.Since(start)
		d.emitAudit(ctx, rec)
		d.writeError(w, correlationID, pipeerr.New(pipeerr.PolicyBlock, decision.Reason))

	case policy.ActionQueue:
		rec.Level, rec.EventType = audit.LevelInfo, "queued"
		rec.Duration = time.Since(start)
		d.emitAudit(ctx, rec)
		d.writeJSON(w, http.StatusAccepted, map[string]any{
			"status":        "queued",
			"correlationId": correlationID,
		})

	case policy.ActionModify:
		modified := applyRedactions(req, verdict)
		rec.EventType = "forwarded_modified"
		d.forwardAndRespond(ctx, w, modified, body, true, target, fp, start, rec)

	case policy.ActionAlert:
		rec.EventType = "forwarded_alert"
		rec.Level = audit.LevelWarn
		d.forwardAndRespond(ctx, w, req, body, false, target, fp, start, rec)

	default: // allow, log, redirect all forward identically; only the audit event differs.
		rec.EventType = "forwarded_" + string(decision.Action)
		d.forwardAndRespond(ctx, w, req, body, false, target, fp, start, rec)
	}
}

func toAuditFindings(v scanner.Verdict) []audit.Finding {
	var out []audit.Finding
	for _, res := range v.Results {
		for _, f := range res.Findings {
			out = append(out, audit.Finding{
				ScannerID: res.ScannerID, Type: f.Type, Severity: f.Severity.String(),
				Message: f.Message, Confidence: f.Confidence,
			})
		}
	}
	return out
}

// applyRedactions produces a new request with redactable findings' evidence
// replaced by a fixed marker, never mutating the original — R is treated as
// immutable once produced.
func applyRedactions(req *normalize.Request, v scanner.Verdict) *normalize.Request {
	const marker = "[REDACTED]"
	redacted := req.Clone()
	for _, f := range v.Findings {
		if f.Evidence == "" {
			continue
		}
		for i, m := range redacted.Messages {
			if m.Content.IsText() {
				redacted.Messages[i].Content.Text = strings.ReplaceAll(m.Content.Text, f.Evidence, marker)
			}
		}
	}
	return redacted
}

// forwardAndRespond runs the admitted request through dedup (non-streaming
// only), the circuit breaker, and the connection pool, then writes the
// upstream response back to the client.
func (d *Driver) forwardAndRespond(
	ctx context.Context,
	w http.ResponseWriter,
	req *normalize.Request,
	rawBody []byte,
	modified bool,
	target Target,
	fp normalize.Fingerprint,
	start time.Time,
	rec audit.Record,
) {
	outBody := rawBody
	if modified {
		if b, err := parser.Marshal(req); err == nil {
			outBody = b
		}
	}

	if req.Streaming {
		d.forwardStreaming(ctx, w, outBody, target, start, rec)
		return
	}

	result := d.Dedup.Execute(ctx, fp, func(ctx context.Context) dedup.Result {
		return d.doUpstream(ctx, outBody, target)
	})

	rec.Duration = time.Since(start)
	if result.Err != nil {
		rec.Level, rec.EventType = audit.LevelError, "upstream_error"
		rec.Message = result.Err.Error()
		d.emitAudit(ctx, rec)
		d.writeError(w, rec.CorrelationID, result.Err)
		return
	}

	if rec.Level == "" {
		rec.Level = audit.LevelInfo
	}
	d.emitAudit(ctx, rec)

	for k, vs := range result.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(result.StatusCode)
	w.Write(result.Response)

	if result.StatusCode == http.StatusOK {
		d.Cache.Set(fp, result.Response, result.StatusCode, result.Headers, d.CacheTTL)
	}
}

// doUpstream performs the breaker-and-pool-gated round trip to the
// upstream host. It is the Producer handed to the deduplicator.
func (d *Driver) doUpstream(ctx context.Context, body []byte, target Target) dedup.Result {
	ctx, span := tracer.Start(ctx, "gateway.upstream", trace.WithAttributes(attribute.String("gateway.target_host", target.Host)))
	defer span.End()

	callStart := time.Now()
	br := d.Breakers.Get(target.Host)
	if !br.Allow() {
		span.SetAttributes(attribute.Bool("gateway.circuit_open", true))
		return dedup.Result{Err: pipeerr.New(pipeerr.CircuitOpen, "circuit open for "+target.Host)}
	}

	lease, err := d.Pool.Acquire(ctx, target.Host)
	if err != nil {
		br.Failure()
		d.recordUpstream(target.Host, callStart, false, audit.FailureTimeout)
		return dedup.Result{Err: err}
	}
	defer lease.Release()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		br.Failure()
		return dedup.Result{Err: pipeerr.Wrap(pipeerr.Internal, "failed to build upstream request", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := lease.Client().Do(httpReq)
	if err != nil {
		br.Failure()
		kind := pipeerr.UpstreamTransport
		failure := audit.FailureServerError
		if ctx.Err() != nil {
			kind = pipeerr.UpstreamTimeout
			failure = audit.FailureTimeout
		}
		d.recordUpstream(target.Host, callStart, false, failure)
		return dedup.Result{Err: pipeerr.Wrap(kind, "upstream request failed", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		br.Failure()
		d.recordUpstream(target.Host, callStart, false, audit.FailureServerError)
		return dedup.Result{Err: pipeerr.Wrap(pipeerr.UpstreamTransport, "failed to read upstream response", err)}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	switch {
	case resp.StatusCode >= 500:
		br.Failure()
		d.recordUpstream(target.Host, callStart, false, audit.ClassifyFailure(resp.StatusCode, string(respBody)))
	case resp.StatusCode >= 400:
		br.Success() // client-side errors (4xx) don't indicate upstream unhealth
		d.recordUpstream(target.Host, callStart, false, audit.ClassifyFailure(resp.StatusCode, string(respBody)))
	default:
		br.Success()
		d.recordUpstream(target.Host, callStart, true, "")
	}

	return dedup.Result{Response: respBody, StatusCode: resp.StatusCode, Headers: resp.Header}
}

func (d *Driver) recordUpstream(host string, start time.Time, success bool, failureType string) {
	elapsed := time.Since(start)
	if d.Metrics != nil {
		outcome := "success"
		if !success {
			outcome = failureType
			if outcome == "" {
				outcome = "failure"
			}
		}
		d.Metrics.UpstreamDuration.WithLabelValues(host, outcome).Observe(elapsed.Seconds())
	}
	if d.Analytics == nil {
		return
	}
	d.Analytics.Record(host, elapsed.Milliseconds(), success, failureType)
}

// forwardStreaming performs the breaker/pool-gated round trip for a
// streaming request and pipes the upstream body through the stream
// pipeline's inspector rather than buffering it whole.
func (d *Driver) forwardStreaming(ctx context.Context, w http.ResponseWriter, body []byte, target Target, start time.Time, rec audit.Record) {
	ctx, span := tracer.Start(ctx, "gateway.upstream",
		trace.WithAttributes(attribute.String("gateway.target_host", target.Host), attribute.Bool("gen_ai.stream", true)))
	defer span.End()

	callStart := time.Now()
	br := d.Breakers.Get(target.Host)
	if !br.Allow() {
		rec.Duration = time.Since(start)
		rec.Level, rec.EventType = audit.LevelError, "circuit_open"
		d.emitAudit(ctx, rec)
		d.writeError(w, rec.CorrelationID, pipeerr.New(pipeerr.CircuitOpen, "circuit open for "+target.Host))
		return
	}

	lease, err := d.Pool.Acquire(ctx, target.Host)
	if err != nil {
		br.Failure()
		d.recordUpstream(target.Host, callStart, false, audit.FailureTimeout)
		rec.Duration = time.Since(start)
		rec.Level, rec.EventType = audit.LevelError, "pool_acquire_timeout"
		d.emitAudit(ctx, rec)
		d.writeError(w, rec.CorrelationID, err)
		return
	}
	defer lease.Release()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		br.Failure()
		d.writeError(w, rec.CorrelationID, pipeerr.Wrap(pipeerr.Internal, "failed to build upstream request", err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := lease.Client().Do(httpReq)
	if err != nil {
		br.Failure()
		failure := audit.FailureServerError
		if ctx.Err() != nil {
			failure = audit.FailureTimeout
		}
		d.recordUpstream(target.Host, callStart, false, failure)
		rec.Duration = time.Since(start)
		rec.Level, rec.EventType = audit.LevelError, "upstream_error"
		d.emitAudit(ctx, rec)
		d.writeError(w, rec.CorrelationID, pipeerr.Wrap(pipeerr.UpstreamTransport, "upstream request failed", err))
		return
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("X-Cache", "BYPASS")
	w.Header().Set("X-Proxilion-Streaming", "true")
	w.WriteHeader(resp.StatusCode)

	if _, err := d.Stream.Copy(ctx, w, resp.Body, d.Inspect); err != nil {
		br.Failure()
		d.recordUpstream(target.Host, callStart, false, audit.FailureServerError)
		rec.Level, rec.EventType, rec.Message = audit.LevelError, "stream_error", err.Error()
	} else if resp.StatusCode >= 500 {
		br.Failure()
		d.recordUpstream(target.Host, callStart, false, audit.ClassifyFailure(resp.StatusCode, ""))
	} else {
		br.Success()
		d.recordUpstream(target.Host, callStart, resp.StatusCode < 400, func() string {
			if resp.StatusCode >= 400 {
				return audit.ClassifyFailure(resp.StatusCode, "")
			}
			return ""
		}())
	}

	rec.Duration = time.Since(start)
	if rec.Level == "" {
		rec.Level = audit.LevelInfo
	}
	d.emitAudit(ctx, rec)
}

func (d *Driver) emitAudit(ctx context.Context, rec audit.Record) {
	rec.Timestamp = time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if d.AuditSink != nil {
		d.AuditSink.Emit(ctx, rec)
	}
}

func (d *Driver) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (d *Driver) writeError(w http.ResponseWriter, correlationID string, err error) {
	kind := pipeerr.KindOf(err)
	d.writeJSON(w, pipeerr.HTTPStatus(kind), pipeerr.Body{
		Error:         err.Error(),
		CorrelationID: correlationID,
		Code:          string(kind),
	})
}

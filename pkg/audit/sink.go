package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/proxilion/grc-gateway/internal/obs"
	"go.uber.org/zap"
)

// Sink is the external audit collaborator the pipeline driver hands
// records to. Emit must not block the request path for long;
// implementations that call out over the network should do so
// asynchronously.
type Sink interface {
	Emit(ctx context.Context, rec Record)
}

// MultiSink fans one record out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

func (m MultiSink) Emit(ctx context.Context, rec Record) {
	for _, s := range m.Sinks {
		s.Emit(ctx, rec)
	}
}

// LogSink emits the record as a structured log line, the always-on
// fallback sink so audit records are never silently dropped even with no
// external collaborator configured.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, rec Record) {
	obs.Logger(ctx).Info("audit record",
		zap.String("correlation_id", rec.CorrelationID),
		zap.String("decision", rec.Decision),
		zap.String("action", rec.Action),
		zap.String("threat_level", rec.ThreatLevel),
		zap.String("provider", rec.Provider),
		zap.String("model", rec.Model),
		zap.Duration("duration", rec.Duration),
		zap.Int("findings", len(rec.Findings)),
	)
}

// ChainSink appends every emitted record into a tamper-evident Chain,
// giving the exactly-once-per-request audit stream a verifiable sequence
// an operator can later export and attest (see EvidencePackage).
type ChainSink struct {
	Chain *Chain
}

func (c ChainSink) Emit(ctx context.Context, rec Record) {
	if c.Chain == nil {
		return
	}
	if _, err := c.Chain.Append(rec); err != nil {
		obs.Logger(ctx).Warn("audit: chain append failed", zap.Error(err))
	}
}

// WebhookSink posts each record as JSON to a webhook URL (a Slack incoming
// webhook or a generic SIEM HTTP intake), adapted from the teacher's
// SendWebhookAlert (pkg/guardrails/alerts.go): fire-and-forget, bounded
// timeout, failures logged rather than propagated.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookSink) Emit(ctx context.Context, rec Record) {
	if w.URL == "" {
		return
	}
	go func() {
		payload, err := json.Marshal(rec)
		if err != nil {
			obs.Logger(ctx).Warn("audit: webhook marshal failed", zap.Error(err))
			return
		}
		req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(payload))
		if err != nil {
			obs.Logger(ctx).Warn("audit: webhook request build failed", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.Client.Do(req)
		if err != nil {
			obs.Logger(ctx).Warn("audit: webhook send failed", zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			obs.Logger(ctx).Warn(fmt.Sprintf("audit: webhook returned status %d", resp.StatusCode))
		}
	}()
}

// Package server exposes the gateway's inbound HTTP surface:
// the explicit "/proxy/<escaped-upstream-url>" form, a transparent mode
// that infers the upstream from the Host header, and the health/status/
// metrics endpoints. Adapted from the teacher's proxy.Handler, generalised
// from a single hardcoded OpenAI-compatible route to the pipeline driver's
// parser-dispatched forwarding.
package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/pkg/audit"
	"github.com/proxilion/grc-gateway/pkg/pipeline"
	"go.uber.org/zap"
)

// Config holds the server's top-level wiring.
type Config struct {
	Driver               *pipeline.Driver
	Metrics              *obs.Metrics
	Logger               *zap.Logger // base logger; every request gets it attached to its context
	Chain                *audit.Chain
	VaultEnabled         bool
	ComplianceFrameworks []string
	GatewayKey           string
	TransparentURL       string // if set, requests with no "/proxy/" prefix forward here
	StartedAt            time.Time
}

// New builds the gateway's http.Handler.
func New(cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		var chainLen int64
		if cfg.Chain != nil {
			chainLen = cfg.Chain.Len()
		}
		compliance := audit.Evaluate(
			audit.ComplianceConfig{Frameworks: cfg.ComplianceFrameworks},
			audit.Capabilities{
				ChainLen:        chainLen,
				HasVault:        cfg.VaultEnabled,
				HasPolicyEngine: cfg.Driver.Policies != nil,
				HasScanners:     cfg.Driver.Scanners != nil,
				HasRateLimiter:  cfg.Driver.RateLimiter != nil,
			},
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"uptime":     time.Since(cfg.StartedAt).String(),
			"breakers":   cfg.Driver.Breakers.Len(),
			"pools":      cfg.Driver.Pool.Stats(),
			"cache":      cfg.Driver.Cache.Stats(),
			"compliance": compliance.Summary,
		})
	})

	if cfg.Metrics != nil {
		mux.Handle("/metrics/prometheus", cfg.Metrics.Handler())
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			stats := cfg.Driver.Cache.Stats()
			writeJSON(w, http.StatusOK, map[string]any{
				"cache":         stats,
				"breakers":      cfg.Driver.Breakers.Len(),
				"pools":         cfg.Driver.Pool.Stats(),
				"dedupInFlight": cfg.Driver.Dedup.InFlight(),
			})
		})
	}

	mux.HandleFunc("/proxy/", func(w http.ResponseWriter, r *http.Request) {
		if !authenticate(w, r, cfg.GatewayKey) {
			return
		}
		target, err := parseProxyTarget(r.URL.Path)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, audit.Record{Message: err.Error()})
			return
		}
		cfg.Driver.ServeForward(w, r, target)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !authenticate(w, r, cfg.GatewayKey) {
			return
		}
		if cfg.TransparentURL == "" {
			http.NotFound(w, r)
			return
		}
		target := pipeline.Target{URL: cfg.TransparentURL + r.URL.Path, Host: hostOf(cfg.TransparentURL)}
		cfg.Driver.ServeForward(w, r, target)
	})

	return withRequestLogger(mux, cfg.Logger)
}

// withRequestLogger attaches the base logger to every request's context, so
// obs.Logger(ctx) resolves to a real sink instead of silently falling back
// to a no-op logger throughout the pipeline.
func withRequestLogger(next http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(obs.WithLogger(r.Context(), logger)))
	})
}

// parseProxyTarget decodes "/proxy/<url-escaped-upstream-url>" into a
// forwarding target.
func parseProxyTarget(path string) (pipeline.Target, error) {
	escaped := strings.TrimPrefix(path, "/proxy/")
	raw, err := url.QueryUnescape(escaped)
	if err != nil {
		return pipeline.Target{}, err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return pipeline.Target{}, err
	}
	return pipeline.Target{URL: raw, Host: u.Host}, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

// authenticate checks the X-Gateway-Key header if a key is configured,
// mirroring the teacher's authenticateGateway.
func authenticate(w http.ResponseWriter, r *http.Request, gatewayKey string) bool {
	if gatewayKey == "" {
		return true
	}
	provided := r.Header.Get("X-Gateway-Key")
	if provided == "" {
		provided = r.Header.Get("X-Api-Key")
	}
	if provided != gatewayKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized: invalid or missing gateway key"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

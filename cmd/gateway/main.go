// Command gateway starts the gateway: a man-in-the-middle reverse proxy
// that parses, scans, and policy-gates every LLM API call before it
// reaches the upstream provider.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proxilion/grc-gateway/internal/config"
	"github.com/proxilion/grc-gateway/internal/obs"
	"github.com/proxilion/grc-gateway/internal/server"
	"github.com/proxilion/grc-gateway/pkg/audit"
	"github.com/proxilion/grc-gateway/pkg/breaker"
	"github.com/proxilion/grc-gateway/pkg/cache"
	"github.com/proxilion/grc-gateway/pkg/dedup"
	"github.com/proxilion/grc-gateway/pkg/normalize"
	"github.com/proxilion/grc-gateway/pkg/parser"
	"github.com/proxilion/grc-gateway/pkg/pipeline"
	"github.com/proxilion/grc-gateway/pkg/policy"
	"github.com/proxilion/grc-gateway/pkg/pool"
	"github.com/proxilion/grc-gateway/pkg/ratelimit"
	"github.com/proxilion/grc-gateway/pkg/scanner"
	"github.com/proxilion/grc-gateway/pkg/stream"
	"github.com/proxilion/grc-gateway/pkg/vault"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", ""), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := obs.NewLogger(cfg.Dev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	tp, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else if tp != nil {
		defer tp.Shutdown(ctx)
	}

	metrics := obs.NewMetrics()
	analytics := obs.NewPerformanceTracker()

	parsers := parser.NewRegistry(
		parser.NewOpenAIParser(),
		parser.NewAnthropicParser(),
		parser.NewGoogleParser(),
		parser.NewCohereParser(),
		parser.NewHuggingFaceParser(),
		parser.NewCustomParser(),
	)

	var scanners []scanner.Scanner
	if cfg.Scanners.PII {
		scanners = append(scanners, scanner.NewPIIScanner())
	}
	if cfg.Scanners.Secrets {
		scanners = append(scanners, scanner.NewSecretsScanner())
	}
	if cfg.Scanners.PromptInjection {
		scanners = append(scanners, scanner.NewPromptInjectionScanner())
	}
	orchestrator := scanner.New(scanners,
		scanner.WithTimeout(cfg.Scanners.ScanTimeout),
		scanner.WithMetrics(metrics),
		scanner.WithAnalytics(analytics),
	)

	policyEngine := policy.NewEngine()
	policyEngine.Load(defaultPolicies())

	respCache := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes, metrics)
	deduper := dedup.New(dedup.WithTimeout(cfg.Dedup.Timeout), dedup.WithMetrics(metrics))

	connPool := pool.New(pool.Config{
		MaxConnsPerHost: cfg.Pool.MaxConnsPerHost,
		AcquireTimeout:  cfg.Pool.AcquireTimeout,
		IdleTimeout:     cfg.Pool.IdleTimeout,
		UpstreamTimeout: cfg.Pool.UpstreamTimeout,
	}, metrics)

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		OpenDuration:     cfg.Breaker.OpenDuration,
	}, cfg.Breaker.MaxBreakers, cfg.Breaker.IdleTimeout, breaker.WithMetrics(metrics))

	streamPipe := stream.New(stream.Config{
		ChunkTimeout: cfg.Stream.ChunkTimeout,
		MaxBuffered:  cfg.Stream.MaxBuffered,
	}, metrics)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RedisAddr != "" {
			rc := redis.NewClient(&redis.Options{
				Addr:     cfg.RateLimit.RedisAddr,
				Password: cfg.RateLimit.RedisPassword,
				DB:       cfg.RateLimit.RedisDB,
			})
			limiter = ratelimit.NewRedisLimiter(rc, "grc-gateway")
			logger.Info("rate limiter: redis-backed", zap.String("addr", cfg.RateLimit.RedisAddr))
		} else {
			limiter = ratelimit.NewMemoryLimiter()
			logger.Info("rate limiter: in-memory")
		}
	}
	limiterPolicy := ratelimit.Policy{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute, Burst: cfg.RateLimit.Burst}

	var vaultClient *vault.Client
	if cfg.Vault.Enabled {
		vaultClient, err = vault.New(ctx, vault.Config{
			Endpoint:  cfg.Vault.Endpoint,
			AccessKey: cfg.Vault.AccessKey,
			SecretKey: cfg.Vault.SecretKey,
			Bucket:    cfg.Vault.Bucket,
			UseSSL:    cfg.Vault.UseSSL,
		})
		if err != nil {
			logger.Warn("vault disabled; evidence blobs will not be archived", zap.Error(err))
			vaultClient = nil
		} else {
			logger.Info("vault connected", zap.String("endpoint", cfg.Vault.Endpoint))
		}
	}

	chain := audit.NewChain(cfg.Audit.ChainSecret)
	sinks := []audit.Sink{audit.LogSink{}, audit.ChainSink{Chain: chain}}
	if cfg.Audit.WebhookURL != "" {
		sinks = append(sinks, audit.NewWebhookSink(cfg.Audit.WebhookURL))
	}
	if vaultClient != nil {
		sinks = append(sinks, audit.NewVaultSink(vaultClient))
	}

	driver := pipeline.New(
		parsers, orchestrator, policyEngine, respCache, deduper, connPool, breakers,
		streamPipe, limiter, limiterPolicy, audit.MultiSink{Sinks: sinks}, metrics, cfg.Cache.TTL,
	)
	driver.Analytics = analytics
	if cfg.Scanners.Secrets {
		driver.Inspect = streamingSecretsInspector()
	}

	if cfg.GatewayKey != "" {
		logger.Info("gateway authentication: enabled")
	} else {
		logger.Warn("gateway authentication: disabled (set gateway_key to require auth)")
	}

	handler := server.New(server.Config{
		Driver:               driver,
		Metrics:              metrics,
		Logger:               logger,
		Chain:                chain,
		VaultEnabled:         vaultClient != nil,
		ComplianceFrameworks: cfg.Audit.ComplianceFrameworks,
		GatewayKey:           cfg.GatewayKey,
		TransparentURL:       cfg.TransparentURL,
		StartedAt:            time.Now(),
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // streaming completions can run long
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	srv.Shutdown(shutCtx)
}

// defaultPolicies is the minimal policy set loaded when no operator-supplied
// set exists: block critical-severity findings outright, alert on high
// severity while still forwarding, and allow everything else. Without this,
// a freshly started Engine's empty policy set would fall through to
// Evaluate's default-block on every single request.
func defaultPolicies() []policy.Policy {
	return []policy.Policy{
		{
			ID: "default-block-critical", Name: "block critical-severity findings",
			Priority: 100, Enabled: true,
			Conditions: []policy.Condition{{Subject: policy.SubjectThreatLevel, Comparator: policy.CmpGte, Value: "critical"}},
			Actions:    []policy.Action{policy.ActionBlock},
		},
		{
			ID: "default-alert-high", Name: "alert on high-severity findings",
			Priority: 50, Enabled: true,
			Conditions: []policy.Condition{{Subject: policy.SubjectThreatLevel, Comparator: policy.CmpGte, Value: "high"}},
			Actions:    []policy.Action{policy.ActionAlert},
		},
		{
			ID: "default-allow", Name: "allow otherwise",
			Priority: 0, Enabled: true,
			Actions: []policy.Action{policy.ActionAllow},
		},
	}
}

// streamingSecretsInspector runs the secrets scanner against each streaming
// response's accumulated text, aborting the stream if a credential leaks
// into a model's output mid-generation rather than waiting for EOF.
func streamingSecretsInspector() stream.Inspector {
	s := scanner.NewSecretsScanner()
	return func(ctx context.Context, seq int, chunk []byte, accumulatedText string) ([]byte, bool) {
		res := s.Scan(ctx, &normalize.Request{}, accumulatedText)
		if res.ThreatLevel >= scanner.SeverityCritical {
			return nil, true
		}
		return chunk, false
	}
}

func initTracer(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Tracing.Enabled || cfg.Tracing.OTLPEndpoint == "" {
		return nil, nil
	}

	conn, err := grpc.NewClient(cfg.Tracing.OTLPEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.Tracing.ServiceName),
		semconv.ServiceVersion("0.1.0"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/inkwell-ai/inkwell/internal/adapter/claude"
	"github.com/inkwell-ai/inkwell/internal/adapter/diskcache"
	"github.com/inkwell-ai/inkwell/internal/adapter/diskstore"
	"github.com/inkwell-ai/inkwell/internal/adapter/groq"
	inkhttp "github.com/inkwell-ai/inkwell/internal/adapter/http"
	"github.com/inkwell-ai/inkwell/internal/adapter/natskv"
	"github.com/inkwell-ai/inkwell/internal/adapter/nopcache"
	"github.com/inkwell-ai/inkwell/internal/adapter/ollama"
	"github.com/inkwell-ai/inkwell/internal/adapter/openaichat"
	otelx "github.com/inkwell-ai/inkwell/internal/adapter/otel"
	"github.com/inkwell-ai/inkwell/internal/adapter/ristretto"
	"github.com/inkwell-ai/inkwell/internal/adapter/tiered"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/logger"
	"github.com/inkwell-ai/inkwell/internal/port/cache"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
	"github.com/inkwell-ai/inkwell/internal/port/storage"
	"github.com/inkwell-ai/inkwell/internal/resilience"
	"github.com/inkwell-ai/inkwell/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}

	cfg, configPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", configPath,
		"port", cfg.Server.Port,
		"default_model", cfg.Models.Default,
		"cache_enabled", cfg.Cache.Enabled,
	)

	ctx := context.Background()

	// --- Telemetry ---

	shutdownTracer, err := otelx.InitTracer(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	metrics, err := otelx.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Cache ---

	resultCache, cleanupCache, err := buildCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cleanupCache()

	// --- Storage ---

	var store storage.Store
	if cfg.Storage.Enabled {
		diskStore, err := diskstore.New(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		store = diskStore
		slog.Info("storage enabled", "path", cfg.Storage.Path)
	}

	// --- Model Backends ---

	registry := buildRegistry(cfg)

	// --- Services ---

	recognitionSvc := service.NewRecognitionService(cfg, registry, resultCache, store, metrics)
	reviewSvc := service.NewReviewService(cfg, registry, resultCache, metrics)
	workflowSvc := service.NewWorkflowService(cfg, recognitionSvc, reviewSvc, resultCache, store, metrics)

	// --- HTTP ---

	// SIGHUP reloads the config file; the HTTP layer reads through the
	// holder so credential and model-list changes apply without a restart.
	holder := config.NewHolder(cfg, configPath)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			if err := holder.Reload(); err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			slog.Info("config reloaded", "path", configPath)
		}
	}()

	handlers := inkhttp.NewHandlers(workflowSvc, recognitionSvc, reviewSvc, registry, resultCache, holder)
	router := inkhttp.NewRouter(handlers, cfg)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// buildCache assembles the two-tier result cache: an in-process ristretto
// tier over a durable tier (disk or NATS JetStream KV). The returned cleanup
// closes any held connections.
func buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	noop := func() {}

	if !cfg.Cache.Enabled {
		slog.Info("cache disabled")
		return nopcache.New(), noop, nil
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, nil, fmt.Errorf("l1: %w", err)
	}

	switch cfg.Cache.L2Backend {
	case "natskv":
		nc, err := nats.Connect(cfg.Cache.NATSURL)
		if err != nil {
			return nil, nil, fmt.Errorf("nats connect: %w", err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("jetstream: %w", err)
		}
		l2, err := natskv.Connect(ctx, js, cfg.Cache.NATSBucket, cfg.Cache.TTL)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("nats kv: %w", err)
		}
		slog.Info("cache enabled", "l2", "natskv", "bucket", cfg.Cache.NATSBucket)
		return tiered.New(l1, l2, cfg.Cache.L1Backfill), nc.Close, nil
	default:
		l2, err := diskcache.New(cfg.Cache.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("disk cache: %w", err)
		}
		slog.Info("cache enabled", "l2", "disk", "dir", cfg.Cache.Dir)
		return tiered.New(l1, l2, cfg.Cache.L1Backfill), noop, nil
	}
}

// buildRegistry registers one client per configured backend. Ollama is always
// available; hosted backends get a circuit breaker and report missing
// credentials at request time rather than failing startup.
func buildRegistry(cfg *config.Config) *provider.Registry {
	registry := provider.NewRegistry(provider.BackendOllama, cfg.Models.SupportedOllama)

	newBreaker := func() *resilience.Breaker {
		return resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	}

	ollamaClient := ollama.NewClient(cfg.Providers.OllamaBaseURL, cfg.Recognition.Timeout)
	ollamaClient.SetBreaker(newBreaker())
	registry.Register(ollamaClient)

	groqClient := groq.NewClient(cfg.Providers.GroqBaseURL, cfg.Providers.GroqAPIKey, cfg.Recognition.Timeout)
	groqClient.SetBreaker(newBreaker())
	registry.Register(groqClient)

	claudeClient := claude.NewClient(cfg.Providers.ClaudeBaseURL, cfg.Providers.ClaudeAPIKey, cfg.Recognition.Timeout)
	claudeClient.SetBreaker(newBreaker())
	registry.Register(claudeClient)

	openaiClient := openaichat.NewClient(cfg.Providers.OpenAIBaseURL, cfg.Providers.OpenAIAPIKey, cfg.Recognition.Timeout)
	openaiClient.SetBreaker(newBreaker())
	registry.Register(openaiClient)

	return registry
}

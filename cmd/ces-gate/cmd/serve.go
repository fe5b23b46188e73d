package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	httpadapter "github.com/odisys/ces-gate/internal/adapter/inbound/http"
	auditstore "github.com/odisys/ces-gate/internal/adapter/outbound/audit"
	"github.com/odisys/ces-gate/internal/adapter/outbound/constitution"
	"github.com/odisys/ces-gate/internal/adapter/outbound/memory"
	"github.com/odisys/ces-gate/internal/adapter/outbound/semantic"
	"github.com/odisys/ces-gate/internal/config"
	"github.com/odisys/ces-gate/internal/domain/audit"
	"github.com/odisys/ces-gate/internal/domain/ces"
	"github.com/odisys/ces-gate/internal/domain/draft"
	"github.com/odisys/ces-gate/internal/domain/intent"
	"github.com/odisys/ces-gate/internal/domain/ratelimit"
	"github.com/odisys/ces-gate/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the CES Gate HTTP server.

Endpoints:
  POST /v1/process             Run input through the pipeline
  POST /v1/constitution/reload Reload the constitution (atomic swap)
  GET  /healthz                Health check
  GET  /metrics                Prometheus metrics

Examples:
  # Start with config file settings
  ces-gate serve

  # Start with a specific config file
  ces-gate --config /path/to/config.yaml serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Server.LogLevel)
	if used := config.ConfigFileUsed(); used != "" {
		logger.Info("configuration loaded", "file", used)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := httpadapter.NewMetrics(reg)

	auditSvc, err := buildAuditService(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := auditSvc.Close(); err != nil {
			logger.Error("failed to close audit service", "error", err)
		}
	}()

	gate, pipeline, err := buildPipeline(cmd.Context(), cfg, auditSvc, logger)
	if err != nil {
		return err
	}
	metrics.PoliciesLoaded.Set(float64(gate.PoliciesLoaded()))

	var handlerOpts []httpadapter.HandlerOption
	if cfg.RateLimit.Enabled {
		limiter := memory.NewLimiter()
		limiter.StartSweep(cmd.Context())
		defer limiter.Stop()

		period, _ := time.ParseDuration(cfg.RateLimit.Period)
		handlerOpts = append(handlerOpts, httpadapter.WithRateLimit(limiter, ratelimit.Config{
			Rate:   cfg.RateLimit.Rate,
			Burst:  cfg.RateLimit.Burst,
			Period: period,
		}))
		logger.Info("rate limiting enabled",
			"rate", cfg.RateLimit.Rate, "burst", cfg.RateLimit.Burst, "period", cfg.RateLimit.Period)
	}

	handler := httpadapter.NewHandler(pipeline, gate, metrics, logger, handlerOpts...)
	server := &stdhttp.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.Routes(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildAuditService selects the audit store from the configured output.
func buildAuditService(cfg *config.Config, metrics *httpadapter.Metrics, logger *slog.Logger) (*service.AuditService, error) {
	var (
		store audit.Store
		err   error
	)
	switch {
	case cfg.Audit.Output == "stdout":
		store = auditstore.NewStreamStore(os.Stdout)
	case strings.HasPrefix(cfg.Audit.Output, "file://"):
		store, err = auditstore.NewFileStore(strings.TrimPrefix(cfg.Audit.Output, "file://"))
	case strings.HasPrefix(cfg.Audit.Output, "sqlite://"):
		store, err = auditstore.NewSQLiteStore(strings.TrimPrefix(cfg.Audit.Output, "sqlite://"))
	default:
		return nil, fmt.Errorf("unsupported audit output: %s", cfg.Audit.Output)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	return service.NewAuditService(store, logger,
		service.WithDropCounter(metrics.AuditDropsTotal)), nil
}

// buildPipeline wires the classifier, generator, and gate.
func buildPipeline(ctx context.Context, cfg *config.Config, auditSvc *service.AuditService, logger *slog.Logger) (*service.CESService, *service.PipelineService, error) {
	classifier := buildClassifier(cfg, logger)
	generator := draft.NewGenerator()

	source := constitution.NewFileSource(cfg.Constitution.Path)
	gate, err := service.NewCESService(ctx, source, ces.FailMode(cfg.Constitution.FailMode), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create enforcement service: %w", err)
	}

	pipeline := service.NewPipelineService(classifier, generator, gate, auditSvc, logger)
	return gate, pipeline, nil
}

// buildClassifier assembles the reflex classifier with its semantic fallback
// chain. Providers whose API key env var is unset are skipped with a warning;
// with no usable providers the classifier runs reflex-only.
func buildClassifier(cfg *config.Config, logger *slog.Logger) *intent.Classifier {
	var providers []semantic.Provider
	for _, pc := range cfg.Classifier.Providers {
		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			logger.Warn("classification provider skipped, API key env var is empty",
				"provider", pc.Name, "env", pc.APIKeyEnv)
			continue
		}
		providers = append(providers, semantic.NewProvider(semantic.ProviderConfig{
			Name:     pc.Name,
			Endpoint: pc.Endpoint,
			Model:    pc.Model,
			APIKey:   apiKey,
		}, nil))
	}

	var semanticFallback intent.SemanticClassifier
	if len(providers) > 0 {
		attemptTimeout, _ := time.ParseDuration(cfg.Classifier.AttemptTimeout)
		semanticFallback = semantic.NewChain(providers, logger,
			semantic.WithAttemptTimeout(attemptTimeout))
	} else {
		logger.Warn("no classification providers usable, classifier is reflex-only")
	}

	timeout, _ := time.ParseDuration(cfg.Classifier.Timeout)
	return intent.NewClassifier(semanticFallback, logger,
		intent.WithSemanticTimeout(timeout))
}

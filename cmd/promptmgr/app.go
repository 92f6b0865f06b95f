package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jgrana2/prompt-manager/internal/config"
	"github.com/jgrana2/prompt-manager/internal/llm"
	"github.com/jgrana2/prompt-manager/internal/llmutil"
	"github.com/jgrana2/prompt-manager/internal/logging"
	"github.com/jgrana2/prompt-manager/internal/observability"
	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/session"
	"github.com/jgrana2/prompt-manager/internal/storage"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

// app bundles what every command needs: config, logger, persistence and
// the provider factory.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	kv      storage.Store
	prompts *prompts.Store
	creds   *storage.Credentials
	factory *llm.ProviderFactory
	metrics *observability.PromptMetrics
	tracer  *observability.TracerProvider
}

type bootOptions struct {
	configPath string
	// fileLog forces logs into a file, for the full-screen TUI.
	fileLog bool
	// overrides from command flags
	provider string
	model    string
}

func bootstrap(ctx context.Context, opts bootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.provider != "" {
		cfg.LLM.Provider = opts.provider
	}
	if opts.model != "" {
		cfg.LLM.Model = opts.model
	}

	var logger *zap.Logger
	if opts.fileLog {
		logger, err = logging.ForTUI(cfg.Log)
	} else {
		logger, err = logging.New(cfg.Log)
	}
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	kv, err := storage.Open(storage.Config{Provider: cfg.Storage.Provider, Path: cfg.Storage.Path})
	if err != nil {
		return nil, err
	}
	store, err := prompts.Load(ctx, kv, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	tracer, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
		tracer, _ = observability.InitTracing(ctx, nil)
	}

	m := observability.NewPromptMetrics()
	m.PromptsStoredGauge.Set(float64(store.Len()))

	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)
	factory.Use(observability.Instrument(cfg.LLM.Model, m))

	logger.Debug("bootstrapped",
		zap.String("storage", kv.Name()),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Int("prompts", store.Len()))

	return &app{
		cfg:     cfg,
		logger:  logger,
		kv:      kv,
		prompts: store,
		creds:   storage.NewCredentials(kv),
		factory: factory,
		metrics: m,
		tracer:  tracer,
	}, nil
}

// controller builds a session controller reporting to sink plus the
// metrics registry.
func (a *app) controller(sink session.Sink, prompter vars.Prompter) (*session.Controller, error) {
	return session.New(session.Options{
		Prompts:     a.prompts,
		Credentials: a.creds,
		Factory:     a.factory,
		Provider:    a.cfg.LLM.ProviderConfig(),
		Prompter:    prompter,
		Sink:        session.Multi(sink, session.MetricsSink(a.metrics)),
		Logger:      a.logger,
	})
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown", zap.Error(err))
	}
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("closing storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// Package app initializes and holds the long-lived services shared by the CLI
// commands, acting as a small dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/homepage-tone/internal/classify"
	"github.com/JakeFAU/homepage-tone/internal/clock/system"
	"github.com/JakeFAU/homepage-tone/internal/config"
	idgen "github.com/JakeFAU/homepage-tone/internal/id/uuid"
	"github.com/JakeFAU/homepage-tone/internal/logging"
	"github.com/JakeFAU/homepage-tone/internal/metrics"
	"github.com/JakeFAU/homepage-tone/internal/middleware"
	"github.com/JakeFAU/homepage-tone/internal/pipeline"
	"github.com/JakeFAU/homepage-tone/internal/progress"
	"github.com/JakeFAU/homepage-tone/internal/progress/sinks"
	"github.com/JakeFAU/homepage-tone/internal/render"
)

// App holds the services built once per command invocation: the logger, the
// metrics registry and the progress hub feeding the log and Prometheus sinks.
type App struct {
	cfg           config.Config
	logger        *zap.Logger
	registry      *prometheus.Registry
	clientMetrics *middleware.ClientMetrics
	hub           *progress.Hub
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger uses logger instead of building one from the config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New wires the services described by cfg. It fails fast if any of them
// cannot be initialized.
func New(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	registry := metrics.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	clientMetrics, err := middleware.NewClientMetrics(registry)
	if err != nil {
		return nil, err
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	logger.Debug("application services initialized",
		zap.String("engine", cfg.Renderer.Engine),
		zap.String("model", cfg.Classifier.Model),
	)
	return &App{
		cfg:           cfg,
		logger:        logger,
		registry:      registry,
		clientMetrics: clientMetrics,
		hub:           hub,
	}, nil
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetRegistry exposes the metrics registry.
func (a *App) GetRegistry() *prometheus.Registry {
	return a.registry
}

// GetEmitter returns the progress hub.
func (a *App) GetEmitter() progress.Emitter {
	return a.hub
}

// PipelineDeps returns the collaborators shared by both pipeline stages.
// Per-item progress lines go to stdout.
func (a *App) PipelineDeps(stdout io.Writer) pipeline.Deps {
	return pipeline.Deps{
		Clock:   system.New(),
		Emitter: a.hub,
		IDs:     idgen.V7{},
		Logger:  a.logger,
		Stdout:  stdout,
	}
}

// NewRenderer builds the configured engine behind the render fallback policy.
func (a *App) NewRenderer() (pipeline.Renderer, error) {
	rc := a.cfg.Renderer
	browser, err := render.NewBrowser(render.EngineConfig{
		Engine:         rc.Engine,
		UserAgent:      rc.UserAgent,
		Headless:       rc.Headless,
		ContentTimeout: rc.NavTimeout,
		InstallDriver:  rc.InstallDriver,
	})
	if err != nil {
		return nil, fmt.Errorf("init browser: %w", err)
	}
	r, err := render.New(browser, render.Config{
		NavTimeout: rc.NavTimeout,
		Settle:     rc.Settle,
	}, a.logger.Named("render"))
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	return r, nil
}

// NewVerdicter builds the chat/completions classifier client. Its requests are
// counted in the registry.
func (a *App) NewVerdicter() (pipeline.Verdicter, error) {
	cc := a.cfg.Classifier
	hc := &http.Client{
		Timeout:   cc.Timeout,
		Transport: a.clientMetrics.RoundTripper(nil),
	}
	client, err := classify.New(classify.Config{
		BaseURL:     cc.BaseURL,
		Model:       cc.Model,
		APIKey:      cc.APIKey,
		Temperature: cc.Temperature,
		TopP:        cc.TopP,
		MaxTokens:   cc.MaxTokens,
		Timeout:     cc.Timeout,
		MaxRPS:      cc.MaxRPS,
	},
		classify.WithHTTPClient(hc),
		classify.WithLogger(a.logger.Named("classify")),
	)
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}
	return client, nil
}

// Close drains the progress hub, exports metrics when configured and flushes
// the logger. It is called once the command finishes.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.hub.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close progress hub: %w", err))
	}
	if err := metrics.WriteTextfile(a.registry, a.cfg.Metrics.Textfile); err != nil {
		errs = append(errs, err)
	} else if a.cfg.Metrics.Textfile != "" {
		a.logger.Debug("metrics exported", zap.String("path", a.cfg.Metrics.Textfile))
	}
	// Syncing stderr fails on some platforms; that is not worth surfacing.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

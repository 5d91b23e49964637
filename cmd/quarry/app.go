// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/teradata-labs/quarry/pkg/agent"
	_ "github.com/teradata-labs/quarry/pkg/backends/mysql"
	_ "github.com/teradata-labs/quarry/pkg/backends/postgres"
	"github.com/teradata-labs/quarry/pkg/backends/sqlite"
	"github.com/teradata-labs/quarry/pkg/domain"
	"github.com/teradata-labs/quarry/pkg/fabric"
	"github.com/teradata-labs/quarry/pkg/insights"
	"github.com/teradata-labs/quarry/pkg/llm/factory"
	"github.com/teradata-labs/quarry/pkg/observability"
	"github.com/teradata-labs/quarry/pkg/pipeline"
	"github.com/teradata-labs/quarry/pkg/schema"
	"github.com/teradata-labs/quarry/pkg/types"
)

// App holds the wired components of one quarry process.
type App struct {
	Config  *Config
	Logger  *zap.Logger
	Tracer  observability.Tracer
	Cache   *schema.Cache
	Catalog *domain.Store
	Service *pipeline.Service
	watcher *domain.Watcher
}

// appOption adjusts wiring, mostly for tests.
type appOption func(*appOptions)

type appOptions struct {
	provider types.LLMProvider
	backend  fabric.ExecutionBackend
}

// withProvider uses p instead of building one from the llm section.
func withProvider(p types.LLMProvider) appOption {
	return func(o *appOptions) { o.provider = p }
}

// withBackend uses b instead of opening the database section.
func withBackend(b fabric.ExecutionBackend) appOption {
	return func(o *appOptions) { o.backend = b }
}

// newApp wires backend, model provider, cache, agents and pipeline from cfg.
func newApp(ctx context.Context, cfg *Config, logger *zap.Logger, opts ...appOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, Logger: logger, Tracer: observability.NewNoOpTracer()}
	if cfg.Observability.Metrics {
		app.Tracer = observability.NewPrometheusTracer(nil, prometheus.NewRegistry())
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = openBackend(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
	}
	backend = fabric.NewInstrumentedBackend(backend, app.Tracer)
	backend = fabric.NewBreakerBackend(backend, fabric.NewCircuitBreaker(fabric.CircuitBreakerConfig{Logger: logger}))

	provider := o.provider
	pf := factory.NewProviderFactory(factory.FactoryConfig{
		DefaultProvider:   cfg.LLM.Provider,
		DefaultModel:      cfg.LLM.Model,
		AnthropicAPIKey:   cfg.LLM.AnthropicAPIKey,
		AnthropicEndpoint: cfg.LLM.AnthropicEndpoint,
		OpenAIAPIKey:      cfg.LLM.OpenAIAPIKey,
		OpenAIEndpoint:    cfg.LLM.OpenAIEndpoint,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.TimeoutSeconds,
		Retry:             cfg.LLM.Retry.Backoff(),
		Tracer:            app.Tracer,
		Logger:            logger,
	})
	if provider == nil {
		var err error
		provider, err = pf.CreateProvider("", "")
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to create llm provider: %w", err)
		}
	} else {
		provider = pf.Wrap(provider)
	}

	catalog, err := loadCatalog(cfg.Domain.CatalogPath)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	app.Catalog = domain.NewStore(catalog)

	app.Cache = schema.New(backend,
		schema.WithLogger(logger),
		schema.WithTracer(app.Tracer),
		schema.WithExcludedTables(cfg.Database.ExcludedTables...),
		schema.WithSampleRows(cfg.Schema.SampleRows))

	limits := agent.Limits{
		MaxRetries:    cfg.Agent.MaxRetries,
		MaxViolations: cfg.Agent.MaxViolations,
		MaxTurns:      cfg.Agent.MaxTurns,
	}
	agentOpts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithTracer(app.Tracer),
		agent.WithCatalog(app.Catalog),
		agent.WithLimits(limits),
	}

	app.Service = pipeline.NewService(pipeline.Config{
		Cache: app.Cache,
		Fast:  agent.NewFastAgent(provider, app.Cache, agentOpts...),
		ReAct: agent.NewReActAgent(provider, app.Cache, agentOpts...),
		Insights: insights.NewGenerator(provider, app.Cache,
			insights.WithLogger(logger), insights.WithTracer(app.Tracer)),
		DefaultAgent:    strings.ToLower(cfg.Agent.Default),
		DefaultMode:     insights.ParseMode(cfg.Insights.Mode),
		FallbackToReAct: cfg.Agent.FastFallback,
		Tracer:          app.Tracer,
		Logger:          logger,
	})
	return app, nil
}

func openBackend(ctx context.Context, cfg DatabaseConfig, logger *zap.Logger) (fabric.ExecutionBackend, error) {
	if cfg.Demo {
		logger.Info("using bundled demo database")
		return sqlite.OpenDemo(ctx, logger)
	}
	backend, err := fabric.Open(ctx, cfg.ConnectionConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	return backend, nil
}

func loadCatalog(path string) (*domain.Catalog, error) {
	if path == "" {
		return domain.Default(), nil
	}
	c, err := domain.Load(path)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Start warms the cache and starts background work: the refresh schedule
// and the catalog watcher. A cold cache is not fatal; the first question
// retries the scan.
func (a *App) Start(ctx context.Context) error {
	if err := a.Cache.Initialize(ctx); err != nil {
		a.Logger.Warn("schema cache warm-up failed", zap.Error(err))
	}
	if err := a.Cache.StartAutoRefresh(a.Config.Schema.RefreshCron); err != nil {
		return err
	}
	if a.Config.Domain.Watch && a.Config.Domain.CatalogPath != "" {
		w, err := domain.NewWatcher(a.Catalog, a.Config.Domain.CatalogPath, domain.WatchConfig{Logger: a.Logger})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return err
		}
		a.watcher = w
	}
	return nil
}

// MetricsHandler serves the Prometheus registry, or nil when metrics are off.
func (a *App) MetricsHandler() http.Handler {
	if pt, ok := a.Tracer.(*observability.PrometheusTracer); ok {
		return pt.Handler()
	}
	return nil
}

// Close stops background work and releases the database.
func (a *App) Close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Stop())
	}
	errs = append(errs, a.Cache.Close())
	return errors.Join(errs...)
}

package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/salesops/internal/agent"
	"github.com/sells-group/salesops/internal/approval"
	"github.com/sells-group/salesops/internal/config"
	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/intent"
	"github.com/sells-group/salesops/internal/resilience"
	"github.com/sells-group/salesops/internal/store"
	"github.com/sells-group/salesops/pkg/crawl4ai"
)

// appEnv holds the initialized store, provider, and engines shared by the
// discover/serve/briefing commands.
type appEnv struct {
	Store           store.Store
	Provider        crawl4ai.Client
	Registry        *agent.Registry
	Discovery       *agent.Discovery
	Signals         *intent.SignalEngine
	Recommendations *intent.RecommendationEngine
	Dispatcher      *events.Dispatcher
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store, the discovery provider, and both engines.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	provider := newProvider(cfg.Crawl4AI)
	registry := agent.NewRegistry()
	bridge := approval.NewBridge(st).WithExpiryDays(cfg.Agent.ApprovalExpiryDays)
	discovery := agent.NewDiscovery(provider, st, bridge, registry, agent.Options{
		MaxResults:    cfg.Agent.MaxResults,
		MinFitScore:   cfg.Agent.MinFitScore,
		CrawlTopN:     cfg.Agent.CrawlTopN,
		CrawlMaxPages: cfg.Agent.CrawlMaxPages,
	})

	signals := intent.NewSignalEngine(st)
	recs := intent.NewRecommendationEngine(st).WithDetection(signals)

	dispatcher := events.NewDispatcher(st)
	if cfg.Events.RetryMaxAttempts > 1 {
		dispatcher = dispatcher.WithRetry(resilience.FromRetryConfig(
			cfg.Events.RetryMaxAttempts,
			cfg.Events.RetryInitialBackoffMs,
			cfg.Events.RetryMaxBackoffMs,
			cfg.Events.RetryMultiplier,
			cfg.Events.RetryJitterFraction,
		))
	}
	intent.RegisterEventHandlers(dispatcher, signals)

	return &appEnv{
		Store:           st,
		Provider:        provider,
		Registry:        registry,
		Discovery:       discovery,
		Signals:         signals,
		Recommendations: recs,
		Dispatcher:      dispatcher,
	}, nil
}

func newProvider(c config.Crawl4AIConfig) crawl4ai.Client {
	opts := []crawl4ai.Option{crawl4ai.WithBaseURL(c.BaseURL)}
	if c.CrawlIntervalSecs > 0 {
		opts = append(opts, crawl4ai.WithCrawlRate(
			rate.Every(time.Duration(c.CrawlIntervalSecs)*time.Second), 1))
	}
	client := crawl4ai.NewClient(c.APIKey, opts...)

	breakerCfg := resilience.FromCircuitConfig(c.BreakerFailureThreshold, c.BreakerResetTimeoutSecs)
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("provider circuit state changed",
			zap.Stringer("from", from), zap.Stringer("to", to))
	}
	return agent.NewGuardedProvider(client, resilience.NewCircuitBreaker(breakerCfg))
}

package agent

import (
	"context"

	"github.com/sells-group/salesops/internal/resilience"
	"github.com/sells-group/salesops/pkg/crawl4ai"
)

// guardedProvider routes every provider call through a circuit breaker so a
// failing provider stops absorbing whole discovery runs.
type guardedProvider struct {
	inner crawl4ai.Client
	cb    *resilience.CircuitBreaker
}

// NewGuardedProvider wraps a provider with the given circuit breaker.
func NewGuardedProvider(inner crawl4ai.Client, cb *resilience.CircuitBreaker) crawl4ai.Client {
	return &guardedProvider{inner: inner, cb: cb}
}

// Health reports unavailable while the circuit is open, without probing.
func (g *guardedProvider) Health(ctx context.Context) bool {
	if g.cb.State() == resilience.CircuitOpen {
		return false
	}
	return g.inner.Health(ctx)
}

func (g *guardedProvider) ParsePrompt(ctx context.Context, prompt string) (*crawl4ai.ParsePromptResponse, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (*crawl4ai.ParsePromptResponse, error) {
		return g.inner.ParsePrompt(ctx, prompt)
	})
}

func (g *guardedProvider) Search(ctx context.Context, req *crawl4ai.SearchRequest) (*crawl4ai.SearchResponse, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (*crawl4ai.SearchResponse, error) {
		return g.inner.Search(ctx, req)
	})
}

func (g *guardedProvider) CrawlWebsite(ctx context.Context, url string, opts crawl4ai.CrawlOptions) (*crawl4ai.CrawlResponse, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (*crawl4ai.CrawlResponse, error) {
		return g.inner.CrawlWebsite(ctx, url, opts)
	})
}

func (g *guardedProvider) ScoreLeads(ctx context.Context, req *crawl4ai.ScoreRequest) (*crawl4ai.ScoreResponse, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (*crawl4ai.ScoreResponse, error) {
		return g.inner.ScoreLeads(ctx, req)
	})
}

var _ crawl4ai.Client = (*guardedProvider)(nil)

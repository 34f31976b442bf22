package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops/internal/resilience"
	"github.com/sells-group/salesops/pkg/crawl4ai"
)

func newGuarded(t *testing.T, threshold int) (crawl4ai.Client, *mockCrawl4AI, *resilience.CircuitBreaker) {
	t.Helper()
	inner := &mockCrawl4AI{}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: threshold})
	return NewGuardedProvider(inner, cb), inner, cb
}

func TestGuardedProviderPassesThrough(t *testing.T) {
	guarded, inner, _ := newGuarded(t, 3)
	ctx := context.Background()

	inner.On("Health", ctx).Return(true)
	inner.On("Search", ctx, &crawl4ai.SearchRequest{}).
		Return(&crawl4ai.SearchResponse{Total: 2}, nil)

	assert.True(t, guarded.Health(ctx))

	resp, err := guarded.Search(ctx, &crawl4ai.SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	inner.AssertExpectations(t)
}

func TestGuardedProviderOpensAfterFailures(t *testing.T) {
	guarded, inner, cb := newGuarded(t, 2)
	ctx := context.Background()

	inner.On("Search", ctx, &crawl4ai.SearchRequest{}).
		Return(nil, assert.AnError).Times(2)

	for range 2 {
		_, err := guarded.Search(ctx, &crawl4ai.SearchRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, cb.State())

	// Open circuit short-circuits without touching the provider.
	_, err := guarded.Search(ctx, &crawl4ai.SearchRequest{})
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.False(t, guarded.Health(ctx))
	inner.AssertExpectations(t)
}

func TestGuardedProviderRecovers(t *testing.T) {
	guarded, inner, cb := newGuarded(t, 1)
	ctx := context.Background()

	inner.On("ScoreLeads", ctx, &crawl4ai.ScoreRequest{}).
		Return(nil, assert.AnError).Once()
	inner.On("ScoreLeads", ctx, &crawl4ai.ScoreRequest{}).
		Return(&crawl4ai.ScoreResponse{}, nil).Once()

	_, err := guarded.ScoreLeads(ctx, &crawl4ai.ScoreRequest{})
	require.Error(t, err)
	assert.Equal(t, resilience.CircuitOpen, cb.State())

	cb.Reset()

	_, err = guarded.ScoreLeads(ctx, &crawl4ai.ScoreRequest{})
	require.NoError(t, err)
	assert.Equal(t, resilience.CircuitClosed, cb.State())
	inner.AssertExpectations(t)
}

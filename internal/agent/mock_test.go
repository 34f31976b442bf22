package agent

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/model"
	"github.com/sells-group/salesops/internal/store"
	"github.com/sells-group/salesops/pkg/crawl4ai"
)

// --- Crawl4AI Mock ---

type mockCrawl4AI struct {
	mock.Mock
}

var _ crawl4ai.Client = (*mockCrawl4AI)(nil)

func (m *mockCrawl4AI) Health(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *mockCrawl4AI) ParsePrompt(ctx context.Context, prompt string) (*crawl4ai.ParsePromptResponse, error) {
	args := m.Called(ctx, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crawl4ai.ParsePromptResponse), args.Error(1)
}

func (m *mockCrawl4AI) Search(ctx context.Context, req *crawl4ai.SearchRequest) (*crawl4ai.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crawl4ai.SearchResponse), args.Error(1)
}

func (m *mockCrawl4AI) CrawlWebsite(ctx context.Context, url string, opts crawl4ai.CrawlOptions) (*crawl4ai.CrawlResponse, error) {
	args := m.Called(ctx, url, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crawl4ai.CrawlResponse), args.Error(1)
}

func (m *mockCrawl4AI) ScoreLeads(ctx context.Context, req *crawl4ai.ScoreRequest) (*crawl4ai.ScoreResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crawl4ai.ScoreResponse), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) BulkCreateLeads(ctx context.Context, customerID string, inputs []model.CreateLeadInput) (*model.BulkCreateResult, error) {
	args := m.Called(ctx, customerID, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BulkCreateResult), args.Error(1)
}

func (m *mockStore) CountRecentLeadsBySource(ctx context.Context, customerID string, since time.Time) ([]model.LeadGroup, error) {
	args := m.Called(ctx, customerID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LeadGroup), args.Error(1)
}

func (m *mockStore) CreateApprovalItem(ctx context.Context, input *model.CreateApprovalItemInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

func (m *mockStore) ApprovalQueueSummary(ctx context.Context, customerID string) (*model.ApprovalSummary, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ApprovalSummary), args.Error(1)
}

func (m *mockStore) InsertSignalIfAbsent(ctx context.Context, signal *model.Signal) (*model.Signal, bool, error) {
	args := m.Called(ctx, signal)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Signal), args.Bool(1), args.Error(2)
}

func (m *mockStore) ResolveSignalByEntity(ctx context.Context, customerID, entityType, entityID string, signalType model.SignalType, status model.SignalStatus) (*model.Signal, error) {
	args := m.Called(ctx, customerID, entityType, entityID, signalType, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Signal), args.Error(1)
}

func (m *mockStore) ListActiveSignals(ctx context.Context, customerID string, limit int) ([]model.Signal, error) {
	args := m.Called(ctx, customerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Signal), args.Error(1)
}

func (m *mockStore) ListEntitySignals(ctx context.Context, customerID, entityType, entityID string, limit int) ([]model.Signal, error) {
	args := m.Called(ctx, customerID, entityType, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Signal), args.Error(1)
}

func (m *mockStore) InsertRecommendation(ctx context.Context, rec *model.Recommendation) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *mockStore) GetRecommendation(ctx context.Context, customerID, id string) (*model.Recommendation, error) {
	args := m.Called(ctx, customerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recommendation), args.Error(1)
}

func (m *mockStore) HasPendingRecommendationForSignal(ctx context.Context, customerID, signalID string) (bool, error) {
	args := m.Called(ctx, customerID, signalID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) ListRecommendations(ctx context.Context, customerID string, filter store.RecommendationFilter) (*model.Page[model.Recommendation], error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Page[model.Recommendation]), args.Error(1)
}

func (m *mockStore) UpdateRecommendationStatus(ctx context.Context, customerID, id string, status model.RecommendationStatus, snoozedUntil *time.Time) (*model.Recommendation, error) {
	args := m.Called(ctx, customerID, id, status, snoozedUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Recommendation), args.Error(1)
}

func (m *mockStore) InsertRecommendationFeedback(ctx context.Context, fb *model.RecommendationFeedback) error {
	args := m.Called(ctx, fb)
	return args.Error(0)
}

func (m *mockStore) ListRecommendationsBySignals(ctx context.Context, customerID string, signalIDs []string, limit int) ([]model.Recommendation, error) {
	args := m.Called(ctx, customerID, signalIDs, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Recommendation), args.Error(1)
}

func (m *mockStore) ListRecommendationsByEntityRef(ctx context.Context, customerID, entityID string, limit int) ([]model.Recommendation, error) {
	args := m.Called(ctx, customerID, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Recommendation), args.Error(1)
}

func (m *mockStore) RecordDeadEvent(ctx context.Context, entry *events.DeadEvent) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockStore) ListDeadEvents(ctx context.Context, limit int) ([]events.DeadEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]events.DeadEvent), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

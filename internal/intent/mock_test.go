package intent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/model"
	"github.com/sells-group/salesops/internal/store"
)

// mockStore implements store.Store in memory for engine tests. Signal
// state is guarded because detection scans run concurrently.
type mockStore struct {
	mu              sync.Mutex
	signals         []model.Signal
	recommendations []model.Recommendation
	feedback        []model.RecommendationFeedback
	deadEvents      []events.DeadEvent
	leadGroups      []model.LeadGroup

	nextID int

	insertSignalErr error
	listSignalsErr  error
	insertRecErr    error
	leadGroupsErr   error
}

func (m *mockStore) genID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockStore) InsertSignalIfAbsent(_ context.Context, sig *model.Signal) (*model.Signal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertSignalErr != nil {
		return nil, false, m.insertSignalErr
	}
	for i := range m.signals {
		existing := &m.signals[i]
		if existing.Status == model.SignalActive &&
			existing.CustomerID == sig.CustomerID &&
			existing.EntityType == sig.EntityType &&
			existing.EntityID == sig.EntityID &&
			existing.Type == sig.Type {
			return existing, false, nil
		}
	}
	if sig.ID == "" {
		sig.ID = m.genID("sig")
	}
	if sig.Status == "" {
		sig.Status = model.SignalActive
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	m.signals = append(m.signals, *sig)
	return sig, true, nil
}

func (m *mockStore) ResolveSignalByEntity(_ context.Context, customerID, entityType, entityID string, signalType model.SignalType, status model.SignalStatus) (*model.Signal, error) {
	for i := range m.signals {
		sig := &m.signals[i]
		if sig.Status == model.SignalActive &&
			sig.CustomerID == customerID &&
			sig.EntityType == entityType &&
			sig.EntityID == entityID &&
			sig.Type == signalType {
			now := time.Now().UTC()
			sig.Status = status
			sig.ResolvedAt = &now
			out := *sig
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListActiveSignals(_ context.Context, customerID string, limit int) ([]model.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listSignalsErr != nil {
		return nil, m.listSignalsErr
	}
	var out []model.Signal
	for _, sig := range m.signals {
		if sig.CustomerID == customerID && sig.Status == model.SignalActive {
			out = append(out, sig)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListEntitySignals(_ context.Context, customerID, entityType, entityID string, limit int) ([]model.Signal, error) {
	var out []model.Signal
	for _, sig := range m.signals {
		if sig.CustomerID == customerID && sig.Status == model.SignalActive &&
			sig.EntityType == entityType && sig.EntityID == entityID {
			out = append(out, sig)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) InsertRecommendation(_ context.Context, rec *model.Recommendation) error {
	if m.insertRecErr != nil {
		return m.insertRecErr
	}
	if rec.ID == "" {
		rec.ID = m.genID("rec")
	}
	if rec.Status == "" {
		rec.Status = model.RecommendationPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.recommendations = append(m.recommendations, *rec)
	return nil
}

func (m *mockStore) GetRecommendation(_ context.Context, customerID, id string) (*model.Recommendation, error) {
	for i := range m.recommendations {
		rec := &m.recommendations[i]
		if rec.ID == id && rec.CustomerID == customerID {
			out := *rec
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) HasPendingRecommendationForSignal(_ context.Context, customerID, signalID string) (bool, error) {
	for _, rec := range m.recommendations {
		if rec.CustomerID == customerID && rec.SignalID == signalID && rec.Status == model.RecommendationPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) ListRecommendations(_ context.Context, customerID string, filter store.RecommendationFilter) (*model.Page[model.Recommendation], error) {
	status := filter.Status
	if status == "" {
		status = model.RecommendationPending
	}
	var out []model.Recommendation
	for _, rec := range m.recommendations {
		if rec.CustomerID != customerID || rec.Status != status {
			continue
		}
		if filter.UserID != "" && rec.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].Score > out[j].Score
	})
	total := len(out)
	limit := filter.Limit
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return model.NewPage(out, filter.Page, limit, total), nil
}

func (m *mockStore) UpdateRecommendationStatus(_ context.Context, customerID, id string, status model.RecommendationStatus, snoozedUntil *time.Time) (*model.Recommendation, error) {
	for i := range m.recommendations {
		rec := &m.recommendations[i]
		if rec.ID != id || rec.CustomerID != customerID {
			continue
		}
		now := time.Now().UTC()
		rec.Status = status
		switch status {
		case model.RecommendationActed:
			rec.ActedAt = &now
		case model.RecommendationDismissed:
			rec.DismissedAt = &now
		case model.RecommendationSnoozed:
			rec.SnoozedUntil = snoozedUntil
		}
		out := *rec
		return &out, nil
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) InsertRecommendationFeedback(_ context.Context, fb *model.RecommendationFeedback) error {
	if fb.ID == "" {
		fb.ID = m.genID("fb")
	}
	m.feedback = append(m.feedback, *fb)
	return nil
}

func (m *mockStore) ListRecommendationsBySignals(_ context.Context, customerID string, signalIDs []string, limit int) ([]model.Recommendation, error) {
	wanted := make(map[string]bool, len(signalIDs))
	for _, id := range signalIDs {
		wanted[id] = true
	}
	var out []model.Recommendation
	for _, rec := range m.recommendations {
		if rec.CustomerID == customerID && rec.Status == model.RecommendationPending && wanted[rec.SignalID] {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListRecommendationsByEntityRef(_ context.Context, customerID, entityID string, limit int) ([]model.Recommendation, error) {
	keys := []string{"opportunityId", "accountId", "contactId"}
	var out []model.Recommendation
	for _, rec := range m.recommendations {
		if rec.CustomerID != customerID || rec.Status != model.RecommendationPending {
			continue
		}
		match := false
		for _, key := range keys {
			if v, ok := rec.Data[key].(string); ok && v == entityID {
				match = true
			}
			if v, ok := rec.CardProps[key].(string); ok && v == entityID {
				match = true
			}
		}
		if match {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) BulkCreateLeads(_ context.Context, _ string, inputs []model.CreateLeadInput) (*model.BulkCreateResult, error) {
	result := &model.BulkCreateResult{}
	for _, in := range inputs {
		result.Created = append(result.Created, model.Lead{ID: m.genID("lead"), CompanyName: in.CompanyName, FitScore: in.FitScore})
	}
	return result, nil
}

func (m *mockStore) CountRecentLeadsBySource(_ context.Context, _ string, _ time.Time) ([]model.LeadGroup, error) {
	if m.leadGroupsErr != nil {
		return nil, m.leadGroupsErr
	}
	return m.leadGroups, nil
}

func (m *mockStore) CreateApprovalItem(_ context.Context, _ *model.CreateApprovalItemInput) (string, error) {
	return m.genID("appr"), nil
}

func (m *mockStore) ApprovalQueueSummary(_ context.Context, _ string) (*model.ApprovalSummary, error) {
	return &model.ApprovalSummary{}, nil
}

func (m *mockStore) RecordDeadEvent(_ context.Context, entry *events.DeadEvent) error {
	m.deadEvents = append(m.deadEvents, *entry)
	return nil
}

func (m *mockStore) ListDeadEvents(_ context.Context, _ int) ([]events.DeadEvent, error) {
	return nil, nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }

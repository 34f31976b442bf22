package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Leads ---

func TestBulkCreateLeads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.BulkCreateLeads(ctx, "cust-1", []model.CreateLeadInput{
		{CompanyName: "Acme Corp", Domain: "acme.com", ContactEmail: "jo@acme.com", Source: "agent_discovery", FitScore: 82},
		{CompanyName: "Globex", Domain: "globex.com", Source: "agent_discovery", FitScore: 55},
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	assert.Empty(t, res.Errors)
	assert.NotEmpty(t, res.Created[0].ID)
	assert.Equal(t, "cust-1", res.Created[0].CustomerID)
	assert.Equal(t, 82.0, res.Created[0].FitScore)
}

func TestBulkCreateLeadsDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.BulkCreateLeads(ctx, "cust-1", []model.CreateLeadInput{
		{CompanyName: "Acme Corp", ContactEmail: "jo@acme.com", Source: "agent_discovery"},
		{CompanyName: "Acme Clone", ContactEmail: "jo@acme.com", Source: "agent_discovery"},
		{CompanyName: "Globex", ContactEmail: "pat@globex.com", Source: "agent_discovery"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Contains(t, res.Errors[0].Error, "jo@acme.com")
}

func TestBulkCreateLeadsEmptyEmailsNotDeduped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.BulkCreateLeads(ctx, "cust-1", []model.CreateLeadInput{
		{CompanyName: "No Contact A", Source: "agent_discovery"},
		{CompanyName: "No Contact B", Source: "agent_discovery"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 2)
	assert.Empty(t, res.Errors)
}

func TestCountRecentLeadsBySource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BulkCreateLeads(ctx, "cust-1", []model.CreateLeadInput{
		{CompanyName: "Acme Corp", Source: "agent_discovery", GenerationJobID: "job-1"},
		{CompanyName: "Globex", Source: "agent_discovery", GenerationJobID: "job-1"},
		{CompanyName: "Initech", Source: "csv_import"},
	})
	require.NoError(t, err)
	_, err = s.BulkCreateLeads(ctx, "cust-2", []model.CreateLeadInput{
		{CompanyName: "Other Tenant", Source: "agent_discovery"},
	})
	require.NoError(t, err)

	groups, err := s.CountRecentLeadsBySource(ctx, "cust-1", time.Now().Add(-time.Hour).UTC())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, model.LeadGroup{Source: "agent_discovery", GenerationJobID: "job-1", Count: 2}, groups[0])
	assert.Equal(t, model.LeadGroup{Source: "csv_import", Count: 1}, groups[1])

	// Nothing created after the cutoff.
	groups, err = s.CountRecentLeadsBySource(ctx, "cust-1", time.Now().Add(time.Hour).UTC())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

// --- Approval queue ---

func TestApprovalItemAndSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expires := time.Now().Add(7 * 24 * time.Hour)
	for _, bucket := range []model.FitScoreBucket{model.BucketHigh, model.BucketHigh, model.BucketMedium} {
		id, err := s.CreateApprovalItem(ctx, &model.CreateApprovalItemInput{
			CustomerID:       "cust-1",
			EntityType:       "lead",
			EntityID:         "lead-x",
			Title:            "Enrich: Acme Corp",
			EstimatedCredits: 1,
			BatchID:          "batch-1",
			FitScoreBucket:   bucket,
			ExpiresAt:        &expires,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	}

	summary, err := s.ApprovalQueueSummary(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Pending)
	assert.Equal(t, 3, summary.EstimatedCredits)
	assert.Equal(t, 2, summary.ByBucket[model.BucketHigh])
	assert.Equal(t, 1, summary.ByBucket[model.BucketMedium])
	assert.Equal(t, 0, summary.ByBucket[model.BucketLow])
}

// --- Signals ---

func activeSignal(customerID, entityID string, sigType model.SignalType, sev model.Severity) *model.Signal {
	return &model.Signal{
		CustomerID: customerID,
		EntityType: "opportunity",
		EntityID:   entityID,
		Type:       sigType,
		Severity:   sev,
		Title:      "test signal",
	}
}

func TestInsertSignalIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, created, err := s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-1", model.SignalHighIntent, model.SeverityHigh))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	// Same active key: no new row, existing returned.
	second, created, err := s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-1", model.SignalHighIntent, model.SeverityHigh))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// Different entity: new row.
	third, created, err := s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-2", model.SignalHighIntent, model.SeverityHigh))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestInsertSignalAfterResolveCreatesNew(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _, err := s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-1", model.SignalDealStalled, model.SeverityMedium))
	require.NoError(t, err)

	resolved, err := s.ResolveSignalByEntity(ctx, "cust-1", "opportunity", "opp-1", model.SignalDealStalled, model.SignalResolved)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, first.ID, resolved.ID)
	assert.Equal(t, model.SignalResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	// Active key is free again.
	second, created, err := s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-1", model.SignalDealStalled, model.SeverityMedium))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestResolveSignalNoMatchReturnsNil(t *testing.T) {
	s := newTestStore(t)

	sig, err := s.ResolveSignalByEntity(context.Background(), "cust-1", "opportunity", "missing", model.SignalDealStalled, model.SignalResolved)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestListActiveSignalsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-low", model.SignalLeadsReady, model.SeverityLow))
	require.NoError(t, err)
	_, _, err = s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-high", model.SignalHighIntent, model.SeverityHigh))
	require.NoError(t, err)
	_, _, err = s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-med", model.SignalFollowupNeeded, model.SeverityMedium))
	require.NoError(t, err)

	signals, err := s.ListActiveSignals(ctx, "cust-1", 10)
	require.NoError(t, err)
	require.Len(t, signals, 3)
	assert.Equal(t, model.SeverityHigh, signals[0].Severity)
	assert.Equal(t, model.SeverityMedium, signals[1].Severity)
	assert.Equal(t, model.SeverityLow, signals[2].Severity)
}

func TestListEntitySignals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-1", model.SignalHighIntent, model.SeverityHigh))
	require.NoError(t, err)
	_, _, err = s.InsertSignalIfAbsent(ctx, activeSignal("cust-1", "opp-2", model.SignalHighIntent, model.SeverityHigh))
	require.NoError(t, err)

	signals, err := s.ListEntitySignals(ctx, "cust-1", "opportunity", "opp-1", 5)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "opp-1", signals[0].EntityID)
}

// --- Recommendations ---

func pendingRec(customerID, signalID string, priority model.Severity, score float64) *model.Recommendation {
	return &model.Recommendation{
		CustomerID: customerID,
		SignalID:   signalID,
		ActionType: model.ActionViewDeal,
		Priority:   priority,
		Score:      score,
		Title:      "test recommendation",
		CardType:   model.CardActionGeneric,
	}
}

func TestInsertAndGetRecommendation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRec("cust-1", "sig-1", model.SeverityHigh, 100)
	rec.CTAParams = map[string]string{"opportunityId": "opp-1"}
	rec.Data = map[string]any{"opportunityId": "opp-1"}
	require.NoError(t, s.InsertRecommendation(ctx, rec))

	got, err := s.GetRecommendation(ctx, "cust-1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, "opp-1", got.CTAParams["opportunityId"])
	assert.Equal(t, "opp-1", got.Data["opportunityId"])
	assert.Equal(t, model.RecommendationPending, got.Status)
}

func TestGetRecommendationNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRecommendation(context.Background(), "cust-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRecommendationWrongTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRec("cust-1", "sig-1", model.SeverityHigh, 100)
	require.NoError(t, s.InsertRecommendation(ctx, rec))

	_, err := s.GetRecommendation(ctx, "cust-2", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRecommendationsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	low := pendingRec("cust-1", "sig-a", model.SeverityLow, 25)
	highLowScore := pendingRec("cust-1", "sig-b", model.SeverityHigh, 50)
	highHighScore := pendingRec("cust-1", "sig-c", model.SeverityHigh, 100)
	medium := pendingRec("cust-1", "sig-d", model.SeverityMedium, 50)
	for _, r := range []*model.Recommendation{low, highLowScore, highHighScore, medium} {
		require.NoError(t, s.InsertRecommendation(ctx, r))
	}

	page, err := s.ListRecommendations(ctx, "cust-1", RecommendationFilter{})
	require.NoError(t, err)
	require.Len(t, page.Data, 4)
	assert.Equal(t, highHighScore.ID, page.Data[0].ID)
	assert.Equal(t, highLowScore.ID, page.Data[1].ID)
	assert.Equal(t, medium.ID, page.Data[2].ID)
	assert.Equal(t, low.ID, page.Data[3].ID)
	assert.Equal(t, 4, page.Total)
}

func TestListRecommendationsExcludesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	expired := pendingRec("cust-1", "sig-a", model.SeverityHigh, 100)
	past := time.Now().Add(-time.Hour)
	expired.ExpiresAt = &past
	live := pendingRec("cust-1", "sig-b", model.SeverityLow, 25)
	require.NoError(t, s.InsertRecommendation(ctx, expired))
	require.NoError(t, s.InsertRecommendation(ctx, live))

	page, err := s.ListRecommendations(ctx, "cust-1", RecommendationFilter{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, live.ID, page.Data[0].ID)

	all, err := s.ListRecommendations(ctx, "cust-1", RecommendationFilter{IncludeExpired: true})
	require.NoError(t, err)
	assert.Len(t, all.Data, 2)
}

func TestListRecommendationsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	viewDeal := pendingRec("cust-1", "sig-a", model.SeverityHigh, 100)
	reviewLeads := pendingRec("cust-1", "sig-b", model.SeverityMedium, 50)
	reviewLeads.ActionType = model.ActionReviewLeads
	userScoped := pendingRec("cust-1", "sig-c", model.SeverityLow, 25)
	userScoped.UserID = "user-1"
	for _, r := range []*model.Recommendation{viewDeal, reviewLeads, userScoped} {
		require.NoError(t, s.InsertRecommendation(ctx, r))
	}

	page, err := s.ListRecommendations(ctx, "cust-1", RecommendationFilter{
		ActionType: []model.ActionType{model.ActionReviewLeads},
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, reviewLeads.ID, page.Data[0].ID)

	page, err = s.ListRecommendations(ctx, "cust-1", RecommendationFilter{
		Priority: []model.Severity{model.SeverityHigh},
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, viewDeal.ID, page.Data[0].ID)

	// User filter includes tenant-wide rows plus the user's own.
	page, err = s.ListRecommendations(ctx, "cust-1", RecommendationFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, page.Data, 3)

	page, err = s.ListRecommendations(ctx, "cust-1", RecommendationFilter{UserID: "user-2"})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
}

func TestListRecommendationsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.InsertRecommendation(ctx, pendingRec("cust-1", "", model.SeverityHigh, float64(i))))
	}

	page, err := s.ListRecommendations(ctx, "cust-1", RecommendationFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestUpdateRecommendationStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRec("cust-1", "sig-1", model.SeverityHigh, 100)
	require.NoError(t, s.InsertRecommendation(ctx, rec))

	acted, err := s.UpdateRecommendationStatus(ctx, "cust-1", rec.ID, model.RecommendationActed, nil)
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationActed, acted.Status)
	assert.NotNil(t, acted.ActedAt)

	rec2 := pendingRec("cust-1", "sig-2", model.SeverityHigh, 100)
	require.NoError(t, s.InsertRecommendation(ctx, rec2))
	until := time.Now().Add(24 * time.Hour).UTC()
	snoozed, err := s.UpdateRecommendationStatus(ctx, "cust-1", rec2.ID, model.RecommendationSnoozed, &until)
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationSnoozed, snoozed.Status)
	require.NotNil(t, snoozed.SnoozedUntil)
	assert.WithinDuration(t, until, *snoozed.SnoozedUntil, time.Second)

	_, err = s.UpdateRecommendationStatus(ctx, "cust-1", "missing", model.RecommendationActed, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHasPendingRecommendationForSignal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	has, err := s.HasPendingRecommendationForSignal(ctx, "cust-1", "sig-1")
	require.NoError(t, err)
	assert.False(t, has)

	rec := pendingRec("cust-1", "sig-1", model.SeverityHigh, 100)
	require.NoError(t, s.InsertRecommendation(ctx, rec))

	has, err = s.HasPendingRecommendationForSignal(ctx, "cust-1", "sig-1")
	require.NoError(t, err)
	assert.True(t, has)

	_, err = s.UpdateRecommendationStatus(ctx, "cust-1", rec.ID, model.RecommendationDismissed, nil)
	require.NoError(t, err)

	has, err = s.HasPendingRecommendationForSignal(ctx, "cust-1", "sig-1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestInsertRecommendationFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := pendingRec("cust-1", "sig-1", model.SeverityHigh, 100)
	require.NoError(t, s.InsertRecommendation(ctx, rec))

	fb := &model.RecommendationFeedback{
		RecommendationID: rec.ID,
		UserID:           "user-1",
		Action:           model.FeedbackAccepted,
	}
	require.NoError(t, s.InsertRecommendationFeedback(ctx, fb))
	assert.NotEmpty(t, fb.ID)
}

func TestListRecommendationsBySignals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := pendingRec("cust-1", "sig-a", model.SeverityHigh, 100)
	b := pendingRec("cust-1", "sig-b", model.SeverityLow, 25)
	other := pendingRec("cust-1", "sig-other", model.SeverityHigh, 100)
	for _, r := range []*model.Recommendation{a, b, other} {
		require.NoError(t, s.InsertRecommendation(ctx, r))
	}

	recs, err := s.ListRecommendationsBySignals(ctx, "cust-1", []string{"sig-a", "sig-b"}, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, a.ID, recs[0].ID)

	recs, err = s.ListRecommendationsBySignals(ctx, "cust-1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestListRecommendationsByEntityRef(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	matched := pendingRec("cust-1", "sig-a", model.SeverityHigh, 100)
	matched.Data = map[string]any{"opportunityId": "opp-1"}
	viaProps := pendingRec("cust-1", "sig-b", model.SeverityMedium, 50)
	viaProps.CardProps = map[string]any{"accountId": "opp-1"}
	unrelated := pendingRec("cust-1", "sig-c", model.SeverityHigh, 100)
	unrelated.Data = map[string]any{"opportunityId": "opp-2"}
	for _, r := range []*model.Recommendation{matched, viaProps, unrelated} {
		require.NoError(t, s.InsertRecommendation(ctx, r))
	}

	recs, err := s.ListRecommendationsByEntityRef(ctx, "cust-1", "opp-1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	ids := []string{recs[0].ID, recs[1].ID}
	assert.Contains(t, ids, matched.ID)
	assert.Contains(t, ids, viaProps.ID)
}

// --- Dead events ---

func TestDeadEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := &events.DeadEvent{
		ID: "dead-1",
		Event: events.DomainEvent{
			EventID:   "evt-1",
			EventType: events.OpportunityCreated,
			Payload:   map[string]any{"amount": 250000.0},
			Metadata:  events.Metadata{CustomerID: "cust-1"},
		},
		Error:     "handler exploded",
		ErrorType: "transient",
		FailedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.RecordDeadEvent(ctx, entry))

	dead, err := s.ListDeadEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "dead-1", dead[0].ID)
	assert.Equal(t, events.OpportunityCreated, dead[0].Event.EventType)
	assert.Equal(t, "handler exploded", dead[0].Error)
	assert.Equal(t, "transient", dead[0].ErrorType)
}

func TestDeadEventDefaultsErrorType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordDeadEvent(ctx, &events.DeadEvent{
		ID:       "dead-2",
		Event:    events.DomainEvent{EventID: "evt-2", EventType: events.LeadCreated},
		Error:    "boom",
		FailedAt: time.Now().UTC(),
	}))

	dead, err := s.ListDeadEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "permanent", dead[0].ErrorType)
}

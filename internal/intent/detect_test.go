package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops/internal/model"
)

// fakeOpportunitySource returns a fixed stalled-deal list.
type fakeOpportunitySource struct {
	stalled []StalledOpportunity
	err     error

	gotSince time.Time
}

func (f *fakeOpportunitySource) ListStalled(_ context.Context, _ string, inactiveSince time.Time) ([]StalledOpportunity, error) {
	f.gotSince = inactiveSince
	if f.err != nil {
		return nil, f.err
	}
	return f.stalled, nil
}

func TestDetectStalledDeals(t *testing.T) {
	m := &mockStore{}
	src := &fakeOpportunitySource{stalled: []StalledOpportunity{
		{ID: "opp-1", Name: "Acme renewal", Stage: "negotiation", Amount: 42000, AccountID: "acc-1"},
		{ID: "opp-2", Name: "Globex pilot", Stage: "proposal", Amount: 9000},
	}}
	engine := NewSignalEngine(m).WithOpportunitySource(src)

	result, err := engine.DetectAll(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, result.StalledDeals, 2)
	assert.Equal(t, 2, result.Created())

	sig := result.StalledDeals[0]
	assert.Equal(t, model.SignalDealStalled, sig.Type)
	assert.Equal(t, model.SeverityHigh, sig.Severity)
	assert.Equal(t, "opportunity", sig.EntityType)
	assert.Equal(t, "opp-1", sig.EntityID)
	assert.Contains(t, sig.Title, `"Acme renewal"`)
	assert.Contains(t, sig.Description, "negotiation")
	assert.Equal(t, "opp-1", sig.Data["opportunityId"])
	assert.Equal(t, stalledThresholdDays, sig.Data["daysSinceActivity"])
	require.NotNil(t, sig.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, stalledSignalExpiryDays), *sig.ExpiresAt, time.Minute)

	// The source is queried for the 14-day inactivity cutoff.
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -stalledThresholdDays), src.gotSince, time.Minute)

	// A second scan finds the signals already active and creates nothing.
	again, err := engine.DetectAll(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Zero(t, again.Created())
	assert.Len(t, m.signals, 2)
}

func TestDetectStalledDealsWithoutSource(t *testing.T) {
	engine := NewSignalEngine(&mockStore{})

	result, err := engine.DetectAll(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Zero(t, result.Created())
}

func TestDetectStalledDealsSourceError(t *testing.T) {
	src := &fakeOpportunitySource{err: errors.New("crm unavailable")}
	engine := NewSignalEngine(&mockStore{}).WithOpportunitySource(src)

	_, err := engine.DetectAll(context.Background(), "cust-1")
	assert.ErrorContains(t, err, "crm unavailable")
}

func TestDetectLeadsReady(t *testing.T) {
	m := &mockStore{leadGroups: []model.LeadGroup{
		{Source: "agent", GenerationJobID: "job-9", Count: 12},
		{Source: "csv_import", Count: 3},
	}}
	engine := NewSignalEngine(m)

	result, err := engine.DetectAll(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, result.LeadsReady, 1)

	sig := result.LeadsReady[0]
	assert.Equal(t, model.SignalLeadsReady, sig.Type)
	assert.Equal(t, model.SeverityMedium, sig.Severity)
	assert.Equal(t, "leads", sig.EntityType)
	assert.Equal(t, "job-9", sig.EntityID)
	assert.Equal(t, "12 new leads ready for review", sig.Title)
	assert.Contains(t, sig.Description, "agent")
	assert.Equal(t, 12, sig.Data["count"])
	assert.Equal(t, "job-9", sig.Data["campaignId"])
	require.NotNil(t, sig.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, leadsReadySignalExpiryDays), *sig.ExpiresAt, time.Minute)
}

func TestDetectLeadsReadyFallsBackToSource(t *testing.T) {
	m := &mockStore{leadGroups: []model.LeadGroup{{Source: "csv_import", Count: 5}}}
	engine := NewSignalEngine(m)

	result, err := engine.DetectAll(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, result.LeadsReady, 1)
	assert.Equal(t, "csv_import", result.LeadsReady[0].EntityID)
}

func TestDetectLeadsReadySuppressedInsideWindow(t *testing.T) {
	m := &mockStore{leadGroups: []model.LeadGroup{{Source: "agent", Count: 4}}}
	engine := NewSignalEngine(m)
	ctx := context.Background()

	first, err := engine.DetectAll(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, first.LeadsReady, 1)

	// More leads arrive, but the window is already covered by an active
	// batch signal.
	m.leadGroups = append(m.leadGroups, model.LeadGroup{Source: "referral", Count: 2})
	second, err := engine.DetectAll(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, second.LeadsReady)
	assert.Len(t, m.signals, 1)
}

func TestDetectLeadsReadyNoRecentLeads(t *testing.T) {
	engine := NewSignalEngine(&mockStore{})

	result, err := engine.DetectAll(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Empty(t, result.LeadsReady)
}

func TestDetectLeadsReadyStoreError(t *testing.T) {
	m := &mockStore{leadGroupsErr: errors.New("db down")}
	engine := NewSignalEngine(m)

	_, err := engine.DetectAll(context.Background(), "cust-1")
	assert.ErrorContains(t, err, "count recent leads")
}

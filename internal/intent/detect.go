package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/salesops/internal/model"
)

// Detection thresholds.
const (
	stalledThresholdDays = 14
	leadsReadyWindow     = 24 * time.Hour

	stalledSignalExpiryDays    = 7
	leadsReadySignalExpiryDays = 3
)

// StalledOpportunity is an open deal with no recent activity, as reported
// by the CRM backing the tenant.
type StalledOpportunity struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Stage     string  `json:"stage"`
	Amount    float64 `json:"amount"`
	AccountID string  `json:"account_id,omitempty"`
}

// OpportunitySource lists open opportunities whose last activity predates
// inactiveSince. Deal records live in the CRM, not in this service, so the
// engine takes the source as a collaborator.
type OpportunitySource interface {
	ListStalled(ctx context.Context, customerID string, inactiveSince time.Time) ([]StalledOpportunity, error)
}

// WithOpportunitySource enables stalled-deal detection.
func (e *SignalEngine) WithOpportunitySource(src OpportunitySource) *SignalEngine {
	e.opps = src
	return e
}

// DetectionResult reports the signals a scan created.
type DetectionResult struct {
	StalledDeals []model.Signal `json:"stalled_deals"`
	LeadsReady   []model.Signal `json:"leads_ready"`
}

// Created is the total number of signals the scan created.
func (r *DetectionResult) Created() int {
	return len(r.StalledDeals) + len(r.LeadsReady)
}

// DetectAll runs every detection heuristic for a tenant. Both scans are
// idempotent: an entity with a live signal of the same type is skipped.
func (e *SignalEngine) DetectAll(ctx context.Context, customerID string) (*DetectionResult, error) {
	result := &DetectionResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result.StalledDeals, err = e.detectStalledDeals(gctx, customerID)
		return err
	})
	g.Go(func() error {
		var err error
		result.LeadsReady, err = e.detectLeadsReady(gctx, customerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if n := result.Created(); n > 0 {
		zap.L().Info("signal detection completed",
			zap.String("customer_id", customerID),
			zap.Int("created", n))
	}
	return result, nil
}

// detectStalledDeals flags open opportunities inactive for 14+ days.
func (e *SignalEngine) detectStalledDeals(ctx context.Context, customerID string) ([]model.Signal, error) {
	if e.opps == nil {
		return nil, nil
	}

	inactiveSince := time.Now().AddDate(0, 0, -stalledThresholdDays).UTC()
	stalled, err := e.opps.ListStalled(ctx, customerID, inactiveSince)
	if err != nil {
		return nil, eris.Wrap(err, "intent: list stalled opportunities")
	}

	var created []model.Signal
	for _, opp := range stalled {
		expires := time.Now().AddDate(0, 0, stalledSignalExpiryDays).UTC()
		sig := &model.Signal{
			CustomerID:  customerID,
			EntityType:  "opportunity",
			EntityID:    opp.ID,
			Type:        model.SignalDealStalled,
			Severity:    model.SeverityHigh,
			Title:       fmt.Sprintf("Deal %q has been inactive for %d+ days", opp.Name, stalledThresholdDays),
			Description: fmt.Sprintf("This opportunity in %s stage has had no activity recently. Consider reaching out or updating the status.", opp.Stage),
			Data: map[string]any{
				"opportunityId":     opp.ID,
				"opportunityName":   opp.Name,
				"stage":             opp.Stage,
				"amount":            opp.Amount,
				"accountId":         opp.AccountID,
				"daysSinceActivity": stalledThresholdDays,
			},
			ExpiresAt: &expires,
		}
		out, isNew, err := e.UpsertSignal(ctx, sig)
		if err != nil {
			return nil, err
		}
		if isNew {
			created = append(created, *out)
		}
	}
	return created, nil
}

// detectLeadsReady raises one batch signal when leads arrived in the last
// 24 hours and no leads-ready signal covers the window yet.
func (e *SignalEngine) detectLeadsReady(ctx context.Context, customerID string) ([]model.Signal, error) {
	since := time.Now().Add(-leadsReadyWindow).UTC()

	groups, err := e.store.CountRecentLeadsBySource(ctx, customerID, since)
	if err != nil {
		return nil, eris.Wrap(err, "intent: count recent leads")
	}
	if len(groups) == 0 {
		return nil, nil
	}

	// One signal covers the whole window across all sources.
	active, err := e.store.ListActiveSignals(ctx, customerID, 0)
	if err != nil {
		return nil, eris.Wrap(err, "intent: list active signals")
	}
	for _, sig := range active {
		if sig.Type == model.SignalLeadsReady && sig.CreatedAt.After(since) {
			return nil, nil
		}
	}

	group := groups[0]
	expires := time.Now().AddDate(0, 0, leadsReadySignalExpiryDays).UTC()
	sig := &model.Signal{
		CustomerID:  customerID,
		EntityType:  "leads",
		EntityID:    group.BatchEntityID(),
		Type:        model.SignalLeadsReady,
		Severity:    model.SeverityMedium,
		Title:       fmt.Sprintf("%d new leads ready for review", group.Count),
		Description: fmt.Sprintf("New leads from %s are ready for review and qualification.", group.Source),
		Data: map[string]any{
			"count":      group.Count,
			"source":     group.Source,
			"campaignId": group.GenerationJobID,
		},
		ExpiresAt: &expires,
	}
	out, isNew, err := e.UpsertSignal(ctx, sig)
	if err != nil {
		return nil, err
	}
	if !isNew {
		return nil, nil
	}
	return []model.Signal{*out}, nil
}

package intent

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/salesops/internal/model"
	"github.com/sells-group/salesops/internal/store"
)

// Briefing defaults.
const (
	briefingSignalLimit         = 20
	briefingRecommendationLimit = 10
	contextualLimit             = 5
)

// RecommendationEngine generates, ranks and transitions recommendations.
type RecommendationEngine struct {
	store   store.Store
	signals *SignalEngine
}

func NewRecommendationEngine(s store.Store) *RecommendationEngine {
	return &RecommendationEngine{store: s}
}

// WithDetection makes RefreshBriefing run signal detection before
// regenerating recommendations.
func (e *RecommendationEngine) WithDetection(se *SignalEngine) *RecommendationEngine {
	e.signals = se
	return e
}

// GenerateFromSignals scans active signals and creates one pending
// recommendation per signal that lacks one. Signal types without a mapping
// are skipped.
func (e *RecommendationEngine) GenerateFromSignals(ctx context.Context, customerID string) ([]model.Recommendation, error) {
	signals, err := e.store.ListActiveSignals(ctx, customerID, 0)
	if err != nil {
		return nil, eris.Wrap(err, "intent: list signals for generation")
	}

	var created []model.Recommendation
	for i := range signals {
		sig := &signals[i]

		pending, err := e.store.HasPendingRecommendationForSignal(ctx, customerID, sig.ID)
		if err != nil {
			return nil, eris.Wrap(err, "intent: check pending recommendation")
		}
		if pending {
			continue
		}

		rec := mapSignal(sig)
		if rec == nil {
			continue
		}
		if err := e.store.InsertRecommendation(ctx, rec); err != nil {
			return nil, eris.Wrap(err, "intent: insert recommendation")
		}
		created = append(created, *rec)
	}

	if len(created) > 0 {
		zap.L().Info("recommendations generated",
			zap.String("customer_id", customerID),
			zap.Int("count", len(created)))
	}
	return created, nil
}

// List returns recommendations ordered by priority, then score, then recency.
func (e *RecommendationEngine) List(ctx context.Context, customerID string, filter store.RecommendationFilter) (*model.Page[model.Recommendation], error) {
	page, err := e.store.ListRecommendations(ctx, customerID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "intent: list recommendations")
	}
	return page, nil
}

// Get fetches a single recommendation scoped to the tenant.
func (e *RecommendationEngine) Get(ctx context.Context, customerID, id string) (*model.Recommendation, error) {
	return e.store.GetRecommendation(ctx, customerID, id)
}

// UpdateStatus transitions a recommendation and stamps the matching
// timestamp field.
func (e *RecommendationEngine) UpdateStatus(ctx context.Context, customerID, id string, status model.RecommendationStatus, snoozedUntil *time.Time) (*model.Recommendation, error) {
	rec, err := e.store.UpdateRecommendationStatus(ctx, customerID, id, status, snoozedUntil)
	if err != nil {
		return nil, err
	}
	zap.L().Info("recommendation status updated",
		zap.String("recommendation_id", id),
		zap.String("status", string(status)))
	return rec, nil
}

// RecordFeedback persists a feedback row and applies the implied status
// transition: accepted acts, declined dismisses, snoozed stamps snoozedUntil.
func (e *RecommendationEngine) RecordFeedback(ctx context.Context, customerID, recommendationID, userID string, action model.FeedbackAction, data map[string]any, snoozedUntil *time.Time) (*model.RecommendationFeedback, error) {
	if _, err := e.store.GetRecommendation(ctx, customerID, recommendationID); err != nil {
		return nil, err
	}

	fb := &model.RecommendationFeedback{
		RecommendationID: recommendationID,
		UserID:           userID,
		Action:           action,
		Data:             data,
	}
	if err := e.store.InsertRecommendationFeedback(ctx, fb); err != nil {
		return nil, eris.Wrap(err, "intent: insert feedback")
	}

	switch action {
	case model.FeedbackAccepted:
		_, err := e.store.UpdateRecommendationStatus(ctx, customerID, recommendationID, model.RecommendationActed, nil)
		if err != nil {
			return nil, eris.Wrap(err, "intent: mark acted")
		}
	case model.FeedbackDeclined:
		_, err := e.store.UpdateRecommendationStatus(ctx, customerID, recommendationID, model.RecommendationDismissed, nil)
		if err != nil {
			return nil, eris.Wrap(err, "intent: mark dismissed")
		}
	case model.FeedbackSnoozed:
		_, err := e.store.UpdateRecommendationStatus(ctx, customerID, recommendationID, model.RecommendationSnoozed, snoozedUntil)
		if err != nil {
			return nil, eris.Wrap(err, "intent: mark snoozed")
		}
	}

	return fb, nil
}

// BriefingSummary counts pending recommendations by priority.
type BriefingSummary struct {
	TotalSignals   int `json:"totalSignals"`
	HighPriority   int `json:"highPriority"`
	MediumPriority int `json:"mediumPriority"`
	LowPriority    int `json:"lowPriority"`
}

// Briefing is the main intent surface: top recommendations, active signals
// and a priority summary.
type Briefing struct {
	Recommendations []model.Recommendation `json:"recommendations"`
	Signals         []model.Signal         `json:"signals"`
	Summary         BriefingSummary        `json:"summary"`
}

// GetBriefing assembles the briefing for a user. Signals and recommendations
// are fetched concurrently.
func (e *RecommendationEngine) GetBriefing(ctx context.Context, customerID, userID string, limit int) (*Briefing, error) {
	if limit <= 0 {
		limit = briefingRecommendationLimit
	}

	var (
		signals []model.Signal
		page    *model.Page[model.Recommendation]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		signals, err = e.store.ListActiveSignals(gctx, customerID, briefingSignalLimit)
		return err
	})
	g.Go(func() error {
		var err error
		page, err = e.store.ListRecommendations(gctx, customerID, store.RecommendationFilter{
			UserID: userID,
			Status: model.RecommendationPending,
			Limit:  limit,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "intent: briefing")
	}

	summary := BriefingSummary{TotalSignals: len(signals)}
	for _, rec := range page.Data {
		switch rec.Priority {
		case model.SeverityHigh:
			summary.HighPriority++
		case model.SeverityMedium:
			summary.MediumPriority++
		case model.SeverityLow:
			summary.LowPriority++
		}
	}

	return &Briefing{
		Recommendations: page.Data,
		Signals:         signals,
		Summary:         summary,
	}, nil
}

// RefreshResult reports what a briefing refresh produced.
type RefreshResult struct {
	NewSignals         int `json:"newSignals"`
	NewRecommendations int `json:"newRecommendations"`
}

// RefreshBriefing runs signal detection, then regenerates recommendations
// from the resulting signal set.
func (e *RecommendationEngine) RefreshBriefing(ctx context.Context, customerID string) (*RefreshResult, error) {
	result := &RefreshResult{}

	if e.signals != nil {
		detected, err := e.signals.DetectAll(ctx, customerID)
		if err != nil {
			return nil, err
		}
		result.NewSignals = detected.Created()
	}

	recs, err := e.GenerateFromSignals(ctx, customerID)
	if err != nil {
		return nil, err
	}
	result.NewRecommendations = len(recs)
	return result, nil
}

// Contextual holds recommendations and signals relevant to one entity,
// used for detail-page sidebars.
type Contextual struct {
	Recommendations []model.Recommendation `json:"recommendations"`
	Signals         []model.Signal         `json:"signals"`
}

// GetContextual returns signals for the entity plus recommendations that
// either reference those signals or name the entity in their payloads,
// deduplicated by id.
func (e *RecommendationEngine) GetContextual(ctx context.Context, customerID, entityType, entityID string, limit int) (*Contextual, error) {
	if limit <= 0 {
		limit = contextualLimit
	}

	signals, err := e.store.ListEntitySignals(ctx, customerID, entityType, entityID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "intent: contextual signals")
	}

	var linked []model.Recommendation
	if len(signals) > 0 {
		ids := make([]string, len(signals))
		for i, sig := range signals {
			ids[i] = sig.ID
		}
		linked, err = e.store.ListRecommendationsBySignals(ctx, customerID, ids, limit)
		if err != nil {
			return nil, eris.Wrap(err, "intent: contextual by signals")
		}
	}

	referenced, err := e.store.ListRecommendationsByEntityRef(ctx, customerID, entityID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "intent: contextual by entity ref")
	}

	seen := make(map[string]bool, len(linked)+len(referenced))
	var recs []model.Recommendation
	for _, rec := range append(linked, referenced...) {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		recs = append(recs, rec)
		if len(recs) == limit {
			break
		}
	}

	return &Contextual{Recommendations: recs, Signals: signals}, nil
}

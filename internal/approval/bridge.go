// Package approval bridges the discovery pipeline to the approval queue:
// qualified leads become reviewable enrichment items grouped by fit score.
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops/internal/model"
)

const (
	// Every item defaults to a 7-day review window and one enrichment credit.
	defaultExpiryDays       = 7
	defaultEstimatedCredits = 1
)

// ItemCreator is the store surface the bridge needs.
type ItemCreator interface {
	CreateApprovalItem(ctx context.Context, input *model.CreateApprovalItemInput) (string, error)
}

// Bridge turns persisted leads into approval queue items.
type Bridge struct {
	store      ItemCreator
	expiryDays int
}

func NewBridge(store ItemCreator) *Bridge {
	return &Bridge{store: store, expiryDays: defaultExpiryDays}
}

// WithExpiryDays overrides the default item expiry.
func (b *Bridge) WithExpiryDays(days int) *Bridge {
	if days > 0 {
		b.expiryDays = days
	}
	return b
}

// BucketCounts reports how many leads landed in each fit score bucket.
type BucketCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Result reports the items created for one run.
type Result struct {
	BatchID  string       `json:"batch_id"`
	ItemIDs  []string     `json:"item_ids"`
	ByBucket BucketCounts `json:"by_bucket"`
}

// CreateItems emits one approval item per lead, all sharing a fresh batch id.
// Items are created bucket by bucket, high first, so the returned ids are in
// bucket order.
func (b *Bridge) CreateItems(ctx context.Context, customerID, runID string, leads []model.Lead) (*Result, error) {
	result := &Result{BatchID: uuid.New().String()}
	expires := time.Now().Add(time.Duration(b.expiryDays) * 24 * time.Hour).UTC()

	buckets := map[model.FitScoreBucket][]model.Lead{}
	for _, lead := range leads {
		bucket := model.BucketForScore(lead.FitScore)
		buckets[bucket] = append(buckets[bucket], lead)
	}
	result.ByBucket = BucketCounts{
		High:   len(buckets[model.BucketHigh]),
		Medium: len(buckets[model.BucketMedium]),
		Low:    len(buckets[model.BucketLow]),
	}

	for _, bucket := range []model.FitScoreBucket{model.BucketHigh, model.BucketMedium, model.BucketLow} {
		for _, lead := range buckets[bucket] {
			itemID, err := b.store.CreateApprovalItem(ctx, &model.CreateApprovalItemInput{
				CustomerID:       customerID,
				AgentRunID:       runID,
				EntityType:       "lead",
				EntityID:         lead.ID,
				Title:            fmt.Sprintf("Enrich: %s", lead.CompanyName),
				Description:      itemDescription(lead),
				Metadata:         itemMetadata(lead),
				EstimatedCredits: defaultEstimatedCredits,
				BatchID:          result.BatchID,
				FitScoreBucket:   bucket,
				ExpiresAt:        &expires,
			})
			if err != nil {
				return nil, eris.Wrapf(err, "approval: create item for lead %s", lead.ID)
			}
			result.ItemIDs = append(result.ItemIDs, itemID)
		}
	}

	zap.L().Info("approval items created",
		zap.String("run_id", runID),
		zap.String("batch_id", result.BatchID),
		zap.Int("count", len(result.ItemIDs)))
	return result, nil
}

func itemDescription(lead model.Lead) string {
	industry := lead.Industry
	if industry == "" {
		industry = "Unknown industry"
	}
	location := lead.City
	if location == "" {
		location = "Unknown location"
	}
	return industry + " • " + location
}

func itemMetadata(lead model.Lead) map[string]any {
	return map[string]any{
		"domain":   lead.Domain,
		"fitScore": lead.FitScore,
		"source":   lead.SourceURL,
	}
}

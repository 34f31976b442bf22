// Package store provides persistence for leads, approval queue items,
// signals, and recommendations, with SQLite and Postgres backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/salesops/internal/events"
	"github.com/sells-group/salesops/internal/model"
)

// RecommendationFilter specifies criteria for listing recommendations.
type RecommendationFilter struct {
	Page           int                        `json:"page,omitempty"`
	Limit          int                        `json:"limit,omitempty"`
	UserID         string                     `json:"user_id,omitempty"`
	Status         model.RecommendationStatus `json:"status,omitempty"`
	Priority       []model.Severity           `json:"priority,omitempty"`
	ActionType     []model.ActionType         `json:"action_type,omitempty"`
	IncludeExpired bool                       `json:"include_expired,omitempty"`
}

// Store defines the persistence interface shared by the agent pipeline and
// the intent engine.
type Store interface {
	// Leads. CountRecentLeadsBySource groups leads created at or after
	// since by (source, generation job), largest group first.
	BulkCreateLeads(ctx context.Context, customerID string, inputs []model.CreateLeadInput) (*model.BulkCreateResult, error)
	CountRecentLeadsBySource(ctx context.Context, customerID string, since time.Time) ([]model.LeadGroup, error)

	// Approval queue
	CreateApprovalItem(ctx context.Context, input *model.CreateApprovalItemInput) (string, error)
	ApprovalQueueSummary(ctx context.Context, customerID string) (*model.ApprovalSummary, error)

	// Signals. InsertSignalIfAbsent is the atomic insert-if-absent operation
	// backing idempotent upserts: when an active signal already exists for
	// the (customer, entity type, entity id, signal type) key it returns the
	// existing row with created=false.
	InsertSignalIfAbsent(ctx context.Context, signal *model.Signal) (*model.Signal, bool, error)
	ResolveSignalByEntity(ctx context.Context, customerID, entityType, entityID string, signalType model.SignalType, status model.SignalStatus) (*model.Signal, error)
	ListActiveSignals(ctx context.Context, customerID string, limit int) ([]model.Signal, error)
	ListEntitySignals(ctx context.Context, customerID, entityType, entityID string, limit int) ([]model.Signal, error)

	// Recommendations
	InsertRecommendation(ctx context.Context, rec *model.Recommendation) error
	GetRecommendation(ctx context.Context, customerID, id string) (*model.Recommendation, error)
	HasPendingRecommendationForSignal(ctx context.Context, customerID, signalID string) (bool, error)
	ListRecommendations(ctx context.Context, customerID string, filter RecommendationFilter) (*model.Page[model.Recommendation], error)
	UpdateRecommendationStatus(ctx context.Context, customerID, id string, status model.RecommendationStatus, snoozedUntil *time.Time) (*model.Recommendation, error)
	InsertRecommendationFeedback(ctx context.Context, fb *model.RecommendationFeedback) error
	ListRecommendationsBySignals(ctx context.Context, customerID string, signalIDs []string, limit int) ([]model.Recommendation, error)
	ListRecommendationsByEntityRef(ctx context.Context, customerID, entityID string, limit int) ([]model.Recommendation, error)

	// Dead letter queue for failed event handling
	RecordDeadEvent(ctx context.Context, entry *events.DeadEvent) error
	ListDeadEvents(ctx context.Context, limit int) ([]events.DeadEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a requested row does not exist for the
// tenant. Defined here so both backends share one sentinel.
var ErrNotFound = errors.New("store: not found")

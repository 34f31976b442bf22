package model

import "time"

// ApprovalStatus is the review state of an approval queue item.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalItem is a queued, reviewable unit representing one discovered lead
// pending a credit-consuming enrichment decision.
type ApprovalItem struct {
	ID               string         `json:"id" db:"id"`
	CustomerID       string         `json:"customer_id" db:"customer_id"`
	AgentRunID       string         `json:"agent_run_id,omitempty" db:"agent_run_id"`
	EntityType       string         `json:"entity_type" db:"entity_type"`
	EntityID         string         `json:"entity_id" db:"entity_id"`
	Title            string         `json:"title" db:"title"`
	Description      string         `json:"description,omitempty" db:"description"`
	Metadata         map[string]any `json:"metadata,omitempty" db:"metadata"`
	EstimatedCredits int            `json:"estimated_credits" db:"estimated_credits"`
	BatchID          string         `json:"batch_id,omitempty" db:"batch_id"`
	FitScoreBucket   FitScoreBucket `json:"fit_score_bucket,omitempty" db:"fit_score_bucket"`
	Status           ApprovalStatus `json:"status" db:"status"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// CreateApprovalItemInput carries the fields for a new approval queue item.
type CreateApprovalItemInput struct {
	CustomerID       string         `json:"customer_id"`
	AgentRunID       string         `json:"agent_run_id,omitempty"`
	EntityType       string         `json:"entity_type"`
	EntityID         string         `json:"entity_id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	EstimatedCredits int            `json:"estimated_credits,omitempty"`
	BatchID          string         `json:"batch_id,omitempty"`
	FitScoreBucket   FitScoreBucket `json:"fit_score_bucket,omitempty"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
}

// ApprovalSummary aggregates pending approval items for a tenant.
type ApprovalSummary struct {
	Total            int                    `json:"total"`
	Pending          int                    `json:"pending"`
	ByBucket         map[FitScoreBucket]int `json:"by_bucket"`
	EstimatedCredits int                    `json:"estimated_credits"`
}

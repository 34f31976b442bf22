package model

import "time"

// SignalType classifies a detected condition on a CRM entity.
type SignalType string

const (
	SignalDealStalled             SignalType = "deal_stalled"
	SignalLeadsReady              SignalType = "leads_ready"
	SignalHighIntent              SignalType = "high_intent"
	SignalHighEngagement          SignalType = "high_engagement"
	SignalFollowupNeeded          SignalType = "followup_needed"
	SignalReplyRateDrop           SignalType = "reply_rate_drop"
	SignalSequenceUnderperforming SignalType = "sequence_underperforming"
)

// SignalStatus is the lifecycle state of a signal. Signals are never hard
// deleted; they transition from active to resolved or dismissed.
type SignalStatus string

const (
	SignalActive    SignalStatus = "active"
	SignalResolved  SignalStatus = "resolved"
	SignalDismissed SignalStatus = "dismissed"
)

// Signal is a detected condition on a CRM entity. At most one active signal
// exists per (customer, entity type, entity id, signal type) key.
type Signal struct {
	ID          string         `json:"id" db:"id"`
	CustomerID  string         `json:"customer_id" db:"customer_id"`
	EntityType  string         `json:"entity_type" db:"entity_type"`
	EntityID    string         `json:"entity_id" db:"entity_id"`
	Type        SignalType     `json:"signal_type" db:"signal_type"`
	Severity    Severity       `json:"severity" db:"severity"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description,omitempty" db:"description"`
	Data        map[string]any `json:"data,omitempty" db:"data"`
	Status      SignalStatus   `json:"status" db:"status"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

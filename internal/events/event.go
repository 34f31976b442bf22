// Package events defines the domain event envelope and the in-process
// dispatcher that fans events out to registered handlers.
package events

import (
	"context"
	"time"
)

// Event types, organized by aggregate. Ingestion accepts arbitrary types;
// these constants name the ones a signal rule consumes.
const (
	OpportunityCreated      = "opportunity.created"
	OpportunityUpdated      = "opportunity.updated"
	OpportunityStageChanged = "opportunity.stage_changed"
	OpportunityWon          = "opportunity.won"
	OpportunityLost         = "opportunity.lost"

	ActivityLogged = "activity.logged"

	LeadCreated   = "lead.created"
	LeadConverted = "lead.converted"

	MeetingCompleted = "meeting.completed"
	MeetingNoShow    = "meeting.no_show"

	EmailReplied = "email.replied"
	EmailBounced = "email.bounced"

	EngagementScoreUpdated = "engagement.score_updated"
)

// Metadata carries tenant and actor context for an event.
type Metadata struct {
	CustomerID string `json:"customerId"`
	UserID     string `json:"userId,omitempty"`
}

// DomainEvent is the standardized envelope for all domain events. The
// transport that delivers it is out of scope; only the shape matters here.
type DomainEvent struct {
	EventID       string         `json:"eventId"`
	EventType     string         `json:"eventType"`
	AggregateType string         `json:"aggregateType"`
	AggregateID   string         `json:"aggregateId"`
	Payload       map[string]any `json:"payload"`
	Metadata      Metadata       `json:"metadata"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

// String returns the payload value for key as a string, or "" when absent
// or not a string.
func (e *DomainEvent) String(key string) string {
	v, ok := e.Payload[key].(string)
	if !ok {
		return ""
	}
	return v
}

// Number returns the payload value for key as a float64. JSON decoding
// yields float64 for all numbers, so this covers both ints and floats.
func (e *DomainEvent) Number(key string) (float64, bool) {
	v, ok := e.Payload[key].(float64)
	return v, ok
}

// Handler processes one domain event. Handlers are fire-and-forget from the
// transport's perspective: failures are logged by the dispatcher, never
// propagated to the publisher.
type Handler func(ctx context.Context, event *DomainEvent) error

// DeadEvent is a domain event whose handlers failed, captured for later
// inspection or replay.
type DeadEvent struct {
	ID        string      `json:"id"`
	Event     DomainEvent `json:"event"`
	Error     string      `json:"error"`
	ErrorType string      `json:"error_type"`
	FailedAt  time.Time   `json:"failed_at"`
}

// DeadLetterSink records events that could not be handled.
type DeadLetterSink interface {
	RecordDeadEvent(ctx context.Context, entry *DeadEvent) error
}

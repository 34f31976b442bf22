package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops/internal/resilience"
)

type captureSink struct {
	entries []*DeadEvent
	err     error
}

func (s *captureSink) RecordDeadEvent(_ context.Context, entry *DeadEvent) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func testEvent(eventType string) *DomainEvent {
	return &DomainEvent{
		EventID:    "evt-1",
		EventType:  eventType,
		Payload:    map[string]any{"opportunityId": "opp-1"},
		Metadata:   Metadata{CustomerID: "cust-1"},
		OccurredAt: time.Now().UTC(),
	}
}

func TestDispatchRunsAllHandlersForType(t *testing.T) {
	d := NewDispatcher(nil)

	var calls []string
	d.Register(OpportunityWon, func(context.Context, *DomainEvent) error {
		calls = append(calls, "first")
		return nil
	})
	d.Register(OpportunityWon, func(context.Context, *DomainEvent) error {
		calls = append(calls, "second")
		return nil
	})
	d.Register(OpportunityLost, func(context.Context, *DomainEvent) error {
		calls = append(calls, "other")
		return nil
	})

	d.Dispatch(context.Background(), testEvent(OpportunityWon))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatchContinuesAfterHandlerFailure(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink)

	var secondRan bool
	d.Register(LeadCreated, func(context.Context, *DomainEvent) error {
		return errors.New("first handler failed")
	})
	d.Register(LeadCreated, func(context.Context, *DomainEvent) error {
		secondRan = true
		return nil
	})

	d.Dispatch(context.Background(), testEvent(LeadCreated))

	assert.True(t, secondRan)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "first handler failed", sink.entries[0].Error)
	assert.Equal(t, "permanent", sink.entries[0].ErrorType)
	assert.Equal(t, "evt-1", sink.entries[0].Event.EventID)
	assert.NotEmpty(t, sink.entries[0].ID)
}

func TestDispatchClassifiesTransientFailures(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink)

	d.Register(EmailBounced, func(context.Context, *DomainEvent) error {
		return resilience.NewTransientError(errors.New("db timeout"), 0)
	})

	d.Dispatch(context.Background(), testEvent(EmailBounced))

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "transient", sink.entries[0].ErrorType)
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink).WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})

	var attempts int
	d.Register(MeetingCompleted, func(context.Context, *DomainEvent) error {
		attempts++
		if attempts < 3 {
			return resilience.NewTransientError(errors.New("db timeout"), 0)
		}
		return nil
	})

	d.Dispatch(context.Background(), testEvent(MeetingCompleted))

	assert.Equal(t, 3, attempts)
	assert.Empty(t, sink.entries)
}

func TestDispatchDoesNotRetryPermanentFailures(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink).WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})

	var attempts int
	d.Register(MeetingNoShow, func(context.Context, *DomainEvent) error {
		attempts++
		return errors.New("bad payload")
	})

	d.Dispatch(context.Background(), testEvent(MeetingNoShow))

	assert.Equal(t, 1, attempts)
	require.Len(t, sink.entries, 1)
}

func TestDispatchWithoutHandlersOrSink(t *testing.T) {
	d := NewDispatcher(nil)
	// Neither should panic.
	d.Dispatch(context.Background(), testEvent("account.created"))

	d.Register(LeadConverted, func(context.Context, *DomainEvent) error {
		return errors.New("no sink to catch this")
	})
	d.Dispatch(context.Background(), testEvent(LeadConverted))
}

func TestDomainEventPayloadHelpers(t *testing.T) {
	e := &DomainEvent{Payload: map[string]any{
		"stage":  "negotiation",
		"amount": 125000.0,
		"flag":   true,
	}}

	assert.Equal(t, "negotiation", e.String("stage"))
	assert.Empty(t, e.String("missing"))
	assert.Empty(t, e.String("flag"))

	amount, ok := e.Number("amount")
	require.True(t, ok)
	assert.Equal(t, 125000.0, amount)

	_, ok = e.Number("stage")
	assert.False(t, ok)
}

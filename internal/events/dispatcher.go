package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/salesops/internal/resilience"
)

// Dispatcher routes domain events to the handlers registered for their
// event type. A handler failure is logged and dead-lettered; it never
// crashes the dispatcher or blocks other handlers.
type Dispatcher struct {
	handlers map[string][]Handler
	dlq      DeadLetterSink // optional
	retry    *resilience.RetryConfig
}

// NewDispatcher creates an empty dispatcher. Pass a nil sink to disable
// dead-lettering.
func NewDispatcher(dlq DeadLetterSink) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		dlq:      dlq,
	}
}

// WithRetry retries transient handler failures before dead-lettering.
func (d *Dispatcher) WithRetry(cfg resilience.RetryConfig) *Dispatcher {
	d.retry = &cfg
	return d
}

// Register adds a handler for an event type. Registration is not safe for
// concurrent use with Dispatch; wire all handlers at startup.
func (d *Dispatcher) Register(eventType string, handler Handler) {
	d.handlers[eventType] = append(d.handlers[eventType], handler)
	zap.L().Debug("events: registered handler", zap.String("event_type", eventType))
}

// Dispatch runs every handler registered for the event's type. All handlers
// run even when earlier ones fail; failures are logged and the event is
// dead-lettered once. Dispatch itself never returns an error to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, event *DomainEvent) {
	log := zap.L().With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
	)

	hs := d.handlers[event.EventType]
	if len(hs) == 0 {
		log.Debug("events: no handlers for event type")
		return
	}

	var failed int
	var lastErr error
	for i, h := range hs {
		if err := d.invoke(ctx, h, event); err != nil {
			failed++
			lastErr = err
			log.Error("events: handler failed",
				zap.Int("handler_index", i),
				zap.Error(err),
			)
		}
	}

	if failed > 0 && d.dlq != nil {
		entry := &DeadEvent{
			ID:        uuid.New().String(),
			Event:     *event,
			Error:     lastErr.Error(),
			ErrorType: resilience.ClassifyError(lastErr),
			FailedAt:  time.Now().UTC(),
		}
		if err := d.dlq.RecordDeadEvent(ctx, entry); err != nil {
			log.Error("events: dead-letter write failed", zap.Error(err))
		}
	}

	log.Debug("events: dispatched", zap.Int("handlers", len(hs)), zap.Int("failed", failed))
}

// invoke runs one handler, retrying transient failures when a retry config
// is set.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, event *DomainEvent) error {
	if d.retry == nil {
		return h(ctx, event)
	}
	return resilience.Do(ctx, *d.retry, func(ctx context.Context) error {
		return h(ctx, event)
	})
}

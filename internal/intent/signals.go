// Package intent turns domain events into idempotent signals and maps
// active signals into ranked, actionable recommendations.
package intent

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops/internal/model"
	"github.com/sells-group/salesops/internal/store"
)

// SignalEngine manages the signal lifecycle.
type SignalEngine struct {
	store store.Store
	opps  OpportunitySource
}

func NewSignalEngine(s store.Store) *SignalEngine {
	return &SignalEngine{store: s}
}

// UpsertSignal inserts a signal unless an active one already exists for the
// same (customer, entityType, entityId, signalType) key. Returns the signal
// and whether it was newly created.
func (e *SignalEngine) UpsertSignal(ctx context.Context, sig *model.Signal) (*model.Signal, bool, error) {
	if sig.CustomerID == "" {
		return nil, false, eris.New("intent: signal missing customer id")
	}
	if sig.Type == "" {
		return nil, false, eris.New("intent: signal missing type")
	}

	out, created, err := e.store.InsertSignalIfAbsent(ctx, sig)
	if err != nil {
		return nil, false, eris.Wrap(err, "intent: upsert signal")
	}
	if created {
		zap.L().Info("signal created",
			zap.String("signal_id", out.ID),
			zap.String("customer_id", out.CustomerID),
			zap.String("signal_type", string(out.Type)),
			zap.String("severity", string(out.Severity)))
	}
	return out, created, nil
}

// ResolveSignalByEntity transitions the matching active signal to the given
// terminal status and stamps resolvedAt. Returns nil without error when no
// active signal matches.
func (e *SignalEngine) ResolveSignalByEntity(ctx context.Context, customerID, entityType, entityID string, signalType model.SignalType, status model.SignalStatus) (*model.Signal, error) {
	sig, err := e.store.ResolveSignalByEntity(ctx, customerID, entityType, entityID, signalType, status)
	if err != nil {
		return nil, eris.Wrap(err, "intent: resolve signal")
	}
	if sig != nil {
		zap.L().Info("signal resolved",
			zap.String("signal_id", sig.ID),
			zap.String("signal_type", string(sig.Type)),
			zap.String("status", string(status)))
	}
	return sig, nil
}

// ListActiveSignals returns active signals for a tenant ordered by severity
// then recency.
func (e *SignalEngine) ListActiveSignals(ctx context.Context, customerID string, limit int) ([]model.Signal, error) {
	signals, err := e.store.ListActiveSignals(ctx, customerID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "intent: list active signals")
	}
	return signals, nil
}

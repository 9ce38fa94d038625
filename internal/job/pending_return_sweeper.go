package job

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

const DefaultPendingReturnTTL = time.Hour

type pendingReturnStore interface {
	ListPendingReturns(ctx context.Context, olderThan time.Time) ([]models.PendingReturn, error)
	TakePendingReturn(ctx context.Context, orderID string) (*models.PendingReturn, error)
	AddNote(ctx context.Context, orderID, body string) error
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
}

// PendingReturnSweeper expires awaiting-return markers of customers who never
// came back from the acquirer. Order status is left to the callback; orders a
// callback already settled lose the marker without a note.
type PendingReturnSweeper struct {
	store pendingReturnStore
	ttl   time.Duration
	now   func() time.Time
}

func NewPendingReturnSweeper(store pendingReturnStore, ttl time.Duration) *PendingReturnSweeper {
	if ttl <= 0 {
		ttl = DefaultPendingReturnTTL
	}
	return &PendingReturnSweeper{store: store, ttl: ttl, now: time.Now}
}

func (j *PendingReturnSweeper) Name() string {
	return "pending_return.sweep"
}

func (j *PendingReturnSweeper) Run(ctx context.Context) error {
	stale, err := j.store.ListPendingReturns(ctx, j.now().Add(-j.ttl))
	if err != nil {
		return fmt.Errorf("pending return sweep: %w", err)
	}

	expired := 0
	for _, pr := range stale {
		taken, err := j.store.TakePendingReturn(ctx, pr.OrderID)
		if err != nil {
			return fmt.Errorf("pending return sweep: order %s: %w", pr.OrderID, err)
		}
		// the customer returned in the meantime
		if taken == nil {
			continue
		}
		order, err := j.store.GetByID(ctx, taken.OrderID)
		if err != nil {
			telemetry.Logger.Warn("Failed to load order for expired return", zap.String("order_id", taken.OrderID), zap.Error(err))
			continue
		}
		if order.Status.IsTerminal() {
			continue
		}
		note := fmt.Sprintf("Customer did not return from the acquirer within %s (transaction %s).", j.ttl, taken.TransactionID)
		if err := j.store.AddNote(ctx, taken.OrderID, note); err != nil {
			telemetry.Logger.Warn("Failed to note expired return", zap.String("order_id", taken.OrderID), zap.Error(err))
		}
		expired++
	}

	if expired > 0 {
		telemetry.Logger.Info("Expired pending returns", zap.Int("expired", expired))
	}
	return nil
}

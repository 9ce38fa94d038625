package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

// OrderRepository defines the contract for the persisted order slice.
type OrderRepository interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
	FindByTransactionID(ctx context.Context, transactionID string) ([]*models.Order, error)
	// TransitionPayment writes update only if the stored status and capture
	// flag still equal from; it returns the number of rows changed.
	TransitionPayment(ctx context.Context, orderID string, from models.PaymentSnapshot, update models.PaymentUpdate) (int64, error)
	// MarkStockReduced flips the stock marker from !reduced to reduced.
	MarkStockReduced(ctx context.Context, orderID string, reduced bool) (int64, error)
	AddNote(ctx context.Context, orderID, body string) error
	SetPendingReturn(ctx context.Context, orderID, transactionID string) error
	TakePendingReturn(ctx context.Context, orderID string) (*models.PendingReturn, error)
	ListPendingReturns(ctx context.Context, olderThan time.Time) ([]models.PendingReturn, error)
}

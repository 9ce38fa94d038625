package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

// Gateway sends a single acquirer operation.
type Gateway interface {
	Send(ctx context.Context, op *gateway.Operation) (*gateway.Response, error)
}

// Locker serializes work on a single order across instances.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// EventPublisher announces committed order transitions.
type EventPublisher interface {
	PublishTransition(ctx context.Context, event models.PaymentEvent) error
}

// Inventory adjusts storefront stock for an order's tracked line items.
type Inventory interface {
	Reduce(ctx context.Context, orderID string, items []models.LineItem) error
	Restore(ctx context.Context, orderID string, items []models.LineItem) error
}

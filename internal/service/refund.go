package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

// Refund returns amt of a captured payment. A refund that the acquirer
// rejects leaves the order status unchanged and records the reason.
func (a *Admin) Refund(ctx context.Context, orderID string, amt decimal.Decimal, reason string) (*Decision, error) {
	return a.run(ctx, orderID, a.refundAction(amt, reason))
}

func (a *Admin) refundAction(amt decimal.Decimal, reason string) action {
	return action{
		name: "refund",
		kind: gateway.KindRefund,
		guard: func(o *models.Order) error {
			if o.ChargeCaptured != models.CapturedYes || o.Status != models.StatusCompleted {
				return precondition("refund", o.ID, "payment is not captured (status %s, captured %q)", o.Status, o.ChargeCaptured)
			}
			if !amt.IsPositive() {
				return precondition("refund", o.ID, "refund amount must be positive")
			}
			if amt.GreaterThan(o.Total) {
				return precondition("refund", o.ID, "refund amount %s exceeds order total %s", amt.String(), o.Total.String())
			}
			return nil
		},
		money: func(o *models.Order) gateway.Money {
			return gateway.Money{Amount: a.codec.ToMinorUnits(amt, o.Currency), Currency: o.Currency}
		},
		event: Event{Amount: amt, Reason: reason},
	}
}

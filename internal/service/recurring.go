package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/amount"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

// RecurringCharger bills subscription renewal orders against the transaction
// that started the recurring chain.
type RecurringCharger struct {
	repo    interfaces.OrderRepository
	gateway interfaces.Gateway
	machine *StateMachine
	locker  interfaces.Locker
	codec   amount.Codec
	lockTTL time.Duration
}

func NewRecurringCharger(repo interfaces.OrderRepository, gw interfaces.Gateway, machine *StateMachine, locker interfaces.Locker, codec amount.Codec) *RecurringCharger {
	return &RecurringCharger{
		repo:    repo,
		gateway: gw,
		machine: machine,
		locker:  locker,
		codec:   codec,
		lockTTL: defaultLockTTL,
	}
}

// ChargeRenewal charges the renewal order. A zero amount charges the renewal
// order's total.
func (r *RecurringCharger) ChargeRenewal(ctx context.Context, renewalOrderID, parentTransactionID string, amt decimal.Decimal) (*Decision, error) {
	if parentTransactionID == "" {
		return nil, precondition("renewal", renewalOrderID, "parent transaction id is required")
	}
	parents, err := r.repo.FindByTransactionID(ctx, parentTransactionID)
	if err != nil {
		return nil, err
	}
	if len(parents) != 1 {
		return nil, &ReconciliationAmbiguity{TransactionID: parentTransactionID, Matches: len(parents)}
	}
	parent := parents[0]
	if parent.ChargeCaptured == models.CapturedNo {
		return nil, precondition("renewal", renewalOrderID, "parent order %s was never captured", parent.ID)
	}
	kind, err := gateway.RecurrentKind(parent.PaymentMethod)
	if err != nil {
		return nil, precondition("renewal", renewalOrderID, "%v", err)
	}

	release, err := r.locker.Acquire(ctx, renewalOrderID, r.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := r.repo.GetByID(ctx, renewalOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending && order.Status != models.StatusFailed {
		return nil, precondition("renewal", order.ID, "order is %s", order.Status)
	}
	if amt.IsZero() {
		amt = order.Total
	}
	if !amt.IsPositive() {
		return nil, precondition("renewal", order.ID, "amount must be positive")
	}
	order.PaymentMethod = parent.PaymentMethod

	op, err := gateway.NewOperation(kind)
	if err != nil {
		return nil, err
	}
	op.GatewayTransactionID = parentTransactionID
	op.Money = gateway.Money{Amount: r.codec.ToMinorUnits(amt, order.Currency), Currency: order.Currency}

	ev := Event{Source: SourceRenewal, Kind: kind}
	resp, sendErr := r.gateway.Send(ctx, op)
	if sendErr != nil {
		telemetry.Logger.Error("Renewal charge failed",
			zap.String("order_id", order.ID),
			zap.String("parent_transaction_id", parentTransactionID),
			zap.Error(sendErr),
		)
		if gateway.IsOutcomeUnknown(sendErr) {
			r.machine.note(ctx, order.ID, fmt.Sprintf("Renewal charge outcome unknown: %v", sendErr))
			return nil, sendErr
		}
		ev.Failure = gateway.Message(sendErr)
		if _, err := r.machine.Apply(ctx, order, ev); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("renewal order %s: %w", order.ID, sendErr)
	}

	ev.StatusCode = resp.StatusCode
	ev.TransactionID = resp.TransactionID
	ev.Raw = resp.Raw
	return r.machine.Apply(ctx, order, ev)
}

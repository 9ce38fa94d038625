package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/amount"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

// Admin runs operator-triggered follow-up operations on an order.
type Admin struct {
	repo    interfaces.OrderRepository
	gateway interfaces.Gateway
	machine *StateMachine
	locker  interfaces.Locker
	codec   amount.Codec
	lockTTL time.Duration
}

func NewAdmin(repo interfaces.OrderRepository, gw interfaces.Gateway, machine *StateMachine, locker interfaces.Locker, codec amount.Codec) *Admin {
	return &Admin{
		repo:    repo,
		gateway: gw,
		machine: machine,
		locker:  locker,
		codec:   codec,
		lockTTL: defaultLockTTL,
	}
}

// action describes one guarded follow-up command.
type action struct {
	name  string
	kind  gateway.Kind
	guard func(o *models.Order) error
	money func(o *models.Order) gateway.Money
	event Event
}

// Charge captures a held dual-message authorization for the order total.
func (a *Admin) Charge(ctx context.Context, orderID string) (*Decision, error) {
	return a.run(ctx, orderID, action{
		name:  "charge",
		kind:  gateway.KindDmsCharge,
		guard: heldGuard("charge"),
		money: a.fullAmount,
	})
}

// CancelHold releases a held dual-message authorization.
func (a *Admin) CancelHold(ctx context.Context, orderID string) (*Decision, error) {
	return a.run(ctx, orderID, action{
		name:  "cancel",
		kind:  gateway.KindCancel,
		guard: heldGuard("cancel"),
	})
}

// Reverse voids a captured single-message payment.
func (a *Admin) Reverse(ctx context.Context, orderID string) (*Decision, error) {
	return a.run(ctx, orderID, action{
		name: "reverse",
		kind: gateway.KindReversal,
		guard: func(o *models.Order) error {
			if !o.PaymentMethod.IsReversible() {
				return precondition("reverse", o.ID, "payment method %q cannot be reversed", o.PaymentMethod)
			}
			if o.ChargeCaptured != models.CapturedYes || o.Status != models.StatusCompleted {
				return precondition("reverse", o.ID, "payment is not captured (status %s, captured %q)", o.Status, o.ChargeCaptured)
			}
			return nil
		},
	})
}

// History asks the acquirer for the transaction history of the order's
// current transaction. It never changes the order.
func (a *Admin) History(ctx context.Context, orderID string) (*gateway.Response, error) {
	order, err := a.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.TransactionID == "" {
		return nil, precondition("history", order.ID, "order has no acquirer transaction")
	}
	op, err := gateway.NewOperation(gateway.KindHistory)
	if err != nil {
		return nil, err
	}
	op.TransactionIDs = []string{order.TransactionID}
	return a.gateway.Send(ctx, op)
}

func heldGuard(name string) func(o *models.Order) error {
	return func(o *models.Order) error {
		if !o.PaymentMethod.IsDualMessage() {
			return precondition(name, o.ID, "payment method %q does not hold funds", o.PaymentMethod)
		}
		if o.ChargeCaptured != models.CapturedNo {
			return precondition(name, o.ID, "no uncaptured hold (captured %q)", o.ChargeCaptured)
		}
		if o.Status != models.StatusOnHold && o.Status != models.StatusFailed {
			return precondition(name, o.ID, "order is %s", o.Status)
		}
		return nil
	}
}

func (a *Admin) fullAmount(o *models.Order) gateway.Money {
	return gateway.Money{Amount: a.codec.ToMinorUnits(o.Total, o.Currency), Currency: o.Currency}
}

// run checks the guard, sends the command and applies the outcome. A failed
// call marks the order failed with the acquirer's message as a note, except
// when the outcome is unknown.
func (a *Admin) run(ctx context.Context, orderID string, act action) (*Decision, error) {
	release, err := a.locker.Acquire(ctx, orderID, a.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := a.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.TransactionID == "" {
		return nil, precondition(act.name, order.ID, "order has no acquirer transaction")
	}
	if err := act.guard(order); err != nil {
		return nil, err
	}

	op, err := gateway.NewOperation(act.kind)
	if err != nil {
		return nil, err
	}
	op.GatewayTransactionID = order.TransactionID
	if act.money != nil {
		op.Money = act.money(order)
	}

	ev := act.event
	ev.Source = SourceAdmin
	ev.Kind = act.kind

	resp, sendErr := a.gateway.Send(ctx, op)
	if sendErr != nil {
		telemetry.Logger.Error("Admin action failed",
			zap.String("order_id", order.ID),
			zap.String("action", act.name),
			zap.Error(sendErr),
		)
		if gateway.IsOutcomeUnknown(sendErr) {
			a.machine.note(ctx, order.ID, fmt.Sprintf("Outcome of %s unknown, check the acquirer before retrying: %v", act.name, sendErr))
			return nil, sendErr
		}
		ev.Failure = gateway.Message(sendErr)
		if _, err := a.machine.Apply(ctx, order, ev); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s order %s: %w", act.name, order.ID, sendErr)
	}

	ev.StatusCode = resp.StatusCode
	ev.TransactionID = resp.TransactionID
	ev.Raw = resp.Raw
	return a.machine.Apply(ctx, order, ev)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/statuscode"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

// Source names the path an acquirer result arrived on.
type Source string

const (
	SourceCheckout Source = "checkout"
	SourceCallback Source = "callback"
	SourceAdmin    Source = "admin"
	SourceRenewal  Source = "renewal"
)

// Event is one acquirer result to be applied to an order. Kind is zero for
// callbacks, which carry only a status code. Failure is set instead of a
// status code when the call itself failed.
type Event struct {
	Source        Source
	Kind          gateway.Kind
	StatusCode    int
	TransactionID string
	RedirectURL   string
	Raw           json.RawMessage
	Failure       string

	// refunds only
	Amount decimal.Decimal
	Reason string
}

type Effect int

const (
	EffectReduceStock Effect = iota + 1
	EffectRestoreStock
)

// Decision is the outcome of Decide: the target payment slice plus the side
// effects to run once it is committed.
type Decision struct {
	From             models.OrderStatus
	To               models.OrderStatus
	ChargeCaptured   models.ChargeCaptured
	TransactionID    string
	ClearTransaction bool
	PendingReturn    bool
	Effects          []Effect
	Note             string
	NoOp             bool

	changed bool
}

// Changed reports whether the decision rewrites the persisted payment slice.
func (d Decision) Changed() bool { return d.changed }

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeRedirect
	outcomeAwaiting
	outcomeHeld
	outcomeCharged
	outcomeCancelled
	outcomeReversed
	outcomeRefunded
	outcomeRefundPending
)

func classify(ev Event) outcome {
	if ev.Failure != "" {
		return outcomeFailed
	}
	code := ev.StatusCode

	// follow-up commands succeed on exactly one code
	switch ev.Kind {
	case gateway.KindDmsCharge:
		if code == statuscode.Success {
			return outcomeCharged
		}
		return outcomeFailed
	case gateway.KindCancel:
		if code == statuscode.DmsCancelOK {
			return outcomeCancelled
		}
		return outcomeFailed
	case gateway.KindReversal:
		if code == statuscode.Reversed {
			return outcomeReversed
		}
		return outcomeFailed
	case gateway.KindRefund:
		switch code {
		case statuscode.RefundSuccess:
			return outcomeRefunded
		case statuscode.RefundPending:
			return outcomeRefundPending
		}
		return outcomeFailed
	case gateway.KindRecurrentSms, gateway.KindRecurrentDms:
		switch code {
		case statuscode.Success:
			return outcomeCharged
		case statuscode.HoldOK:
			return outcomeHeld
		}
		return outcomeFailed
	}

	if ev.RedirectURL != "" {
		return outcomeRedirect
	}
	switch code {
	case statuscode.Success:
		return outcomeCharged
	case statuscode.HoldOK:
		return outcomeHeld
	case statuscode.DmsCancelOK:
		return outcomeCancelled
	case statuscode.Reversed:
		return outcomeReversed
	case statuscode.RefundSuccess:
		return outcomeRefunded
	case statuscode.RefundPending:
		return outcomeRefundPending
	}
	if statuscode.IsInFlight(code) {
		return outcomeAwaiting
	}
	return outcomeFailed
}

// replacesTransaction reports kinds whose response id becomes the order's
// transaction id.
func replacesTransaction(k gateway.Kind) bool {
	switch k {
	case gateway.KindRefund, gateway.KindCancel, gateway.KindReversal, gateway.KindHistory:
		return false
	}
	return true
}

// Decide computes the transition an acquirer result implies for the order.
// It does not touch storage.
func Decide(o *models.Order, ev Event) (Decision, error) {
	d := Decision{
		From:           o.Status,
		To:             o.Status,
		ChargeCaptured: o.ChargeCaptured,
		TransactionID:  o.TransactionID,
	}
	oc := classify(ev)

	// Callbacks for settled orders are replays unless they settle further.
	if ev.Source == SourceCallback && o.Status.IsTerminal() && o.Status != models.StatusFailed {
		if o.Status != models.StatusCompleted || (oc != outcomeReversed && oc != outcomeRefunded) {
			d.NoOp = true
			return d, nil
		}
	}

	newTxID := ev.TransactionID != "" && replacesTransaction(ev.Kind)
	amountText := "the requested amount"
	if ev.Amount.IsPositive() {
		amountText = fmt.Sprintf("%s %s", ev.Amount.StringFixed(2), o.Currency)
	}

	switch oc {
	case outcomeRedirect:
		d.To = models.StatusOnHold
		d.ChargeCaptured = models.CapturedNo
		d.PendingReturn = true
		if newTxID {
			d.TransactionID = ev.TransactionID
		}
		d.Note = fmt.Sprintf("Customer redirected to the acquirer to complete payment (transaction %s).", d.TransactionID)

	case outcomeAwaiting:
		d.To = models.StatusOnHold
		if newTxID {
			d.TransactionID = ev.TransactionID
		}
		d.Note = fmt.Sprintf("Awaiting acquirer confirmation: %s (transaction %s).", describe(ev.StatusCode), d.TransactionID)

	case outcomeHeld:
		d.To = models.StatusOnHold
		d.ChargeCaptured = models.CapturedNo
		if newTxID {
			d.TransactionID = ev.TransactionID
		}
		d.Note = fmt.Sprintf("Funds held, awaiting charge (transaction %s).", d.TransactionID)

	case outcomeCharged:
		d.To = models.StatusCompleted
		d.ChargeCaptured = models.CapturedYes
		if newTxID {
			d.TransactionID = ev.TransactionID
		}
		if !o.StockReduced {
			d.Effects = append(d.Effects, EffectReduceStock)
		}
		d.Note = fmt.Sprintf("Payment completed (transaction %s).", d.TransactionID)

	case outcomeCancelled:
		d.To = models.StatusCancelled
		d.ChargeCaptured = models.CapturedUnset
		d.TransactionID = ""
		d.ClearTransaction = true
		d.Note = "Held funds released, order cancelled."

	case outcomeReversed:
		d.To = models.StatusCancelled
		d.ChargeCaptured = models.CapturedUnset
		d.TransactionID = ""
		d.ClearTransaction = true
		if o.StockReduced {
			d.Effects = append(d.Effects, EffectRestoreStock)
		}
		d.Note = "Payment reversed, order cancelled."

	case outcomeRefunded:
		d.To = models.StatusRefunded
		d.Note = fmt.Sprintf("Refunded %s. Reason: %s", amountText, orDash(ev.Reason))

	case outcomeRefundPending:
		d.Note = fmt.Sprintf("Refund of %s is pending at the acquirer. Reason: %s", amountText, orDash(ev.Reason))

	case outcomeFailed:
		reason := ev.Failure
		if reason == "" {
			reason = describe(ev.StatusCode)
		}
		if ev.Kind == gateway.KindRefund || (ev.Kind == 0 && ev.StatusCode == statuscode.RefundFailed) {
			d.Note = fmt.Sprintf("Refund of %s failed: %s", amountText, reason)
			break
		}
		d.To = models.StatusFailed
		switch ev.Kind {
		case gateway.KindRecurrentSms, gateway.KindRecurrentDms:
			d.ChargeCaptured = models.CapturedNo
		}
		if newTxID && ev.Kind != gateway.KindDmsCharge {
			d.TransactionID = ev.TransactionID
		}
		d.Note = fmt.Sprintf("Payment failed: %s", reason)
	}

	d.changed = d.To != d.From || d.ChargeCaptured != o.ChargeCaptured || d.TransactionID != o.TransactionID
	if d.To != d.From {
		if err := models.ValidateTransition(d.From, d.To); err != nil {
			if ev.Source == SourceCallback {
				d.NoOp = true
				return d, nil
			}
			return d, err
		}
	}
	if !d.changed && (d.Note == "" || ev.Source == SourceCallback) && !d.PendingReturn {
		d.NoOp = true
	}
	return d, nil
}

func describe(code int) string {
	return fmt.Sprintf("%d %s: %s", code, statuscode.Name(code), statuscode.Describe(code))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// StateMachine persists decisions and runs their side effects.
type StateMachine struct {
	repo      interfaces.OrderRepository
	inventory interfaces.Inventory
	events    interfaces.EventPublisher
	policy    *bluemonday.Policy
	now       func() time.Time
}

func NewStateMachine(repo interfaces.OrderRepository, inventory interfaces.Inventory, events interfaces.EventPublisher) *StateMachine {
	return &StateMachine{
		repo:      repo,
		inventory: inventory,
		events:    events,
		policy:    bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

// Apply decides and commits ev against order. The commit is a compare-and-set
// on the order's status and capture flag; on success order is updated in place.
func (m *StateMachine) Apply(ctx context.Context, order *models.Order, ev Event) (*Decision, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "statemachine.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
		attribute.String("source", string(ev.Source)),
		attribute.Int("status_code", ev.StatusCode),
	)

	d, err := Decide(order, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if d.NoOp {
		telemetry.Logger.Info("Acquirer result already applied",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)),
			zap.Int("status_code", ev.StatusCode),
			zap.String("source", string(ev.Source)),
		)
		return &d, nil
	}

	if d.changed {
		update := models.PaymentUpdate{
			Status:          d.To,
			ChargeCaptured:  d.ChargeCaptured,
			TransactionID:   d.TransactionID,
			PaymentMethod:   order.PaymentMethod,
			PaymentResponse: ev.Raw,
		}
		rows, err := m.repo.TransitionPayment(ctx, order.ID, order.Snapshot(), update)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if rows == 0 {
			span.SetStatus(codes.Error, "concurrent transition")
			return nil, fmt.Errorf("%w: order %s left %s", ErrConcurrentTransition, order.ID, d.From)
		}

		order.Status = d.To
		order.ChargeCaptured = d.ChargeCaptured
		order.TransactionID = d.TransactionID
		if len(ev.Raw) > 0 {
			order.PaymentResponse = ev.Raw
		}

		telemetry.OrderTransitions.WithLabelValues(string(d.From), string(d.To), string(ev.Source)).Inc()
		telemetry.Logger.Info("Order payment transition",
			zap.String("order_id", order.ID),
			zap.String("from_status", string(d.From)),
			zap.String("to_status", string(d.To)),
			zap.String("charge_captured", string(d.ChargeCaptured)),
			zap.String("transaction_id", d.TransactionID),
			zap.Int("status_code", ev.StatusCode),
		)
	}

	if d.PendingReturn {
		if err := m.repo.SetPendingReturn(ctx, order.ID, d.TransactionID); err != nil {
			telemetry.Logger.Error("Failed to mark order awaiting return", zap.String("order_id", order.ID), zap.Error(err))
		} else {
			order.AwaitingReturn = true
		}
	}
	if d.changed {
		m.publish(ctx, order, d, ev)
	}

	for _, effect := range d.Effects {
		m.runEffect(ctx, order, effect)
	}

	if d.Note != "" {
		m.note(ctx, order.ID, d.Note)
	}
	return &d, nil
}

// runEffect gates stock changes on the persisted marker so each runs once.
func (m *StateMachine) runEffect(ctx context.Context, order *models.Order, effect Effect) {
	reduce := effect == EffectReduceStock
	rows, err := m.repo.MarkStockReduced(ctx, order.ID, reduce)
	if err != nil {
		telemetry.Logger.Error("Failed to mark stock", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if rows == 0 {
		return
	}
	order.StockReduced = reduce

	items := order.StockItems()
	if reduce {
		err = m.inventory.Reduce(ctx, order.ID, items)
	} else {
		err = m.inventory.Restore(ctx, order.ID, items)
	}
	if err == nil {
		return
	}

	telemetry.Logger.Error("Inventory adjustment failed",
		zap.String("order_id", order.ID),
		zap.Bool("reduce", reduce),
		zap.Error(err),
	)
	if _, rerr := m.repo.MarkStockReduced(ctx, order.ID, !reduce); rerr == nil {
		order.StockReduced = !reduce
	}
	m.note(ctx, order.ID, fmt.Sprintf("Stock adjustment failed: %v", err))
}

func (m *StateMachine) note(ctx context.Context, orderID, body string) {
	if err := m.repo.AddNote(ctx, orderID, m.plainText(body)); err != nil {
		telemetry.Logger.Error("Failed to add order note", zap.String("order_id", orderID), zap.Error(err))
	}
}

// plainText strips markup but stores the text itself unescaped. Entities are
// decoded first so encoded tags are stripped too.
func (m *StateMachine) plainText(s string) string {
	return html.UnescapeString(m.policy.Sanitize(html.UnescapeString(s)))
}

func (m *StateMachine) publish(ctx context.Context, order *models.Order, d Decision, ev Event) {
	if m.events == nil {
		return
	}
	event := models.PaymentEvent{
		OrderID:        order.ID,
		Status:         d.To,
		PreviousStatus: d.From,
		State:          models.PaymentStateOf(order),
		TransactionID:  d.TransactionID,
		PaymentMethod:  order.PaymentMethod,
		ChargeCaptured: d.ChargeCaptured,
		StatusCode:     ev.StatusCode,
		Source:         string(ev.Source),
		Timestamp:      m.now().UTC(),
	}
	if err := m.events.PublishTransition(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish transition event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

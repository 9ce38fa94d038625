package models

import "time"

// PaymentState is the conceptual payment sub-state derived from an order.
type PaymentState string

const (
	StateNew           PaymentState = "NEW"
	StateAuthPending   PaymentState = "AUTH_PENDING"
	StateHeld          PaymentState = "HELD"
	StateCharged       PaymentState = "CHARGED"
	StateFailed        PaymentState = "FAILED"
	StateCancelled     PaymentState = "CANCELLED"
	StateReversed      PaymentState = "REVERSED"
	StateRefundPending PaymentState = "REFUND_PENDING"
	StateRefunded      PaymentState = "REFUNDED"
)

// PaymentStateOf derives the payment sub-state from the persisted order slice.
// Cancelled orders of the single-message family were reversed, not cancelled.
func PaymentStateOf(o *Order) PaymentState {
	switch o.Status {
	case StatusCompleted:
		return StateCharged
	case StatusRefunded:
		return StateRefunded
	case StatusFailed:
		return StateFailed
	case StatusCancelled:
		if o.PaymentMethod.IsReversible() {
			return StateReversed
		}
		return StateCancelled
	}
	if o.TransactionID == "" {
		return StateNew
	}
	if o.PaymentMethod.IsDualMessage() && o.ChargeCaptured == CapturedNo && !o.AwaitingReturn {
		return StateHeld
	}
	return StateAuthPending
}

// PaymentEvent is published for every committed order transition.
type PaymentEvent struct {
	OrderID        string         `json:"order_id"`
	Status         OrderStatus    `json:"status"`
	PreviousStatus OrderStatus    `json:"previous_status"`
	State          PaymentState   `json:"state"`
	TransactionID  string         `json:"transaction_id,omitempty"`
	PaymentMethod  PaymentMethod  `json:"payment_method,omitempty"`
	ChargeCaptured ChargeCaptured `json:"charge_captured,omitempty"`
	StatusCode     int            `json:"status_code,omitempty"`
	Source         string         `json:"source"`
	Timestamp      time.Time      `json:"timestamp"`
}

// PaymentStateInfo is the payment slice exposed by the state endpoint.
type PaymentStateInfo struct {
	OrderID        string
	Status         OrderStatus
	State          PaymentState
	PaymentMethod  PaymentMethod
	ChargeCaptured ChargeCaptured
	TransactionID  string
	AwaitingReturn bool
	UpdatedAt      time.Time
}

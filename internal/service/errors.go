package service

import (
	"errors"
	"fmt"
)

// ErrConcurrentTransition is returned when the stored order no longer matches
// the pre-state a transition was decided on.
var ErrConcurrentTransition = errors.New("order changed concurrently")

// PreconditionError rejects an action before any acquirer call is made.
type PreconditionError struct {
	Action  string
	OrderID string
	Reason  string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s on order %s rejected: %s", e.Action, e.OrderID, e.Reason)
}

// ReconciliationAmbiguity reports a transaction id that does not resolve to
// exactly one order.
type ReconciliationAmbiguity struct {
	TransactionID string
	Matches       int
}

func (e *ReconciliationAmbiguity) Error() string {
	return fmt.Sprintf("transaction %s matches %d orders", e.TransactionID, e.Matches)
}

func precondition(action, orderID, format string, args ...any) error {
	return &PreconditionError{Action: action, OrderID: orderID, Reason: fmt.Sprintf(format, args...)}
}

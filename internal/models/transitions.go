package models

import "fmt"

// AllowedTransitions lists the statuses each order status may move to.
// Self transitions are allowed only where a payment sub-state can change
// without the order status changing (e.g. redirect -> hold).
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPending: {
		StatusOnHold, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled,
	},
	StatusOnHold: {
		StatusOnHold, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled,
	},
	StatusProcessing: {
		StatusOnHold, StatusCompleted, StatusFailed, StatusCancelled,
	},
	StatusCompleted: {
		StatusRefunded, StatusCancelled, StatusFailed,
	},
	StatusFailed: {
		StatusOnHold, StatusProcessing, StatusCompleted, StatusFailed,
	},
	StatusCancelled: {},
	StatusRefunded:  {},
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid order transition from %s to %s", from, to)
	}
	return nil
}

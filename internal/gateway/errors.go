package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperation is returned when no builder is registered for a kind.
	ErrUnknownOperation = errors.New("gateway: unknown operation")
	// ErrInvalidOperation is returned when an operation lacks fields its kind requires.
	ErrInvalidOperation = errors.New("gateway: invalid operation")
)

// TransportError is a non-200 HTTP answer from the acquirer.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway: http %d: %s", e.StatusCode, e.Body)
}

// ProtocolError is a response that is not a valid envelope.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway: protocol: %s: %v", e.Reason, e.Err)
	}
	return "gateway: protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// GatewayError is a business error reported in the envelope's error section.
// Its Code is the acquirer's error code, not a transaction status code.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: error %d: %s", e.Code, e.Message)
}

// OutcomeUnknownError means the request may or may not have reached the
// acquirer (timeout, connection reset). Local state must not advance.
type OutcomeUnknownError struct {
	Kind Kind
	Err  error
}

func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("gateway: %s outcome unknown: %v", e.Kind, e.Err)
}

func (e *OutcomeUnknownError) Unwrap() error { return e.Err }

// IsOutcomeUnknown reports whether err leaves the acquirer-side result undetermined.
func IsOutcomeUnknown(err error) bool {
	var ou *OutcomeUnknownError
	return errors.As(err, &ou)
}

// Message extracts the acquirer-facing text of a gateway failure for order notes.
func Message(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Message
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Body
	}
	return err.Error()
}

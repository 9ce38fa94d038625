package models

import "fmt"

// PaymentMethod is the acquirer product an order was first paid with.
type PaymentMethod string

const (
	MethodSms              PaymentMethod = "Sms"
	MethodDms              PaymentMethod = "Dms"
	MethodCredit           PaymentMethod = "Credit"
	MethodP2P              PaymentMethod = "P2P"
	MethodInitRecurrentSms PaymentMethod = "InitRecurrentSms"
	MethodInitRecurrentDms PaymentMethod = "InitRecurrentDms"
)

// ParsePaymentMethod accepts the stored names plus the RecurrentSms/RecurrentDms
// settings values, which start a recurring chain.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "Sms", "Dms", "Credit", "P2P", "InitRecurrentSms", "InitRecurrentDms":
		return PaymentMethod(s), nil
	case "RecurrentSms":
		return MethodInitRecurrentSms, nil
	case "RecurrentDms":
		return MethodInitRecurrentDms, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// IsDualMessage reports methods that hold first and charge later.
func (m PaymentMethod) IsDualMessage() bool {
	return m == MethodDms || m == MethodInitRecurrentDms
}

func (m PaymentMethod) IsSingleMessage() bool {
	switch m {
	case MethodSms, MethodCredit, MethodP2P, MethodInitRecurrentSms:
		return true
	}
	return false
}

// IsReversible reports methods whose captured charge can be reversed.
func (m PaymentMethod) IsReversible() bool {
	return m == MethodSms || m == MethodInitRecurrentSms
}

func (m PaymentMethod) IsRecurring() bool {
	return m == MethodInitRecurrentSms || m == MethodInitRecurrentDms
}

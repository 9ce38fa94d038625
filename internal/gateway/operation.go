package gateway

import (
	"fmt"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

// Kind enumerates the acquirer operations this service issues.
type Kind int

const (
	KindSms Kind = iota + 1
	KindDmsHold
	KindDmsCharge
	KindCredit
	KindP2P
	KindInitRecurrentSms
	KindInitRecurrentDms
	KindRecurrentSms
	KindRecurrentDms
	KindRefund
	KindCancel
	KindReversal
	KindHistory
)

var kindNames = map[Kind]string{
	KindSms:              "Sms",
	KindDmsHold:          "DmsHold",
	KindDmsCharge:        "DmsCharge",
	KindCredit:           "Credit",
	KindP2P:              "P2P",
	KindInitRecurrentSms: "InitRecurrentSms",
	KindInitRecurrentDms: "InitRecurrentDms",
	KindRecurrentSms:     "RecurrentSms",
	KindRecurrentDms:     "RecurrentDms",
	KindRefund:           "Refund",
	KindCancel:           "Cancel",
	KindReversal:         "Reversal",
	KindHistory:          "History",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// InitialKind maps the order's payment method to the first-leg operation.
func InitialKind(m models.PaymentMethod) (Kind, error) {
	switch m {
	case models.MethodSms:
		return KindSms, nil
	case models.MethodDms:
		return KindDmsHold, nil
	case models.MethodCredit:
		return KindCredit, nil
	case models.MethodP2P:
		return KindP2P, nil
	case models.MethodInitRecurrentSms:
		return KindInitRecurrentSms, nil
	case models.MethodInitRecurrentDms:
		return KindInitRecurrentDms, nil
	}
	return 0, fmt.Errorf("%w: no first leg for method %q", ErrUnknownOperation, m)
}

// RecurrentKind maps a recurring chain's initial method to its renewal operation.
func RecurrentKind(m models.PaymentMethod) (Kind, error) {
	switch m {
	case models.MethodInitRecurrentSms:
		return KindRecurrentSms, nil
	case models.MethodInitRecurrentDms:
		return KindRecurrentDms, nil
	}
	return 0, fmt.Errorf("%w: method %q does not start a recurring chain", ErrUnknownOperation, m)
}

type Customer struct {
	Email           string
	Phone           string
	BillingAddress  models.Address
	ShippingAddress models.Address
}

type OrderData struct {
	MerchantTransactionID string
	Description           string
	MerchantSideURL       string
}

type Money struct {
	Amount   int64
	Currency string
}

type Card struct {
	PAN            string
	Expire         string
	CVV            string
	CardHolderName string
}

// Recipient identifies the P2P beneficiary.
type Recipient struct {
	Name      string
	Reference string
}

// Operation is a request descriptor for a single acquirer call.
type Operation struct {
	kind Kind

	Customer             Customer
	Order                OrderData
	Money                Money
	Card                 *Card
	Recipient            *Recipient
	GatewayTransactionID string
	TransactionIDs       []string
	UserIP               string
}

// NewOperation fails for kinds without a registered builder.
func NewOperation(kind Kind) (*Operation, error) {
	if _, ok := builders[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, kind)
	}
	return &Operation{kind: kind}, nil
}

func (o *Operation) Kind() Kind { return o.kind }

package gateway

import (
	"fmt"
	"net/http"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

type authData struct {
	AccountID string `json:"account-id"`
	SecretKey string `json:"secret-key"`
}

type commandData struct {
	GatewayTransactionID string `json:"gateway-transaction-id,omitempty"`
}

type customerData struct {
	Email                  string `json:"email,omitempty"`
	Phone                  string `json:"phone,omitempty"`
	BillingAddressCountry  string `json:"billing-address-country,omitempty"`
	BillingAddressState    string `json:"billing-address-state,omitempty"`
	BillingAddressCity     string `json:"billing-address-city,omitempty"`
	BillingAddressStreet   string `json:"billing-address-street,omitempty"`
	BillingAddressHouse    string `json:"billing-address-house,omitempty"`
	BillingAddressFlat     string `json:"billing-address-flat,omitempty"`
	BillingAddressZIP      string `json:"billing-address-zip,omitempty"`
	ShippingAddressCountry string `json:"shipping-address-country,omitempty"`
	ShippingAddressState   string `json:"shipping-address-state,omitempty"`
	ShippingAddressCity    string `json:"shipping-address-city,omitempty"`
	ShippingAddressStreet  string `json:"shipping-address-street,omitempty"`
	ShippingAddressHouse   string `json:"shipping-address-house,omitempty"`
	ShippingAddressFlat    string `json:"shipping-address-flat,omitempty"`
	ShippingAddressZIP     string `json:"shipping-address-zip,omitempty"`
	RecipientName          string `json:"recipient-name,omitempty"`
	RecipientReference     string `json:"recipient-reference,omitempty"`
}

type orderData struct {
	MerchantTransactionID string `json:"merchant-transaction-id,omitempty"`
	Description           string `json:"order-description,omitempty"`
	MerchantSideURL       string `json:"merchant-side-url,omitempty"`
}

type generalData struct {
	CustomerData *customerData `json:"customer-data,omitempty"`
	OrderData    *orderData    `json:"order-data,omitempty"`
}

type paymentMethodData struct {
	PAN            string `json:"pan,omitempty"`
	ExpMMYY        string `json:"exp-mm-yy,omitempty"`
	CVV            string `json:"cvv,omitempty"`
	CardholderName string `json:"cardholder-name,omitempty"`
}

type moneyData struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

type systemData struct {
	UserIP string `json:"user-ip,omitempty"`
}

type infoData struct {
	GatewayTransactionIDs []string `json:"gateway-transaction-ids,omitempty"`
}

type requestData struct {
	Command       *commandData       `json:"command-data,omitempty"`
	General       *generalData       `json:"general-data,omitempty"`
	PaymentMethod *paymentMethodData `json:"payment-method-data,omitempty"`
	Money         *moneyData         `json:"money-data,omitempty"`
	System        *systemData        `json:"system,omitempty"`
	Info          *infoData          `json:"info-data,omitempty"`
}

type requestEnvelope struct {
	Auth authData    `json:"auth"`
	Data requestData `json:"data"`
}

type request struct {
	method string
	path   string
	data   requestData
}

type builder func(op *Operation) (request, error)

// builders is the single dispatch table from operation kind to request shape.
var builders = map[Kind]builder{
	KindSms:              paymentBuilder("/sms"),
	KindDmsHold:          paymentBuilder("/dms/hold"),
	KindCredit:           paymentBuilder("/credit"),
	KindP2P:              p2pBuilder,
	KindInitRecurrentSms: paymentBuilder("/recurrent/sms/init"),
	KindInitRecurrentDms: paymentBuilder("/recurrent/dms/init"),
	KindDmsCharge:        commandBuilder("/dms/charge", true),
	KindRecurrentSms:     commandBuilder("/recurrent/sms", true),
	KindRecurrentDms:     commandBuilder("/recurrent/dms", true),
	KindRefund:           commandBuilder("/refund", true),
	KindCancel:           commandBuilder("/cancel", false),
	KindReversal:         commandBuilder("/reversal", false),
	KindHistory:          historyBuilder,
}

func build(op *Operation) (request, error) {
	b, ok := builders[op.kind]
	if !ok {
		return request{}, fmt.Errorf("%w: %s", ErrUnknownOperation, op.kind)
	}
	return b(op)
}

func invalid(op *Operation, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidOperation, op.kind, reason)
}

// paymentBuilder covers first-leg operations carrying customer, order and money.
// The card section is optional: without it the acquirer answers with a
// redirect to its hosted card form.
func paymentBuilder(path string) builder {
	return func(op *Operation) (request, error) {
		if op.Money.Amount <= 0 {
			return request{}, invalid(op, "amount must be positive")
		}
		if op.Money.Currency == "" {
			return request{}, invalid(op, "currency is required")
		}
		data := requestData{
			General: &generalData{
				CustomerData: customerSection(op),
				OrderData: &orderData{
					MerchantTransactionID: op.Order.MerchantTransactionID,
					Description:           op.Order.Description,
					MerchantSideURL:       op.Order.MerchantSideURL,
				},
			},
			Money:  &moneyData{Amount: op.Money.Amount, Currency: op.Money.Currency},
			System: &systemData{UserIP: op.UserIP},
		}
		if op.Card != nil {
			data.PaymentMethod = &paymentMethodData{
				PAN:            op.Card.PAN,
				ExpMMYY:        op.Card.Expire,
				CVV:            op.Card.CVV,
				CardholderName: op.Card.CardHolderName,
			}
		}
		return request{method: http.MethodPost, path: path, data: data}, nil
	}
}

func p2pBuilder(op *Operation) (request, error) {
	if op.Recipient == nil || op.Recipient.Name == "" {
		return request{}, invalid(op, "recipient is required")
	}
	req, err := paymentBuilder("/p2p")(op)
	if err != nil {
		return request{}, err
	}
	req.data.General.CustomerData.RecipientName = op.Recipient.Name
	req.data.General.CustomerData.RecipientReference = op.Recipient.Reference
	return req, nil
}

// commandBuilder covers follow-up operations addressed by transaction id.
func commandBuilder(path string, withMoney bool) builder {
	return func(op *Operation) (request, error) {
		if op.GatewayTransactionID == "" {
			return request{}, invalid(op, "gateway transaction id is required")
		}
		data := requestData{Command: &commandData{GatewayTransactionID: op.GatewayTransactionID}}
		if withMoney {
			if op.Money.Amount <= 0 {
				return request{}, invalid(op, "amount must be positive")
			}
			data.Money = &moneyData{Amount: op.Money.Amount, Currency: op.Money.Currency}
		}
		return request{method: http.MethodPost, path: path, data: data}, nil
	}
}

func historyBuilder(op *Operation) (request, error) {
	if len(op.TransactionIDs) == 0 {
		return request{}, invalid(op, "at least one transaction id is required")
	}
	return request{
		method: http.MethodPost,
		path:   "/history",
		data:   requestData{Info: &infoData{GatewayTransactionIDs: op.TransactionIDs}},
	}, nil
}

func customerSection(op *Operation) *customerData {
	b, s := op.Customer.BillingAddress, op.Customer.ShippingAddress
	return &customerData{
		Email:                  op.Customer.Email,
		Phone:                  op.Customer.Phone,
		BillingAddressCountry:  b.Country,
		BillingAddressState:    orNA(b.State),
		BillingAddressCity:     orNA(b.City),
		BillingAddressStreet:   orNA(b.Street),
		BillingAddressHouse:    orNA(b.House),
		BillingAddressFlat:     b.Flat,
		BillingAddressZIP:      orNA(b.Postcode),
		ShippingAddressCountry: orNA(s.Country),
		ShippingAddressState:   orNA(s.State),
		ShippingAddressCity:    orNA(s.City),
		ShippingAddressStreet:  orNA(s.Street),
		ShippingAddressHouse:   orNA(s.House),
		ShippingAddressFlat:    s.Flat,
		ShippingAddressZIP:     orNA(s.Postcode),
	}
}

// orNA fills address fields the acquirer requires to be non-empty.
func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// CustomerFromOrder copies the order's contact and address data.
func CustomerFromOrder(o *models.Order) Customer {
	return Customer{
		Email:           o.Customer.Email,
		Phone:           o.Customer.Phone,
		BillingAddress:  o.Billing,
		ShippingAddress: o.Shipping,
	}
}

package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the storefront-owned order status.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusOnHold     OrderStatus = "on-hold"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
	StatusFailed     OrderStatus = "failed"
)

// IsTerminal reports statuses that close the payment sub-state. Failed orders
// are terminal but may still be retried at checkout.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusOnHold, StatusProcessing, StatusCompleted,
		StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// ChargeCaptured is the tri-state capture marker: unset, "no" or "yes".
type ChargeCaptured string

const (
	CapturedUnset ChargeCaptured = ""
	CapturedNo    ChargeCaptured = "no"
	CapturedYes   ChargeCaptured = "yes"
)

type Address struct {
	Country  string `json:"country"`
	State    string `json:"state"`
	City     string `json:"city"`
	Street   string `json:"street"`
	House    string `json:"house"`
	Flat     string `json:"flat"`
	Postcode string `json:"postcode"`
}

type Customer struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	IP    string `json:"ip"`
}

type LineItem struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	ManageStock bool   `json:"manage_stock"`
}

type Note struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is the slice of a storefront order the payment core reads and writes.
type Order struct {
	ID              string
	Number          string
	Status          OrderStatus
	Total           decimal.Decimal
	Currency        string
	Customer        Customer
	Billing         Address
	Shipping        Address
	Items           []LineItem
	TransactionID   string
	PaymentMethod   PaymentMethod
	ChargeCaptured  ChargeCaptured
	PaymentResponse json.RawMessage
	StockReduced    bool
	AwaitingReturn  bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StockItems returns the line items whose products track stock.
func (o *Order) StockItems() []LineItem {
	items := make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		if it.ManageStock && it.Quantity > 0 {
			items = append(items, it)
		}
	}
	return items
}

// PaymentSnapshot is the pre-state a transition is conditioned on.
type PaymentSnapshot struct {
	Status         OrderStatus
	ChargeCaptured ChargeCaptured
}

func (o *Order) Snapshot() PaymentSnapshot {
	return PaymentSnapshot{Status: o.Status, ChargeCaptured: o.ChargeCaptured}
}

// PaymentUpdate is written atomically when the stored snapshot still matches.
type PaymentUpdate struct {
	Status          OrderStatus
	ChargeCaptured  ChargeCaptured
	TransactionID   string
	PaymentMethod   PaymentMethod
	PaymentResponse json.RawMessage
}

// PendingReturn marks an order whose customer was redirected to the acquirer.
type PendingReturn struct {
	OrderID       string
	TransactionID string
	CreatedAt     time.Time
}

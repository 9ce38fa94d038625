package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/amount"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

const (
	defaultLockTTL = 30 * time.Second

	ResultSuccess = "success"
	ResultFailure = "failure"

	customerFailureMessage = "Payment could not be completed. Please try again or choose another payment method."
)

// Storefront builds the customer-facing URLs the service redirects to.
type Storefront struct {
	BaseURL           string
	OrderReceivedPath string
}

func (s Storefront) Home() string {
	return strings.TrimRight(s.BaseURL, "/") + "/"
}

func (s Storefront) OrderReceivedURL(orderID string) string {
	path := s.OrderReceivedPath
	if path == "" {
		path = "/checkout/order-received/"
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.Trim(path, "/") + "/" + url.PathEscape(orderID) + "/"
}

type CheckoutConfig struct {
	Method          models.PaymentMethod
	CardForm        bool
	Recipient       gateway.Recipient
	Codec           amount.Codec
	MerchantSideURL string
	Storefront      Storefront
	LockTTL         time.Duration
}

// CheckoutRequest carries the customer's submission. Card is ignored when
// the acquirer's hosted card form is enabled.
type CheckoutRequest struct {
	Card   *gateway.Card
	UserIP string
}

type CheckoutResult struct {
	Result   string             `json:"result"`
	Redirect string             `json:"redirect,omitempty"`
	Status   models.OrderStatus `json:"status"`
	Message  string             `json:"message,omitempty"`
}

// Checkout submits the first leg of an order's payment.
type Checkout struct {
	repo    interfaces.OrderRepository
	gateway interfaces.Gateway
	machine *StateMachine
	locker  interfaces.Locker
	cfg     CheckoutConfig
}

func NewCheckout(repo interfaces.OrderRepository, gw interfaces.Gateway, machine *StateMachine, locker interfaces.Locker, cfg CheckoutConfig) *Checkout {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &Checkout{repo: repo, gateway: gw, machine: machine, locker: locker, cfg: cfg}
}

func (c *Checkout) ProcessPayment(ctx context.Context, orderID string, req CheckoutRequest) (*CheckoutResult, error) {
	release, err := c.locker.Acquire(ctx, orderID, c.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := c.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending && order.Status != models.StatusFailed {
		return nil, precondition("checkout", order.ID, "order is %s", order.Status)
	}

	if order.PaymentMethod == "" {
		order.PaymentMethod = c.cfg.Method
	}
	kind, err := gateway.InitialKind(order.PaymentMethod)
	if err != nil {
		return nil, precondition("checkout", order.ID, "%v", err)
	}

	op, err := c.operation(kind, order, req)
	if err != nil {
		return nil, err
	}

	resp, sendErr := c.gateway.Send(ctx, op)
	if sendErr != nil {
		return c.failed(ctx, order, kind, sendErr)
	}

	d, err := c.machine.Apply(ctx, order, Event{
		Source:        SourceCheckout,
		Kind:          kind,
		StatusCode:    resp.StatusCode,
		TransactionID: resp.TransactionID,
		RedirectURL:   resp.RedirectURL,
		Raw:           resp.Raw,
	})
	if err != nil {
		return nil, err
	}

	if d.PendingReturn {
		return &CheckoutResult{Result: ResultSuccess, Redirect: resp.RedirectURL, Status: order.Status}, nil
	}
	if order.Status == models.StatusFailed {
		return &CheckoutResult{Result: ResultFailure, Status: order.Status, Message: customerFailureMessage}, nil
	}
	return &CheckoutResult{
		Result:   ResultSuccess,
		Redirect: c.cfg.Storefront.OrderReceivedURL(order.ID),
		Status:   order.Status,
	}, nil
}

func (c *Checkout) operation(kind gateway.Kind, order *models.Order, req CheckoutRequest) (*gateway.Operation, error) {
	op, err := gateway.NewOperation(kind)
	if err != nil {
		return nil, err
	}
	op.Customer = gateway.CustomerFromOrder(order)
	op.Order = gateway.OrderData{
		MerchantTransactionID: uuid.NewString(),
		Description:           fmt.Sprintf("Order #%s", orderNumber(order)),
		MerchantSideURL:       c.cfg.MerchantSideURL,
	}
	op.Money = gateway.Money{
		Amount:   c.cfg.Codec.ToMinorUnits(order.Total, order.Currency),
		Currency: order.Currency,
	}
	op.UserIP = req.UserIP
	if op.UserIP == "" {
		op.UserIP = order.Customer.IP
	}
	if !c.cfg.CardForm && req.Card != nil {
		op.Card = req.Card
	}
	if kind == gateway.KindP2P {
		recipient := c.cfg.Recipient
		op.Recipient = &recipient
	}
	return op, nil
}

// failed records a failed attempt. An undetermined outcome leaves the order
// untouched since the acquirer may still have processed it.
func (c *Checkout) failed(ctx context.Context, order *models.Order, kind gateway.Kind, sendErr error) (*CheckoutResult, error) {
	telemetry.Logger.Error("Checkout payment failed",
		zap.String("order_id", order.ID),
		zap.String("operation", kind.String()),
		zap.Error(sendErr),
	)

	if gateway.IsOutcomeUnknown(sendErr) {
		c.machine.note(ctx, order.ID, fmt.Sprintf("Payment outcome unknown, awaiting acquirer confirmation: %v", sendErr))
		return &CheckoutResult{Result: ResultFailure, Status: order.Status, Message: customerFailureMessage}, nil
	}

	if _, err := c.machine.Apply(ctx, order, Event{
		Source:  SourceCheckout,
		Kind:    kind,
		Failure: gateway.Message(sendErr),
	}); err != nil {
		return nil, err
	}
	return &CheckoutResult{Result: ResultFailure, Status: order.Status, Message: customerFailureMessage}, nil
}

func orderNumber(o *models.Order) string {
	if o.Number != "" {
		return o.Number
	}
	return o.ID
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/lock"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

const (
	defaultReplayTTL = 10 * time.Minute
	defaultLockWait  = 5 * time.Second
)

// Reconciler applies asynchronous acquirer callbacks and handles the customer's
// return from the acquirer's pages. Only callbacks move order status.
type Reconciler struct {
	repo       interfaces.OrderRepository
	machine    *StateMachine
	locker     interfaces.Locker
	storefront Storefront
	replay     *cache.Cache
	lockTTL    time.Duration
	lockWait   time.Duration
}

func NewReconciler(repo interfaces.OrderRepository, machine *StateMachine, locker interfaces.Locker, storefront Storefront, replayTTL time.Duration) *Reconciler {
	if replayTTL <= 0 {
		replayTTL = defaultReplayTTL
	}
	return &Reconciler{
		repo:       repo,
		machine:    machine,
		locker:     locker,
		storefront: storefront,
		replay:     cache.New(replayTTL, 2*replayTTL),
		lockTTL:    defaultLockTTL,
		lockWait:   defaultLockWait,
	}
}

// BrowserReturn consumes the order's awaiting-return marker and returns the
// URL to send the customer to.
func (r *Reconciler) BrowserReturn(ctx context.Context, orderID string) (string, error) {
	if orderID == "" {
		return r.storefront.Home(), nil
	}
	pending, err := r.repo.TakePendingReturn(ctx, orderID)
	if err != nil {
		return "", err
	}
	if pending == nil {
		return r.storefront.Home(), nil
	}

	r.machine.note(ctx, orderID, fmt.Sprintf(
		"Customer returned from the acquirer. Awaiting confirmation for transaction %s.", pending.TransactionID))
	telemetry.Logger.Info("Customer returned from acquirer",
		zap.String("order_id", orderID),
		zap.String("transaction_id", pending.TransactionID),
	)
	return r.storefront.OrderReceivedURL(orderID), nil
}

// HandleCallback applies one callback payload. Unparseable payloads are
// dropped with a log line and a nil error. If the order stays locked past
// lockWait the lock error is returned and the delivery must be retried.
func (r *Reconciler) HandleCallback(ctx context.Context, payload string) error {
	ctx, span := telemetry.Tracer.Start(ctx, "reconciler.callback")
	defer span.End()

	if !gjson.Valid(payload) {
		telemetry.Logger.Warn("Dropping callback with malformed payload")
		telemetry.Callbacks.WithLabelValues("invalid").Inc()
		return nil
	}
	gw := gjson.Get(payload, "result-data.gw")
	txField := gw.Get("gateway-transaction-id")
	codeField := gw.Get("status-code")
	if txField.String() == "" || codeField.Type != gjson.Number || codeField.Int() <= 0 {
		telemetry.Logger.Warn("Dropping callback without transaction id or status code",
			zap.String("transaction_id", txField.String()),
			zap.String("status_code", codeField.Raw),
		)
		telemetry.Callbacks.WithLabelValues("invalid").Inc()
		return nil
	}
	txID := txField.String()
	code := int(codeField.Int())

	replayKey := fmt.Sprintf("%s:%d", txID, code)
	if _, seen := r.replay.Get(replayKey); seen {
		telemetry.Callbacks.WithLabelValues("duplicate").Inc()
		return nil
	}

	orders, err := r.repo.FindByTransactionID(ctx, txID)
	if err != nil {
		telemetry.Callbacks.WithLabelValues("error").Inc()
		return err
	}
	if len(orders) != 1 {
		amb := &ReconciliationAmbiguity{TransactionID: txID, Matches: len(orders)}
		telemetry.Logger.Warn("Dropping ambiguous callback",
			zap.String("transaction_id", txID),
			zap.Int("status_code", code),
			zap.Int("matches", len(orders)),
		)
		telemetry.Callbacks.WithLabelValues("ambiguous").Inc()
		return amb
	}
	orderID := orders[0].ID

	release, err := r.acquire(ctx, orderID)
	if err != nil {
		telemetry.Callbacks.WithLabelValues("locked").Inc()
		return err
	}
	defer release()

	// reload under the lock
	order, err := r.repo.GetByID(ctx, orderID)
	if err != nil {
		telemetry.Callbacks.WithLabelValues("error").Inc()
		return err
	}
	if order.TransactionID != txID {
		amb := &ReconciliationAmbiguity{TransactionID: txID, Matches: 0}
		telemetry.Logger.Warn("Callback transaction no longer matches order",
			zap.String("order_id", orderID),
			zap.String("transaction_id", txID),
		)
		telemetry.Callbacks.WithLabelValues("ambiguous").Inc()
		return amb
	}

	d, err := r.machine.Apply(ctx, order, Event{
		Source:        SourceCallback,
		StatusCode:    code,
		TransactionID: txID,
		Raw:           []byte(gw.Raw),
	})
	if errors.Is(err, ErrConcurrentTransition) {
		telemetry.Callbacks.WithLabelValues("duplicate").Inc()
		return nil
	}
	if err != nil {
		telemetry.Callbacks.WithLabelValues("error").Inc()
		return err
	}

	r.replay.SetDefault(replayKey, struct{}{})
	if d.NoOp {
		telemetry.Callbacks.WithLabelValues("noop").Inc()
	} else {
		telemetry.Callbacks.WithLabelValues("applied").Inc()
	}
	return nil
}

// acquire waits up to lockWait for another worker to release the order.
func (r *Reconciler) acquire(ctx context.Context, orderID string) (func(), error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = r.lockWait

	var release func()
	err := backoff.Retry(func() error {
		rel, err := r.locker.Acquire(ctx, orderID, r.lockTTL)
		if errors.Is(err, lock.ErrLocked) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		release = rel
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return release, nil
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const selectOrder = `
		SELECT o.order_id, o.order_number, o.status, o.total, o.currency,
		       o.customer, o.billing, o.shipping,
		       o.transaction_id, o.payment_method, o.charge_captured, o.payment_response,
		       o.stock_reduced, EXISTS (SELECT 1 FROM pending_returns p WHERE p.order_id = o.order_id),
		       o.created_at, o.updated_at
		FROM orders o WHERE o.order_id = $1`

func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	var (
		o                          models.Order
		customer, billing, shipping []byte
		response                   []byte
	)
	err := r.db.QueryRowContext(ctx, selectOrder, orderID).Scan(
		&o.ID, &o.Number, &o.Status, &o.Total, &o.Currency,
		&customer, &billing, &shipping,
		&o.TransactionID, &o.PaymentMethod, &o.ChargeCaptured, &response,
		&o.StockReduced, &o.AwaitingReturn,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	if err := unmarshalAll(
		jsonField{customer, &o.Customer},
		jsonField{billing, &o.Billing},
		jsonField{shipping, &o.Shipping},
	); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	if len(response) > 0 {
		o.PaymentResponse = json.RawMessage(response)
	}

	items, err := r.items(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *OrderRepository) items(ctx context.Context, orderID string) ([]models.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, manage_stock
		FROM order_items WHERE order_id = $1 ORDER BY line_no
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items of order %s: %w", orderID, err)
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var it models.LineItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.ManageStock); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindByTransactionID returns every order carrying transactionID; callers
// decide what to do when that is not exactly one.
func (r *OrderRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]*models.Order, error) {
	if transactionID == "" {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id FROM orders WHERE transaction_id = $1 ORDER BY created_at`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("find orders by transaction %s: %w", transactionID, err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]*models.Order, 0, len(ids))
	for _, id := range ids {
		o, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *OrderRepository) TransitionPayment(ctx context.Context, orderID string, from models.PaymentSnapshot, update models.PaymentUpdate) (int64, error) {
	var response any
	if len(update.PaymentResponse) > 0 {
		response = string(update.PaymentResponse)
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, charge_captured = $2, transaction_id = $3, payment_method = $4,
		    payment_response = COALESCE($5::jsonb, payment_response), updated_at = NOW()
		WHERE order_id = $6 AND status = $7 AND charge_captured = $8
	`, update.Status, update.ChargeCaptured, update.TransactionID, update.PaymentMethod,
		response, orderID, from.Status, from.ChargeCaptured)
	if err != nil {
		return 0, fmt.Errorf("transition order %s: %w", orderID, err)
	}
	return result.RowsAffected()
}

func (r *OrderRepository) MarkStockReduced(ctx context.Context, orderID string, reduced bool) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET stock_reduced = $1, updated_at = NOW()
		WHERE order_id = $2 AND stock_reduced = $3
	`, reduced, orderID, !reduced)
	if err != nil {
		return 0, fmt.Errorf("mark stock of order %s: %w", orderID, err)
	}
	return result.RowsAffected()
}

func (r *OrderRepository) AddNote(ctx context.Context, orderID, body string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO order_notes (id, order_id, body) VALUES ($1, $2, $3)`,
		uuid.NewString(), orderID, body)
	if err != nil {
		return fmt.Errorf("add note to order %s: %w", orderID, err)
	}
	return nil
}

// Notes is used by the admin state endpoint.
func (r *OrderRepository) Notes(ctx context.Context, orderID string) ([]models.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, body, created_at FROM order_notes WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list notes of order %s: %w", orderID, err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *OrderRepository) SetPendingReturn(ctx context.Context, orderID, transactionID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_returns (order_id, transaction_id)
		VALUES ($1, $2)
		ON CONFLICT (order_id) DO UPDATE
		SET transaction_id = EXCLUDED.transaction_id, created_at = NOW()
	`, orderID, transactionID)
	if err != nil {
		return fmt.Errorf("set pending return for order %s: %w", orderID, err)
	}
	return nil
}

// TakePendingReturn deletes and returns the marker; nil when there was none.
func (r *OrderRepository) TakePendingReturn(ctx context.Context, orderID string) (*models.PendingReturn, error) {
	var p models.PendingReturn
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM pending_returns WHERE order_id = $1
		RETURNING order_id, transaction_id, created_at
	`, orderID).Scan(&p.OrderID, &p.TransactionID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take pending return for order %s: %w", orderID, err)
	}
	return &p, nil
}

func (r *OrderRepository) ListPendingReturns(ctx context.Context, olderThan time.Time) ([]models.PendingReturn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, transaction_id, created_at
		FROM pending_returns WHERE created_at < $1 ORDER BY created_at
	`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list pending returns: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingReturn
	for rows.Next() {
		var p models.PendingReturn
		if err := rows.Scan(&p.OrderID, &p.TransactionID, &p.CreatedAt); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

type jsonField struct {
	raw  []byte
	dest any
}

func unmarshalAll(fields ...jsonField) error {
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return err
		}
	}
	return nil
}

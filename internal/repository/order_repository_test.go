package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

var orderColumns = []string{
	"order_id", "order_number", "status", "total", "currency",
	"customer", "billing", "shipping",
	"transaction_id", "payment_method", "charge_captured", "payment_response",
	"stock_reduced", "exists", "created_at", "updated_at",
}

func newMock(t *testing.T) (*OrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOrderRepository(db), mock
}

func expectOrder(mock sqlmock.Sqlmock, id, txID string) {
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders o WHERE o.order_id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(
			id, "1001", "on-hold", "19.99", "USD",
			[]byte(`{"email":"a@b.c"}`), []byte(`{"city":"Riga"}`), []byte(`{}`),
			txID, "Dms", "no", []byte(`{"gw":{"status-code":3}}`),
			false, true, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items WHERE order_id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "manage_stock"}).
			AddRow("sku-1", 2, true).
			AddRow("gift-card", 1, false))
}

func TestOrderRepository_GetByID(t *testing.T) {
	repo, mock := newMock(t)
	expectOrder(mock, "ord-1", "tx-1")

	o, err := repo.GetByID(context.Background(), "ord-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusOnHold, o.Status)
	assert.Equal(t, "19.99", o.Total.StringFixed(2))
	assert.Equal(t, "a@b.c", o.Customer.Email)
	assert.Equal(t, "Riga", o.Billing.City)
	assert.Equal(t, models.MethodDms, o.PaymentMethod)
	assert.Equal(t, models.CapturedNo, o.ChargeCaptured)
	assert.True(t, o.AwaitingReturn)
	assert.Len(t, o.Items, 2)
	assert.Len(t, o.StockItems(), 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders o WHERE o.order_id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderRepository_FindByTransactionID(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT order_id FROM orders WHERE transaction_id = $1")).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow("ord-1"))
	expectOrder(mock, "ord-1", "tx-1")

	orders, err := repo.FindByTransactionID(context.Background(), "tx-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "tx-1", orders[0].TransactionID)

	none, err := repo.FindByTransactionID(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_TransitionPayment(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WithArgs("completed", "yes", "tx-2", "Dms", `{"gw":{}}`, "ord-1", "on-hold", "no").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WithArgs("completed", "yes", "tx-2", "Dms", nil, "ord-1", "on-hold", "no").
		WillReturnResult(sqlmock.NewResult(0, 0))

	from := models.PaymentSnapshot{Status: models.StatusOnHold, ChargeCaptured: models.CapturedNo}
	update := models.PaymentUpdate{
		Status:          models.StatusCompleted,
		ChargeCaptured:  models.CapturedYes,
		TransactionID:   "tx-2",
		PaymentMethod:   models.MethodDms,
		PaymentResponse: []byte(`{"gw":{}}`),
	}

	rows, err := repo.TransitionPayment(context.Background(), "ord-1", from, update)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	update.PaymentResponse = nil
	rows, err = repo.TransitionPayment(context.Background(), "ord-1", from, update)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_MarkStockReduced(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET stock_reduced = $1")).
		WithArgs(true, "ord-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows, err := repo.MarkStockReduced(context.Background(), "ord-1", true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_AddNote(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_notes")).
		WithArgs(sqlmock.AnyArg(), "ord-1", "Customer returned from the payment page.").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.AddNote(context.Background(), "ord-1", "Customer returned from the payment page."))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_PendingReturns(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	created := time.Now().Add(-2 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pending_returns")).
		WithArgs("ord-1", "tx-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM pending_returns WHERE order_id = $1")).
		WithArgs("ord-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "transaction_id", "created_at"}).
			AddRow("ord-1", "tx-1", created))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM pending_returns WHERE order_id = $1")).
		WithArgs("ord-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM pending_returns WHERE created_at < $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "transaction_id", "created_at"}).
			AddRow("ord-2", "tx-2", created))

	require.NoError(t, repo.SetPendingReturn(ctx, "ord-1", "tx-1"))

	p, err := repo.TakePendingReturn(ctx, "ord-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "tx-1", p.TransactionID)

	p, err = repo.TakePendingReturn(ctx, "ord-1")
	require.NoError(t, err)
	assert.Nil(t, p)

	stale, err := repo.ListPendingReturns(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "ord-2", stale[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

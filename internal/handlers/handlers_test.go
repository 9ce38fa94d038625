package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/lock"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/repository"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/service"
)

type MockCheckout struct {
	ProcessPaymentFunc func(ctx context.Context, orderID string, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

func (m *MockCheckout) ProcessPayment(ctx context.Context, orderID string, req service.CheckoutRequest) (*service.CheckoutResult, error) {
	return m.ProcessPaymentFunc(ctx, orderID, req)
}

type MockReconciler struct {
	HandleCallbackFunc func(ctx context.Context, payload string) error
	BrowserReturnFunc  func(ctx context.Context, orderID string) (string, error)
}

func (m *MockReconciler) HandleCallback(ctx context.Context, payload string) error {
	return m.HandleCallbackFunc(ctx, payload)
}

func (m *MockReconciler) BrowserReturn(ctx context.Context, orderID string) (string, error) {
	return m.BrowserReturnFunc(ctx, orderID)
}

type MockAdmin struct {
	ChargeFunc  func(ctx context.Context, orderID string) (*service.Decision, error)
	RefundFunc  func(ctx context.Context, orderID string, amount decimal.Decimal, reason string) (*service.Decision, error)
	HistoryFunc func(ctx context.Context, orderID string) (*gateway.Response, error)
}

func (m *MockAdmin) Charge(ctx context.Context, orderID string) (*service.Decision, error) {
	return m.ChargeFunc(ctx, orderID)
}

func (m *MockAdmin) CancelHold(ctx context.Context, orderID string) (*service.Decision, error) {
	return m.ChargeFunc(ctx, orderID)
}

func (m *MockAdmin) Reverse(ctx context.Context, orderID string) (*service.Decision, error) {
	return m.ChargeFunc(ctx, orderID)
}

func (m *MockAdmin) Refund(ctx context.Context, orderID string, amount decimal.Decimal, reason string) (*service.Decision, error) {
	return m.RefundFunc(ctx, orderID, amount, reason)
}

func (m *MockAdmin) History(ctx context.Context, orderID string) (*gateway.Response, error) {
	return m.HistoryFunc(ctx, orderID)
}

type MockRenewals struct {
	ChargeRenewalFunc func(ctx context.Context, orderID, parentTxID string, amount decimal.Decimal) (*service.Decision, error)
}

func (m *MockRenewals) ChargeRenewal(ctx context.Context, orderID, parentTxID string, amount decimal.Decimal) (*service.Decision, error) {
	return m.ChargeRenewalFunc(ctx, orderID, parentTxID, amount)
}

type MockOrders struct {
	GetByIDFunc func(ctx context.Context, orderID string) (*models.Order, error)
	NotesFunc   func(ctx context.Context, orderID string) ([]models.Note, error)
}

func (m *MockOrders) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	return m.GetByIDFunc(ctx, orderID)
}

func (m *MockOrders) Notes(ctx context.Context, orderID string) ([]models.Note, error) {
	return m.NotesFunc(ctx, orderID)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestPaymentHandler_ProcessPayment(t *testing.T) {
	var got service.CheckoutRequest
	checkout := &MockCheckout{ProcessPaymentFunc: func(_ context.Context, orderID string, req service.CheckoutRequest) (*service.CheckoutResult, error) {
		got = req
		switch orderID {
		case "missing":
			return nil, repository.ErrOrderNotFound
		case "paid":
			return nil, &service.PreconditionError{Action: "checkout", OrderID: orderID, Reason: "order is completed"}
		}
		return &service.CheckoutResult{Result: service.ResultSuccess, Redirect: "https://pay.example/3ds", Status: models.StatusOnHold}, nil
	}}

	r := setupRouter()
	r.POST("/orders/:id/checkout", NewPaymentHandler(checkout).ProcessPayment)

	t.Run("with card", func(t *testing.T) {
		body := `{"card":{"pan":"4111111111111111","expire":"12/30","cvv":"123","cardholder_name":"JOHN DOE"}}`
		req := httptest.NewRequest(http.MethodPost, "/orders/1/checkout", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var res service.CheckoutResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "https://pay.example/3ds", res.Redirect)
		require.NotNil(t, got.Card)
		assert.Equal(t, "JOHN DOE", got.Card.CardHolderName)
		assert.NotEmpty(t, got.UserIP)
	})

	t.Run("hosted form without body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/orders/1/checkout", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, got.Card)
	})

	t.Run("incomplete card", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/orders/1/checkout", strings.NewReader(`{"card":{"pan":"4111"}}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("error mapping", func(t *testing.T) {
		for id, want := range map[string]int{"missing": http.StatusNotFound, "paid": http.StatusConflict} {
			req := httptest.NewRequest(http.MethodPost, "/orders/"+id+"/checkout", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, want, w.Code, id)
		}
	})
}

func TestGatewayHandler_Callback(t *testing.T) {
	var payload string
	rec := &MockReconciler{HandleCallbackFunc: func(_ context.Context, p string) error {
		payload = p
		return &service.ReconciliationAmbiguity{TransactionID: "tx-1", Matches: 2}
	}}

	r := setupRouter()
	r.POST("/gateway/callback", NewGatewayHandler(rec).Callback)

	form := url.Values{"json": {`{&quot;result-data&quot;:{&quot;gw&quot;:{&quot;status-code&quot;:7}}}`}}
	req := httptest.NewRequest(http.MethodPost, "/gateway/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"result-data":{"gw":{"status-code":7}}}`, payload)
}

func TestGatewayHandler_Callback_StatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"applied", nil, http.StatusOK},
		{"ambiguous", &service.ReconciliationAmbiguity{TransactionID: "tx-1"}, http.StatusOK},
		{"order locked", fmt.Errorf("%w: 1", lock.ErrLocked), http.StatusServiceUnavailable},
		{"storage down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &MockReconciler{HandleCallbackFunc: func(context.Context, string) error { return tt.err }}
			r := setupRouter()
			r.POST("/gateway/callback", NewGatewayHandler(rec).Callback)

			form := url.Values{"json": {`{"result-data":{"gw":{"gateway-transaction-id":"tx-1","status-code":7}}}`}}
			req := httptest.NewRequest(http.MethodPost, "/gateway/callback", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGatewayHandler_Return(t *testing.T) {
	rec := &MockReconciler{BrowserReturnFunc: func(_ context.Context, orderID string) (string, error) {
		if orderID == "" {
			return "https://shop.example/", nil
		}
		return "https://shop.example/checkout/order-received/" + orderID + "/", nil
	}}

	r := setupRouter()
	h := NewGatewayHandler(rec)
	r.GET("/gateway/return", h.Return)
	r.POST("/gateway/return", h.Return)

	req := httptest.NewRequest(http.MethodGet, "/gateway/return?order_id=42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example/checkout/order-received/42/", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/gateway/return", strings.NewReader("order_id=7"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://shop.example/checkout/order-received/7/", w.Header().Get("Location"))
}

func TestAdminHandler(t *testing.T) {
	admin := &MockAdmin{
		ChargeFunc: func(_ context.Context, orderID string) (*service.Decision, error) {
			switch orderID {
			case "sms":
				return nil, &service.PreconditionError{Action: "charge", OrderID: orderID, Reason: "payment method \"Sms\" does not hold funds"}
			case "busy":
				return nil, lock.ErrLocked
			case "down":
				return nil, &gateway.TransportError{StatusCode: 503, Body: "maintenance"}
			case "boom":
				return nil, errors.New("db closed")
			}
			return &service.Decision{From: models.StatusOnHold, To: models.StatusCompleted, ChargeCaptured: models.CapturedYes, TransactionID: "charge-1"}, nil
		},
		RefundFunc: func(_ context.Context, _ string, amount decimal.Decimal, reason string) (*service.Decision, error) {
			if !amount.Equal(decimal.RequireFromString("10.50")) || reason != "damaged" {
				return nil, errors.New("unexpected refund input")
			}
			return &service.Decision{From: models.StatusCompleted, To: models.StatusRefunded}, nil
		},
		HistoryFunc: func(context.Context, string) (*gateway.Response, error) {
			return &gateway.Response{Raw: []byte(`{"status-code":7}`)}, nil
		},
	}
	renewals := &MockRenewals{ChargeRenewalFunc: func(_ context.Context, _ string, parent string, _ decimal.Decimal) (*service.Decision, error) {
		return nil, &service.ReconciliationAmbiguity{TransactionID: parent}
	}}

	r := setupRouter()
	h := NewAdminHandler(admin, renewals)
	r.POST("/admin/orders/:id/charge", h.Charge)
	r.POST("/admin/orders/:id/refund", h.Refund)
	r.POST("/admin/orders/:id/renewal", h.Renewal)
	r.GET("/admin/orders/:id/history", h.History)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/admin/orders/dms/charge", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "completed", res["status"])
	assert.Equal(t, "charge-1", res["transaction_id"])

	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/admin/orders/sms/charge", "").Code)
	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/admin/orders/busy/charge", "").Code)
	assert.Equal(t, http.StatusBadGateway, do(http.MethodPost, "/admin/orders/down/charge", "").Code)
	assert.Equal(t, http.StatusInternalServerError, do(http.MethodPost, "/admin/orders/boom/charge", "").Code)

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/admin/orders/1/refund", `{"amount":"10.50","reason":"damaged"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/admin/orders/1/refund", `{"amount":`).Code)

	assert.Equal(t, http.StatusUnprocessableEntity, do(http.MethodPost, "/admin/orders/2/renewal", `{"parent_transaction_id":"tx-p"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/admin/orders/2/renewal", `{}`).Code)

	w = do(http.MethodGet, "/admin/orders/1/history", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status-code":7}`, w.Body.String())
}

func TestPaymentStateHandler(t *testing.T) {
	orders := &MockOrders{
		GetByIDFunc: func(_ context.Context, id string) (*models.Order, error) {
			if id != "1" {
				return nil, repository.ErrOrderNotFound
			}
			return &models.Order{
				ID:             "1",
				Status:         models.StatusOnHold,
				PaymentMethod:  models.MethodDms,
				ChargeCaptured: models.CapturedNo,
				TransactionID:  "hold-1",
			}, nil
		},
		NotesFunc: func(context.Context, string) ([]models.Note, error) {
			return []models.Note{{ID: "n1", Body: "Funds held"}}, nil
		},
	}

	r := setupRouter()
	r.GET("/orders/:id/payment", NewPaymentStateHandler(orders).GetPaymentState)

	req := httptest.NewRequest(http.MethodGet, "/orders/1/payment?notes=true", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "HELD", res["state"])
	assert.Equal(t, "no", res["charge_captured"])
	assert.Len(t, res["notes"], 1)

	req = httptest.NewRequest(http.MethodGet, "/orders/2/payment", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

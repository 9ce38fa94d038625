package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/auth"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/service"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

type AdminService interface {
	Charge(ctx context.Context, orderID string) (*service.Decision, error)
	CancelHold(ctx context.Context, orderID string) (*service.Decision, error)
	Reverse(ctx context.Context, orderID string) (*service.Decision, error)
	Refund(ctx context.Context, orderID string, amount decimal.Decimal, reason string) (*service.Decision, error)
	History(ctx context.Context, orderID string) (*gateway.Response, error)
}

type RenewalService interface {
	ChargeRenewal(ctx context.Context, renewalOrderID, parentTransactionID string, amount decimal.Decimal) (*service.Decision, error)
}

type AdminHandler struct {
	admin    AdminService
	renewals RenewalService
}

func NewAdminHandler(admin AdminService, renewals RenewalService) *AdminHandler {
	return &AdminHandler{admin: admin, renewals: renewals}
}

func (h *AdminHandler) Charge(c *gin.Context) {
	h.runAction(c, "charge", h.admin.Charge)
}

func (h *AdminHandler) Cancel(c *gin.Context) {
	h.runAction(c, "cancel", h.admin.CancelHold)
}

func (h *AdminHandler) Reverse(c *gin.Context) {
	h.runAction(c, "reverse", h.admin.Reverse)
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h *AdminHandler) Refund(c *gin.Context) {
	var body refundRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.runAction(c, "refund", func(ctx context.Context, orderID string) (*service.Decision, error) {
		return h.admin.Refund(ctx, orderID, body.Amount, body.Reason)
	})
}

type renewalRequest struct {
	ParentTransactionID string          `json:"parent_transaction_id" binding:"required"`
	Amount              decimal.Decimal `json:"amount"`
}

func (h *AdminHandler) Renewal(c *gin.Context) {
	var body renewalRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.runAction(c, "renewal", func(ctx context.Context, orderID string) (*service.Decision, error) {
		return h.renewals.ChargeRenewal(ctx, orderID, body.ParentTransactionID, body.Amount)
	})
}

func (h *AdminHandler) History(c *gin.Context) {
	orderID := c.Param("id")
	resp, err := h.admin.History(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, orderID, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp.Raw)
}

func (h *AdminHandler) runAction(c *gin.Context, name string, run func(ctx context.Context, orderID string) (*service.Decision, error)) {
	orderID := c.Param("id")
	d, err := run(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, orderID, err)
		return
	}

	telemetry.Logger.Info("Admin action applied",
		zap.String("order_id", orderID),
		zap.String("action", name),
		zap.String("operator", c.GetString(auth.ContextSubject)),
		zap.String("to_status", string(d.To)),
	)
	c.JSON(http.StatusOK, gin.H{
		"order_id":        orderID,
		"action":          name,
		"previous_status": d.From,
		"status":          d.To,
		"charge_captured": d.ChargeCaptured,
		"transaction_id":  d.TransactionID,
		"note":            d.Note,
	})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

type OrderReader interface {
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
	Notes(ctx context.Context, orderID string) ([]models.Note, error)
}

type PaymentStateHandler struct {
	repo OrderReader
}

func NewPaymentStateHandler(repo OrderReader) *PaymentStateHandler {
	return &PaymentStateHandler{repo: repo}
}

func (h *PaymentStateHandler) GetPaymentState(c *gin.Context) {
	orderID := c.Param("id")

	order, err := h.repo.GetByID(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, orderID, err)
		return
	}

	info := models.PaymentStateInfo{
		OrderID:        order.ID,
		Status:         order.Status,
		State:          models.PaymentStateOf(order),
		PaymentMethod:  order.PaymentMethod,
		ChargeCaptured: order.ChargeCaptured,
		TransactionID:  order.TransactionID,
		AwaitingReturn: order.AwaitingReturn,
		UpdatedAt:      order.UpdatedAt,
	}

	resp := gin.H{
		"order_id":        info.OrderID,
		"status":          info.Status,
		"state":           info.State,
		"payment_method":  info.PaymentMethod,
		"charge_captured": info.ChargeCaptured,
		"transaction_id":  info.TransactionID,
		"awaiting_return": info.AwaitingReturn,
		"updated_at":      info.UpdatedAt,
	}
	if c.Query("notes") == "true" {
		notes, err := h.repo.Notes(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, orderID, err)
			return
		}
		resp["notes"] = notes
	}
	c.JSON(http.StatusOK, resp)
}

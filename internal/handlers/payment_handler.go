package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/service"
)

type CheckoutService interface {
	ProcessPayment(ctx context.Context, orderID string, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

type PaymentHandler struct {
	checkout CheckoutService
}

func NewPaymentHandler(checkout CheckoutService) *PaymentHandler {
	return &PaymentHandler{checkout: checkout}
}

type cardRequest struct {
	PAN            string `json:"pan" binding:"required"`
	Expire         string `json:"expire" binding:"required"`
	CVV            string `json:"cvv" binding:"required"`
	CardholderName string `json:"cardholder_name"`
}

type checkoutRequest struct {
	Card *cardRequest `json:"card"`
}

// ProcessPayment submits the order's checkout. Card data is optional when the
// acquirer's hosted form collects it.
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	orderID := c.Param("id")

	var body checkoutRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req := service.CheckoutRequest{UserIP: c.ClientIP()}
	if body.Card != nil {
		req.Card = &gateway.Card{
			PAN:            body.Card.PAN,
			Expire:         body.Card.Expire,
			CVV:            body.Card.CVV,
			CardHolderName: body.Card.CardholderName,
		}
	}

	result, err := h.checkout.ProcessPayment(c.Request.Context(), orderID, req)
	if err != nil {
		respondError(c, orderID, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

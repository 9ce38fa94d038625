package handlers

import (
	"context"
	"errors"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/service"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

type Reconciler interface {
	HandleCallback(ctx context.Context, payload string) error
	BrowserReturn(ctx context.Context, orderID string) (string, error)
}

// GatewayHandler serves the endpoints the acquirer and the returning
// customer hit.
type GatewayHandler struct {
	reconciler Reconciler
}

func NewGatewayHandler(reconciler Reconciler) *GatewayHandler {
	return &GatewayHandler{reconciler: reconciler}
}

// Callback answers 200 for applied payloads and for payloads we chose to drop
// (malformed or ambiguous). Anything else, a held order lock included, gets
// 503 so the acquirer redelivers.
func (h *GatewayHandler) Callback(c *gin.Context) {
	payload := html.UnescapeString(c.PostForm("json"))
	err := h.reconciler.HandleCallback(c.Request.Context(), payload)

	var amb *service.ReconciliationAmbiguity
	switch {
	case err == nil:
	case errors.As(err, &amb):
		telemetry.Logger.Warn("Callback not applied", zap.Error(err))
	default:
		telemetry.Logger.Error("Callback failed, asking for redelivery", zap.Error(err))
		c.String(http.StatusServiceUnavailable, "RETRY")
		return
	}
	c.String(http.StatusOK, "OK")
}

func (h *GatewayHandler) Return(c *gin.Context) {
	orderID := c.Query("order_id")
	if orderID == "" {
		orderID = c.PostForm("order_id")
	}

	target, err := h.reconciler.BrowserReturn(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, orderID, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

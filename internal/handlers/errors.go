package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/gateway"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/lock"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/repository"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/service"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

// respondError maps service errors to HTTP answers. Acquirer detail stays in
// logs and order notes.
func respondError(c *gin.Context, orderID string, err error) {
	var (
		pe  *service.PreconditionError
		amb *service.ReconciliationAmbiguity
	)
	status, msg := http.StatusInternalServerError, "internal error"

	switch {
	case errors.As(err, &pe):
		status, msg = http.StatusConflict, pe.Reason
	case errors.Is(err, repository.ErrOrderNotFound):
		status, msg = http.StatusNotFound, "order not found"
	case errors.As(err, &amb):
		status, msg = http.StatusUnprocessableEntity, amb.Error()
	case errors.Is(err, service.ErrConcurrentTransition), errors.Is(err, lock.ErrLocked):
		status, msg = http.StatusConflict, "order is being processed, retry later"
	case isGatewayError(err):
		status, msg = http.StatusBadGateway, "acquirer request failed"
	}

	if status >= http.StatusInternalServerError {
		telemetry.Logger.Error("Request failed", zap.String("order_id", orderID), zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		telemetry.Logger.Info("Request rejected", zap.String("order_id", orderID), zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg, "order_id": orderID})
}

func isGatewayError(err error) bool {
	var (
		te *gateway.TransportError
		pe *gateway.ProtocolError
		ge *gateway.GatewayError
	)
	return errors.As(err, &te) || errors.As(err, &pe) || errors.As(err, &ge) || gateway.IsOutcomeUnknown(err)
}

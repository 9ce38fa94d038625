package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/auth"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/handlers"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/telemetry"
)

// Deps holds everything the HTTP surface routes to.
type Deps struct {
	Orders     handlers.OrderReader
	Checkout   handlers.CheckoutService
	Reconciler handlers.Reconciler
	Admin      handlers.AdminService
	Renewals   handlers.RenewalService
	Tokens     *auth.Manager
}

func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": telemetry.ServiceName})
	})

	// Acquirer-facing routes
	gw := handlers.NewGatewayHandler(d.Reconciler)
	r.POST("/gateway/callback", gw.Callback)
	r.GET("/gateway/return", gw.Return)
	r.POST("/gateway/return", gw.Return)

	// Storefront routes
	payments := handlers.NewPaymentHandler(d.Checkout)
	state := handlers.NewPaymentStateHandler(d.Orders)
	r.POST("/orders/:id/checkout", payments.ProcessPayment)
	r.GET("/orders/:id/payment", state.GetPaymentState)

	// Operator routes
	admin := handlers.NewAdminHandler(d.Admin, d.Renewals)
	g := r.Group("/admin/orders/:id", auth.RequireRole(d.Tokens, auth.RoleAdmin))
	g.POST("/charge", admin.Charge)
	g.POST("/cancel", admin.Cancel)
	g.POST("/reverse", admin.Reverse)
	g.POST("/refund", admin.Refund)
	g.POST("/renewal", admin.Renewal)
	g.GET("/history", admin.History)
	g.GET("/payment", state.GetPaymentState)

	return r
}

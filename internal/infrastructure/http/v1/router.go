// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"billfold/internal/domain/exchange"
	"billfold/internal/domain/invoice"
	"billfold/internal/infrastructure/http/v1/handlers"
	"billfold/internal/infrastructure/http/v1/middleware"
	"billfold/internal/infrastructure/storage/postgres"
	"billfold/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// InvoiceService drives the document lifecycle endpoints
	InvoiceService *invoice.Service

	// ExchangeRates backs the rate registration/listing endpoints
	ExchangeRates exchange.Repository
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	apiV1 := router.Group("/api/v1")
	{
		protected := apiV1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		baseHandler := handlers.NewBaseHandler()

		invoiceHandler := handlers.NewInvoiceHandler(baseHandler, cfg.InvoiceService)
		invoiceHandler.RegisterRoutes(protected.Group("/invoices"))

		rateHandler := handlers.NewExchangeRateHandler(baseHandler, cfg.ExchangeRates)
		rateHandler.RegisterRoutes(protected.Group("/exchange-rates"))
	}

	return router
}

// Package main is the entry point for the billfold API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"billfold/internal/domain/auth"
	"billfold/internal/domain/exchange"
	"billfold/internal/domain/invoice"
	"billfold/internal/domain/procurement"
	v1 "billfold/internal/infrastructure/http/v1"
	"billfold/internal/infrastructure/numerator"
	"billfold/internal/infrastructure/storage/postgres"
	"billfold/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting billfold server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	invoiceRepo := postgres.NewInvoiceRepo(txManager)
	companyRepo := postgres.NewCompanyRepo(txManager)
	exchangeRepo := postgres.NewExchangeRateRepo(txManager)
	procurementRepo := postgres.NewProcurementRepo(txManager)

	// --- Numbering ---
	// Sequences are allocated outside document transactions so a
	// rollback leaves a gap, never a duplicate.
	numeratorService := numerator.New(pool)

	// --- Domain services ---
	rateResolver := exchange.NewResolver(exchangeRepo)
	reconciler := procurement.NewReconciler(procurementRepo, txManager)

	auditArchive, err := postgres.NewAuditArchive(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit archive", "error", err)
	}

	invoiceService := invoice.NewService(
		invoiceRepo,
		companyRepo,
		rateResolver,
		numeratorService,
		txManager,
	).
		WithArchive(auditArchive)

	if getEnv("OUTBOX_ENABLED", "false") == "true" {
		// Relay mode: the worker picks reconciliation events up from
		// sys_outbox instead of running them inline.
		invoiceService = invoiceService.WithOutbox(postgres.NewOutbox(txManager))
	} else {
		invoiceService = invoiceService.WithReconciler(reconciler)
	}

	// --- JWT Service ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		Logger:         log,
		JWTValidator:   jwtService,
		InvoiceService: invoiceService,
		ExchangeRates:  exchangeRepo,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

// Package main is the entry point for the billfold background worker.
// It runs three periodic jobs: the overdue sweep, the payment reminder
// cadence and the reconciliation outbox relay.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"billfold/internal/domain/exchange"
	"billfold/internal/domain/invoice"
	"billfold/internal/domain/procurement"
	"billfold/internal/infrastructure/numerator"
	"billfold/internal/infrastructure/storage/postgres"
	"billfold/pkg/logger"
)

const sweepBatchSize = 100

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting billfold worker")

	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	invoiceRepo := postgres.NewInvoiceRepo(txManager)
	companyRepo := postgres.NewCompanyRepo(txManager)
	exchangeRepo := postgres.NewExchangeRateRepo(txManager)
	procurementRepo := postgres.NewProcurementRepo(txManager)

	reconciler := procurement.NewReconciler(procurementRepo, txManager)

	auditArchive, err := postgres.NewAuditArchive(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit archive", "error", err)
	}

	invoiceService := invoice.NewService(
		invoiceRepo,
		companyRepo,
		exchange.NewResolver(exchangeRepo),
		numerator.New(pool),
		txManager,
	).
		WithReconciler(reconciler).
		WithArchive(auditArchive)

	worker := &Worker{
		log:            log.WithComponent("worker"),
		invoices:       invoiceRepo,
		invoiceService: invoiceService,
		relay: postgres.NewOutboxRelay(
			pool.Pool,
			getEnvInt("OUTBOX_BATCH_SIZE", 50),
			&reconcileHandler{reconciler: reconciler},
		),
		sweepInterval:    getEnvDuration("OVERDUE_SWEEP_INTERVAL", time.Hour),
		reminderCooldown: getEnvDuration("REMINDER_COOLDOWN", 72*time.Hour),
		relayInterval:    getEnvDuration("OUTBOX_POLL_INTERVAL", 10*time.Second),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic maintenance jobs.
type Worker struct {
	log            *logger.Logger
	invoices       invoice.Repository
	invoiceService *invoice.Service
	relay          *postgres.OutboxRelay

	sweepInterval    time.Duration
	reminderCooldown time.Duration
	relayInterval    time.Duration
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(w.sweepInterval)
	defer sweepTicker.Stop()

	relayTicker := time.NewTicker(w.relayInterval)
	defer relayTicker.Stop()

	// One pass on startup so a restarted worker catches up immediately.
	w.sweepOverdue(ctx)
	w.sendReminders(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case <-sweepTicker.C:
			w.sweepOverdue(ctx)
			w.sendReminders(ctx)

		case <-relayTicker.C:
			if n, err := w.relay.ProcessBatch(ctx); err != nil {
				w.log.Warnw("outbox relay batch failed", "error", err)
			} else if n > 0 {
				w.log.Infow("outbox relay batch processed", "count", n)
			}
		}
	}
}

// sweepOverdue flips past-due Sent invoices to Overdue. One failure
// never stops the sweep.
func (w *Worker) sweepOverdue(ctx context.Context) {
	now := time.Now().UTC()

	candidates, err := w.invoices.ListOverdueCandidates(ctx, now, sweepBatchSize)
	if err != nil {
		w.log.Warnw("overdue sweep query failed", "error", err)
		return
	}

	marked := 0
	for _, inv := range candidates {
		if err := w.invoiceService.MarkOverdue(ctx, inv); err != nil {
			w.log.Warnw("overdue transition failed",
				"invoice_id", inv.ID, "number", inv.Number, "error", err)
			continue
		}
		marked++
	}

	if marked > 0 {
		w.log.Infow("overdue sweep completed", "candidates", len(candidates), "marked", marked)
	}
}

// sendReminders nudges unpaid sent/overdue invoices past the cooldown.
func (w *Worker) sendReminders(ctx context.Context) {
	now := time.Now().UTC()

	candidates, err := w.invoices.ListReminderCandidates(ctx, now, w.reminderCooldown, sweepBatchSize)
	if err != nil {
		w.log.Warnw("reminder query failed", "error", err)
		return
	}

	sent := 0
	for _, inv := range candidates {
		if err := w.invoiceService.SendReminder(ctx, inv); err != nil {
			w.log.Warnw("reminder failed",
				"invoice_id", inv.ID, "number", inv.Number, "error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		w.log.Infow("reminder pass completed", "candidates", len(candidates), "sent", sent)
	}
}

// reconcileHandler delivers outbox reconciliation events.
type reconcileHandler struct {
	reconciler *procurement.Reconciler
}

func (h *reconcileHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	if msg.Topic != invoice.TopicReconcile {
		logger.Warn(ctx, "unknown outbox topic, dropping", "topic", msg.Topic, "id", msg.ID)
		return nil
	}

	var event invoice.ReconcileEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode reconcile event: %w", err)
	}

	return h.reconciler.Reconcile(ctx, event.ProcurementID, event.Ref)
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

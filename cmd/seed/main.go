// Package main provides a CLI tool for seeding the database with demo data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	appctx "billfold/internal/core/context"
	"billfold/internal/core/id"
	"billfold/internal/core/types"
	"billfold/internal/domain"
	"billfold/internal/domain/company"
	"billfold/internal/domain/exchange"
	"billfold/internal/domain/invoice"
	"billfold/internal/domain/procurement"
	"billfold/internal/infrastructure/numerator"
	"billfold/internal/infrastructure/storage/postgres"
	"billfold/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	companyRepo := postgres.NewCompanyRepo(txManager)
	exchangeRepo := postgres.NewExchangeRateRepo(txManager)
	invoiceRepo := postgres.NewInvoiceRepo(txManager)
	procurementRepo := postgres.NewProcurementRepo(txManager)
	numeratorService := numerator.New(pool)

	demoCompany, err := seedCompany(ctx, companyRepo, log)
	if err != nil {
		log.Fatalw("failed to seed company", "error", err)
	}

	if err := seedExchangeRates(ctx, exchangeRepo, demoCompany.ID, log); err != nil {
		log.Fatalw("failed to seed exchange rates", "error", err)
	}

	if start := os.Getenv("SEED_NUMBERING_START"); start != "" {
		// Legacy migration path: advance the counter so new numbers do
		// not collide with documents imported from the old system.
		seq := numerator.ParseSequence(ctx, start)
		cfg := demoCompany.NumberingConfig()
		if err := numeratorService.SetNextNumber(ctx, demoCompany.ID.String(), cfg, time.Now(), seq+1); err != nil {
			log.Fatalw("failed to advance numbering", "error", err)
		}
		log.Infow("numbering advanced", "from", start, "next", seq+1)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		reconciler := procurement.NewReconciler(procurementRepo, txManager)
		invoiceService := invoice.NewService(
			invoiceRepo,
			companyRepo,
			exchange.NewResolver(exchangeRepo),
			numeratorService,
			txManager,
		).WithReconciler(reconciler)

		if err := seedInvoices(ctx, invoiceService, demoCompany, log); err != nil {
			log.Fatalw("failed to seed invoices", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedCompany(ctx context.Context, repo *postgres.CompanyRepo, log *logger.Logger) (*company.Company, error) {
	existing, err := repo.List(ctx, domain.ListFilter{Search: "Acme Trading", Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(existing.Items) > 0 {
		log.Infow("company already seeded", "id", existing.Items[0].ID)
		return existing.Items[0], nil
	}

	c := company.New("Acme Trading")
	c.InvoiceNumberPrefix = "INV"
	c.DefaultCurrency = "EUR"
	c.BaseCurrency = "USD"
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, c); err != nil {
		return nil, err
	}
	log.Infow("company created", "id", c.ID, "name", c.Name)
	return c, nil
}

func seedExchangeRates(ctx context.Context, repo *postgres.ExchangeRateRepo, companyID id.ID, log *logger.Logger) error {
	now := time.Now().UTC()

	// Global rate plus a company override so the layered resolution has
	// something to resolve against.
	global := exchange.New("EUR", "USD", types.MustMoney("1.08"), now)
	if err := repo.Create(ctx, global); err != nil {
		return err
	}

	scoped := exchange.New("EUR", "USD", types.MustMoney("1.10"), now)
	scoped.CompanyID = &companyID
	if err := repo.Create(ctx, scoped); err != nil {
		return err
	}

	gbp := exchange.New("GBP", "USD", types.MustMoney("1.27"), now)
	if err := repo.Create(ctx, gbp); err != nil {
		return err
	}

	log.Info("exchange rates created")
	return nil
}

func seedInvoices(ctx context.Context, svc *invoice.Service, c *company.Company, log *logger.Logger) error {
	ctx = appctx.WithUser(ctx, &appctx.UserContext{
		EmployeeID: "seed",
		CompanyID:  c.ID.String(),
	})

	inv := invoice.New(c.ID)
	inv.Currency = "EUR"
	inv.TaxRate = types.MustMoney("20")
	inv.Items = invoice.LineItems{
		{
			Description: "Consulting services",
			Quantity:    types.NewQuantityFromFloat64(10),
			UnitPrice:   types.MustMoney("150.00"),
		},
		{
			Description: "Travel expenses",
			Quantity:    types.NewQuantityFromFloat64(1),
			UnitPrice:   types.MustMoney("420.50"),
		},
	}
	if err := svc.Create(ctx, inv); err != nil {
		return err
	}
	log.Infow("invoice created", "number", inv.Number, "total", inv.TotalAmount)

	discounted := invoice.New(c.ID)
	discounted.Currency = "GBP"
	discounted.GlobalDiscount = invoice.GlobalDiscount{
		Type:  invoice.DiscountPercentage,
		Value: types.MustMoney("10"),
	}
	discounted.Items = invoice.LineItems{
		{
			Description: "Annual license",
			Quantity:    types.NewQuantityFromFloat64(3),
			UnitPrice:   types.MustMoney("999.99"),
		},
	}
	if err := svc.Create(ctx, discounted); err != nil {
		return err
	}
	log.Infow("invoice created", "number", discounted.Number, "total", discounted.TotalAmount)

	return nil
}

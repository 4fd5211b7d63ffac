// Package company provides tenant settings consumed by the invoice
// lifecycle: numbering configuration and currency defaults.
package company

import (
	"context"
	"time"

	"billfold/internal/core/apperror"
	"billfold/internal/core/entity"
	"billfold/internal/core/numerator"
)

// Company holds per-tenant settings. Absence of the company record is
// a fatal precondition for document creation.
type Company struct {
	entity.BaseEntity

	Name string `db:"name" json:"name"`

	// Invoice numbering
	InvoiceNumberPrefix string           `db:"invoice_number_prefix" json:"invoiceNumberPrefix"`
	InvoiceNumberFormat numerator.Format `db:"invoice_number_format" json:"invoiceNumberFormat"`

	// Currency defaults
	DefaultCurrency string `db:"default_currency" json:"defaultCurrency"`
	BaseCurrency    string `db:"base_currency" json:"baseCurrency"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates a company with standard defaults (INV-YYYY-0001, USD).
func New(name string) *Company {
	now := time.Now().UTC()
	return &Company{
		BaseEntity:          entity.NewBaseEntity(),
		Name:                name,
		InvoiceNumberPrefix: "INV",
		InvoiceNumberFormat: numerator.FormatPrefixYear4,
		DefaultCurrency:     "USD",
		BaseCurrency:        "USD",
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Validate implements entity.Validatable.
func (c *Company) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if len(c.DefaultCurrency) != 3 {
		return apperror.NewValidation("defaultCurrency must be a 3-letter code").
			WithDetail("field", "defaultCurrency")
	}
	if len(c.BaseCurrency) != 3 {
		return apperror.NewValidation("baseCurrency must be a 3-letter code").
			WithDetail("field", "baseCurrency")
	}
	return nil
}

// NumberingConfig materializes the numerator configuration for this
// company's invoices.
func (c *Company) NumberingConfig() numerator.Config {
	cfg := numerator.DefaultConfig(c.InvoiceNumberPrefix)
	if cfg.Prefix == "" {
		cfg.Prefix = "INV"
	}
	if c.InvoiceNumberFormat != "" {
		cfg.Format = c.InvoiceNumberFormat
	}
	return cfg
}

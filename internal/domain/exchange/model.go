// Package exchange provides exchange rate records and the layered
// rate resolver used for invoice currency conversion.
package exchange

import (
	"context"
	"time"

	"billfold/internal/core/apperror"
	"billfold/internal/core/entity"
	"billfold/internal/core/id"
	"billfold/internal/core/types"
)

// ExchangeRate is one effective-as-of conversion rate. A nil CompanyID
// makes the rate global; company-scoped rates override global ones.
type ExchangeRate struct {
	entity.BaseEntity

	FromCurrency string      `db:"from_currency" json:"fromCurrency"`
	ToCurrency   string      `db:"to_currency" json:"toCurrency"`
	Rate         types.Money `db:"rate" json:"rate"`
	Date         time.Time   `db:"date" json:"date"`
	CompanyID    *id.ID      `db:"company_id" json:"companyId,omitempty"`
	IsActive     bool        `db:"is_active" json:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// New creates an active rate effective at date.
func New(from, to string, rate types.Money, date time.Time) *ExchangeRate {
	return &ExchangeRate{
		BaseEntity:   entity.NewBaseEntity(),
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		Date:         date.UTC(),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}

// Validate implements entity.Validatable.
func (r *ExchangeRate) Validate(ctx context.Context) error {
	if len(r.FromCurrency) != 3 {
		return apperror.NewValidation("fromCurrency must be a 3-letter code").
			WithDetail("field", "fromCurrency")
	}
	if len(r.ToCurrency) != 3 {
		return apperror.NewValidation("toCurrency must be a 3-letter code").
			WithDetail("field", "toCurrency")
	}
	if !r.Rate.IsPositive() {
		return apperror.NewValidation("rate must be positive").
			WithDetail("field", "rate")
	}
	if r.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

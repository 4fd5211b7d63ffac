package exchange

import (
	"context"
	"time"

	"billfold/internal/core/id"
	"billfold/internal/domain"
)

// Repository defines persistence operations for exchange rates.
// Find* return the most recent active rate with date <= asOf; ties are
// broken by most-recently-inserted. A nil result with nil error means
// no matching rate exists.
type Repository interface {
	Create(ctx context.Context, rate *ExchangeRate) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*ExchangeRate], error)

	FindCompanyRate(ctx context.Context, companyID id.ID, from, to string, asOf time.Time) (*ExchangeRate, error)
	FindGlobalRate(ctx context.Context, from, to string, asOf time.Time) (*ExchangeRate, error)
}

// ListFilter for filtering exchange rates.
type ListFilter struct {
	domain.ListFilter

	CompanyID    *id.ID
	FromCurrency string
	ToCurrency   string
	ActiveOnly   bool
}

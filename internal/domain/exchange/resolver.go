package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"billfold/internal/core/id"
	"billfold/internal/core/types"
	"billfold/pkg/logger"
)

// Resolver performs the layered rate lookup. Read-only and
// side-effect-free, safe under unlimited concurrency.
//
// Resolution order, first match wins:
//  1. most recent active company-scoped rate with date <= asOf
//  2. most recent active global rate with date <= asOf
//  3. 1.0 when from == to
//  4. 1.0 with a warning - a missing rate never blocks money flow
type Resolver struct {
	repo Repository
}

// NewResolver creates a rate resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

var one = decimal.NewFromInt(1)

// Resolve returns the conversion rate from -> to effective at asOf.
// Never fails: storage errors and absent rates degrade to 1.0 with a
// logged warning for later correction.
func (r *Resolver) Resolve(ctx context.Context, from, to string, companyID *id.ID, asOf time.Time) types.Money {
	if companyID != nil && !id.IsNil(*companyID) {
		rate, err := r.repo.FindCompanyRate(ctx, *companyID, from, to, asOf)
		if err != nil {
			logger.Warn(ctx, "company rate lookup failed, falling through",
				"from", from, "to", to, "company_id", companyID, "error", err)
		} else if rate != nil {
			return rate.Rate
		}
	}

	rate, err := r.repo.FindGlobalRate(ctx, from, to, asOf)
	if err != nil {
		logger.Warn(ctx, "global rate lookup failed, falling through",
			"from", from, "to", to, "error", err)
	} else if rate != nil {
		return rate.Rate
	}

	if from == to {
		return one
	}

	logger.Warn(ctx, "no exchange rate found, defaulting to 1.0",
		"from", from, "to", to, "as_of", asOf)
	return one
}

package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"billfold/internal/core/id"
	"billfold/internal/core/types"
	"billfold/internal/domain"
)

type stubRepo struct {
	companyRate *ExchangeRate
	globalRate  *ExchangeRate
	companyErr  error
	globalErr   error
}

func (r *stubRepo) Create(ctx context.Context, rate *ExchangeRate) error { return nil }

func (r *stubRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*ExchangeRate], error) {
	return domain.ListResult[*ExchangeRate]{}, nil
}

func (r *stubRepo) FindCompanyRate(ctx context.Context, companyID id.ID, from, to string, asOf time.Time) (*ExchangeRate, error) {
	return r.companyRate, r.companyErr
}

func (r *stubRepo) FindGlobalRate(ctx context.Context, from, to string, asOf time.Time) (*ExchangeRate, error) {
	return r.globalRate, r.globalErr
}

func TestResolve_CompanyRateWins(t *testing.T) {
	now := time.Now()
	companyID := id.New()
	repo := &stubRepo{
		companyRate: New("EUR", "USD", types.MustMoney("1.10"), now),
		globalRate:  New("EUR", "USD", types.MustMoney("1.08"), now),
	}

	rate := NewResolver(repo).Resolve(context.Background(), "EUR", "USD", &companyID, now)
	assert.True(t, types.MustMoney("1.10").Equal(rate))
}

func TestResolve_GlobalFallback(t *testing.T) {
	now := time.Now()
	companyID := id.New()
	repo := &stubRepo{
		globalRate: New("EUR", "USD", types.MustMoney("1.08"), now),
	}

	rate := NewResolver(repo).Resolve(context.Background(), "EUR", "USD", &companyID, now)
	assert.True(t, types.MustMoney("1.08").Equal(rate))
}

func TestResolve_NilCompanySkipsScopedLookup(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{
		companyRate: New("EUR", "USD", types.MustMoney("9.99"), now),
		globalRate:  New("EUR", "USD", types.MustMoney("1.08"), now),
	}

	rate := NewResolver(repo).Resolve(context.Background(), "EUR", "USD", nil, now)
	assert.True(t, types.MustMoney("1.08").Equal(rate))
}

func TestResolve_SameCurrencyDefaultsToOne(t *testing.T) {
	repo := &stubRepo{}

	rate := NewResolver(repo).Resolve(context.Background(), "USD", "USD", nil, time.Now())
	assert.True(t, types.MustMoney("1").Equal(rate))
}

func TestResolve_MissingRateNeverBlocks(t *testing.T) {
	repo := &stubRepo{}

	rate := NewResolver(repo).Resolve(context.Background(), "EUR", "JPY", nil, time.Now())
	assert.True(t, types.MustMoney("1").Equal(rate))
}

func TestResolve_LookupErrorsFallThrough(t *testing.T) {
	now := time.Now()
	companyID := id.New()
	repo := &stubRepo{
		companyErr: assert.AnError,
		globalRate: New("EUR", "USD", types.MustMoney("1.08"), now),
	}

	rate := NewResolver(repo).Resolve(context.Background(), "EUR", "USD", &companyID, now)
	assert.True(t, types.MustMoney("1.08").Equal(rate))

	repo.globalErr = assert.AnError
	repo.globalRate = nil
	rate = NewResolver(repo).Resolve(context.Background(), "EUR", "USD", &companyID, now)
	assert.True(t, types.MustMoney("1").Equal(rate))
}

func TestExchangeRate_Validate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, New("EUR", "USD", types.MustMoney("1.08"), now).Validate(ctx))
	assert.Error(t, New("EU", "USD", types.MustMoney("1.08"), now).Validate(ctx))
	assert.Error(t, New("EUR", "USD", types.Zero(), now).Validate(ctx))
	assert.Error(t, New("EUR", "USD", types.MustMoney("-1"), now).Validate(ctx))
}

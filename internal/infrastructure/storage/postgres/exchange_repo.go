package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"billfold/internal/core/id"
	"billfold/internal/domain"
	"billfold/internal/domain/exchange"
)

const exchangeRatesTable = "exchange_rates"

// ExchangeRateRepo implements exchange.Repository.
type ExchangeRateRepo struct {
	txManager  *TxManager
	selectCols []string
}

var _ exchange.Repository = (*ExchangeRateRepo)(nil)

// NewExchangeRateRepo creates a new exchange rate repository.
func NewExchangeRateRepo(txManager *TxManager) *ExchangeRateRepo {
	return &ExchangeRateRepo{
		txManager:  txManager,
		selectCols: ExtractDBColumns[exchange.ExchangeRate](),
	}
}

func (r *ExchangeRateRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new rate.
func (r *ExchangeRateRepo) Create(ctx context.Context, rate *exchange.ExchangeRate) error {
	data := StructToMap(rate)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	sql, args, err := r.builder().
		Insert(exchangeRatesTable).
		SetMap(filteredData).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", exchangeRatesTable, err)
	}
	return nil
}

// findRate runs the shared most-recent-rate query. Ties on the
// effective date are broken by most-recently-inserted.
func (r *ExchangeRateRepo) findRate(ctx context.Context, where squirrel.Sqlizer, asOf time.Time) (*exchange.ExchangeRate, error) {
	q := r.builder().
		Select(r.selectCols...).
		From(exchangeRatesTable).
		Where(where).
		Where(squirrel.Eq{"is_active": true}).
		Where(squirrel.LtOrEq{"date": asOf}).
		OrderBy("date DESC", "created_at DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rate := &exchange.ExchangeRate{}
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, rate, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find rate: %w", err)
	}
	return rate, nil
}

// FindCompanyRate returns the most recent active company-scoped rate.
func (r *ExchangeRateRepo) FindCompanyRate(ctx context.Context, companyID id.ID, from, to string, asOf time.Time) (*exchange.ExchangeRate, error) {
	return r.findRate(ctx, squirrel.Eq{
		"company_id":    companyID,
		"from_currency": from,
		"to_currency":   to,
	}, asOf)
}

// FindGlobalRate returns the most recent active global rate.
func (r *ExchangeRateRepo) FindGlobalRate(ctx context.Context, from, to string, asOf time.Time) (*exchange.ExchangeRate, error) {
	return r.findRate(ctx, squirrel.Eq{
		"company_id":    nil,
		"from_currency": from,
		"to_currency":   to,
	}, asOf)
}

// List retrieves rates with filtering.
func (r *ExchangeRateRepo) List(ctx context.Context, filter exchange.ListFilter) (domain.ListResult[*exchange.ExchangeRate], error) {
	result := domain.ListResult[*exchange.ExchangeRate]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder().
		Select(r.selectCols...).
		From(exchangeRatesTable)

	if filter.CompanyID != nil {
		q = q.Where(squirrel.Eq{"company_id": *filter.CompanyID})
	}
	if filter.FromCurrency != "" {
		q = q.Where(squirrel.Eq{"from_currency": filter.FromCurrency})
	}
	if filter.ToCurrency != "" {
		q = q.Where(squirrel.Eq{"to_currency": filter.ToCurrency})
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	querier := r.txManager.GetQuerier(ctx)

	countQ := r.builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy("date DESC", "created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}
	return result, nil
}

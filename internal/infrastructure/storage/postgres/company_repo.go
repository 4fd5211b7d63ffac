package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"billfold/internal/core/apperror"
	"billfold/internal/core/id"
	"billfold/internal/domain"
	"billfold/internal/domain/company"
)

const companiesTable = "companies"

// CompanyRepo implements company.Repository.
type CompanyRepo struct {
	txManager  *TxManager
	selectCols []string
}

var _ company.Repository = (*CompanyRepo)(nil)

// NewCompanyRepo creates a new company repository.
func NewCompanyRepo(txManager *TxManager) *CompanyRepo {
	return &CompanyRepo{
		txManager:  txManager,
		selectCols: ExtractDBColumns[company.Company](),
	}
}

func (r *CompanyRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new company.
func (r *CompanyRepo) Create(ctx context.Context, c *company.Company) error {
	data := StructToMap(c)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	sql, args, err := r.builder().
		Insert(companiesTable).
		SetMap(filteredData).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", companiesTable, err)
	}
	return nil
}

// GetByID retrieves a company by ID.
func (r *CompanyRepo) GetByID(ctx context.Context, companyID id.ID) (*company.Company, error) {
	sql, args, err := r.builder().
		Select(r.selectCols...).
		From(companiesTable).
		Where(squirrel.Eq{"id": companyID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	c := &company.Company{}
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("company", companyID.String())
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return c, nil
}

// Update modifies a company with optimistic locking.
func (r *CompanyRepo) Update(ctx context.Context, c *company.Company) error {
	data := StructToMap(c)

	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "created_at", "version", "updated_at":
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	sql, args, err := r.builder().
		Update(companiesTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": c.ID, "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", companiesTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("company", c.ID.String())
	}
	return nil
}

// List retrieves companies with filtering.
func (r *CompanyRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*company.Company], error) {
	result := domain.ListResult[*company.Company]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder().
		Select(r.selectCols...).
		From(companiesTable)

	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
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

	orderBy := "name"
	if s := strings.TrimSpace(filter.OrderBy); s != "" {
		orderBy = s
	}
	q = q.OrderBy(orderBy)

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

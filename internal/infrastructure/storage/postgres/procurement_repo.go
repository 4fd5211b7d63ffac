package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"billfold/internal/core/apperror"
	"billfold/internal/core/id"
	"billfold/internal/domain/procurement"
)

const procurementsTable = "procurements"

// ProcurementRepo implements procurement.Repository.
type ProcurementRepo struct {
	txManager  *TxManager
	selectCols []string
}

var _ procurement.Repository = (*ProcurementRepo)(nil)

// NewProcurementRepo creates a new procurement repository.
func NewProcurementRepo(txManager *TxManager) *ProcurementRepo {
	return &ProcurementRepo{
		txManager:  txManager,
		selectCols: ExtractDBColumns[procurement.Procurement](),
	}
}

func (r *ProcurementRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// GetByID retrieves a procurement with a row lock so concurrent
// reconciliations serialize on the same record.
func (r *ProcurementRepo) GetByID(ctx context.Context, procurementID id.ID) (*procurement.Procurement, error) {
	q := r.builder().
		Select(r.selectCols...).
		From(procurementsTable).
		Where(squirrel.Eq{"id": procurementID})

	if r.txManager.GetTx(ctx) != nil {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	p := &procurement.Procurement{}
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("procurement", procurementID.String())
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return p, nil
}

// Update persists reconciliation results with optimistic locking.
func (r *ProcurementRepo) Update(ctx context.Context, p *procurement.Procurement) error {
	data := StructToMap(p)

	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "company_id", "created_at", "version", "updated_at":
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	// Apply/Touch pre-incremented the version; match the stored one.
	sql, args, err := r.builder().
		Update(procurementsTable).
		SetMap(filteredData).
		Set("version", version).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": p.ID, "version": version - 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", procurementsTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("procurement", p.ID.String())
	}
	return nil
}

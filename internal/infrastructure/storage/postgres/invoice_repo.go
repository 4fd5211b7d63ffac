package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"billfold/internal/core/apperror"
	"billfold/internal/core/id"
	"billfold/internal/domain"
	"billfold/internal/domain/invoice"
)

const invoicesTable = "inv_invoices"

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	txManager  *TxManager
	selectCols []string
}

// Compile-time check against the domain contract.
var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txManager *TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		txManager:  txManager,
		selectCols: ExtractDBColumns[invoice.Invoice](),
	}
}

// Builder returns a new squirrel builder.
func (r *InvoiceRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *InvoiceRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(invoicesTable)
}

// Create inserts a new invoice. A lost race on the (company_id, number)
// uniqueness constraint surfaces as DUPLICATE_ENTRY so the service can
// reallocate and retry.
func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	data := StructToMap(inv)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(invoicesTable).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewDuplicate("invoice", "number", inv.Number).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", invoicesTable, err)
	}

	return nil
}

// GetByID retrieves an invoice scoped to a company.
func (r *InvoiceRepo) GetByID(ctx context.Context, companyID, invID id.ID) (*invoice.Invoice, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"company_id": companyID, "id": invID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	inv := &invoice.Invoice{}
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invID.String())
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}

	return inv, nil
}

// GetByNumber retrieves an invoice by its document number.
func (r *InvoiceRepo) GetByNumber(ctx context.Context, companyID id.ID, number string) (*invoice.Invoice, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"company_id": companyID, "number": number})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	inv := &invoice.Invoice{}
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", number)
		}
		return nil, fmt.Errorf("get by number: %w", err)
	}

	return inv, nil
}

// Update modifies an invoice with optimistic locking on the version
// column. Zero affected rows means a concurrent edit won.
func (r *InvoiceRepo) Update(ctx context.Context, inv *invoice.Invoice) error {
	data := StructToMap(inv)

	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("entity has no 'version' field or it is not an int")
	}

	// Exclude immutable and repo-managed fields
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "company_id", "created_at", "created_by", "version", "updated_at":
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	// The service pre-increments version via Touch; match against the
	// previous stored value.
	q := r.Builder().
		Update(invoicesTable).
		SetMap(filteredData).
		Set("version", version).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": inv.ID, "company_id": inv.CompanyID}).
		Where(squirrel.Eq{"version": version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", invoicesTable, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("invoice", inv.ID.String())
	}

	return nil
}

// Delete physically removes an invoice. The service only calls this
// for Drafts.
func (r *InvoiceRepo) Delete(ctx context.Context, companyID, invID id.ID) error {
	q := r.Builder().
		Delete(invoicesTable).
		Where(squirrel.Eq{"id": invID, "company_id": companyID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", invoicesTable, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("invoice", invID.String())
	}

	return nil
}

// List retrieves invoices with filtering.
func (r *InvoiceRepo) List(ctx context.Context, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	result := domain.ListResult[*invoice.Invoice]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect().
		Where(squirrel.Eq{"company_id": filter.CompanyID})

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.PaymentStatus != nil {
		q = q.Where(squirrel.Eq{"payment_status": *filter.PaymentStatus})
	}
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.OrderID != nil {
		q = q.Where(squirrel.Eq{"order_id": *filter.OrderID})
	}
	if filter.ProcurementID != nil {
		q = q.Where(squirrel.Eq{"procurement_id": *filter.ProcurementID})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"issue_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"issue_date": *filter.DateTo})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": searchPattern},
			squirrel.ILike{"notes": searchPattern},
		})
	}

	querier := r.txManager.GetQuerier(ctx)

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
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

// Stats computes the per-company aggregate grouped by status.
func (r *InvoiceRepo) Stats(ctx context.Context, companyID id.ID) (*invoice.Stats, error) {
	q := r.Builder().
		Select(
			"status",
			"COUNT(*) AS count",
			"COALESCE(SUM(total_amount), 0) AS total",
			"COALESCE(SUM(paid_amount), 0) AS paid",
		).
		From(invoicesTable).
		Where(squirrel.Eq{"company_id": companyID}).
		GroupBy("status")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats: %w", err)
	}

	var buckets []invoice.StatusBucket
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &buckets, sql, args...); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	stats := &invoice.Stats{ByStatus: buckets}
	for _, b := range buckets {
		stats.TotalCount += b.Count
		stats.TotalAmount = stats.TotalAmount.Add(b.Total)
		stats.PaidAmount = stats.PaidAmount.Add(b.Paid)
	}
	return stats, nil
}

// ListOverdueCandidates returns sent invoices past due without full
// payment, for the scheduler sweep.
func (r *InvoiceRepo) ListOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]*invoice.Invoice, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"status": invoice.StatusSent}).
		Where(squirrel.NotEq{"payment_status": invoice.PaymentPaid}).
		Where(squirrel.Lt{"due_date": asOf}).
		OrderBy("due_date").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var invoices []*invoice.Invoice
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &invoices, sql, args...); err != nil {
		return nil, fmt.Errorf("overdue candidates: %w", err)
	}
	return invoices, nil
}

// ListReminderCandidates returns unpaid sent/overdue invoices past due
// whose reminder cooldown has elapsed.
func (r *InvoiceRepo) ListReminderCandidates(ctx context.Context, asOf time.Time, cooldown time.Duration, limit int) ([]*invoice.Invoice, error) {
	cutoff := asOf.Add(-cooldown)

	q := r.baseSelect().
		Where(squirrel.Eq{"status": []invoice.Status{invoice.StatusSent, invoice.StatusOverdue}}).
		Where(squirrel.NotEq{"payment_status": invoice.PaymentPaid}).
		Where(squirrel.Lt{"due_date": asOf}).
		Where(squirrel.Or{
			squirrel.Eq{"last_reminder_date": nil},
			squirrel.LtOrEq{"last_reminder_date": cutoff},
		}).
		OrderBy("due_date").
		Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var invoices []*invoice.Invoice
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &invoices, sql, args...); err != nil {
		return nil, fmt.Errorf("reminder candidates: %w", err)
	}
	return invoices, nil
}

func (r *InvoiceRepo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("field", field)
	}

	return field + " " + direction, nil
}

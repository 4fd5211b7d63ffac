package invoice

import (
	"context"
	"time"

	"billfold/internal/core/id"
	"billfold/internal/core/types"
	"billfold/internal/domain"
)

// Repository defines persistence operations for invoices.
type Repository interface {
	// CRUD operations. Create must fail with DUPLICATE_ENTRY when the
	// (company, number) pair already exists; Update enforces
	// optimistic locking on the version column.
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, companyID, invID id.ID) (*Invoice, error)
	GetByNumber(ctx context.Context, companyID id.ID, number string) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, companyID, invID id.ID) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error)
	Stats(ctx context.Context, companyID id.ID) (*Stats, error)

	// Scheduler support: invoices past due without full payment, and
	// unpaid sent/overdue invoices eligible for a reminder.
	ListOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]*Invoice, error)
	ListReminderCandidates(ctx context.Context, asOf time.Time, cooldown time.Duration, limit int) ([]*Invoice, error)
}

// ListFilter for filtering invoices. CompanyID is mandatory: every
// query is tenant-scoped.
type ListFilter struct {
	domain.ListFilter

	CompanyID     id.ID
	Status        *Status
	PaymentStatus *PaymentStatus
	CustomerID    *id.ID
	OrderID       *id.ID
	ProcurementID *id.ID
	DateFrom      *time.Time
	DateTo        *time.Time
}

// StatusBucket is one row of the stats aggregate.
type StatusBucket struct {
	Status Status      `db:"status" json:"status"`
	Count  int64       `db:"count" json:"count"`
	Total  types.Money `db:"total" json:"total"`
	Paid   types.Money `db:"paid" json:"paid"`
}

// Stats is a lightweight per-company aggregate.
type Stats struct {
	TotalCount  int64          `json:"totalCount"`
	TotalAmount types.Money    `json:"totalAmount"`
	PaidAmount  types.Money    `json:"paidAmount"`
	ByStatus    []StatusBucket `json:"byStatus"`
}

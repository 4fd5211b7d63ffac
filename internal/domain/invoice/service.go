package invoice

import (
	"context"
	"fmt"
	"time"

	"billfold/internal/core/apperror"
	appctx "billfold/internal/core/context"
	"billfold/internal/core/id"
	"billfold/internal/core/numerator"
	"billfold/internal/core/tx"
	"billfold/internal/core/types"
	"billfold/internal/domain"
	"billfold/internal/domain/company"
	"billfold/internal/domain/exchange"
	"billfold/internal/domain/procurement"
	"billfold/pkg/logger"
)

// allocationAttempts bounds the number-allocation retry loop. The
// atomic counter makes collisions rare; retries cover counter resets
// and legacy data sharing a period.
const allocationAttempts = 3

// TopicReconcile is the outbox topic for procurement reconciliation.
const TopicReconcile = "invoice.reconcile"

// ReconcileEvent is the outbox payload relayed to the reconciler.
type ReconcileEvent struct {
	ProcurementID id.ID                  `json:"procurementId"`
	Ref           procurement.InvoiceRef `json:"ref"`
}

// ProcurementReconciler applies invoice payment facts to a linked
// procurement record. Best-effort: errors are logged, never returned
// to the invoice caller.
type ProcurementReconciler interface {
	Reconcile(ctx context.Context, procurementID id.ID, ref procurement.InvoiceRef) error
}

// Deliverer hands a finalized document to the delivery collaborator
// (email/PDF). Its failure never unwinds the transition.
type Deliverer interface {
	Deliver(ctx context.Context, inv *Invoice) error
}

// Enqueuer appends an event to the transactional outbox. When wired,
// reconciliation is relayed by the worker instead of called inline.
type Enqueuer interface {
	Enqueue(ctx context.Context, topic string, payload any) error
}

// AuditArchiver mirrors history entries to durable storage so the
// full trail survives the in-document 50-entry bound.
type AuditArchiver interface {
	Archive(ctx context.Context, companyID, invoiceID id.ID, entry AuditEntry) error
}

// Service provides business operations for invoices.
type Service struct {
	repo       Repository
	companies  company.Repository
	rates      *exchange.Resolver
	numerator  numerator.Generator
	txManager  tx.Manager
	reconciler ProcurementReconciler
	outbox     Enqueuer
	archive    AuditArchiver
	deliverer  Deliverer
	hooks      *domain.HookRegistry[*Invoice]
}

// NewService creates an invoice service. Reconciler, outbox, archive
// and deliverer are optional collaborators.
func NewService(
	repo Repository,
	companies company.Repository,
	rates *exchange.Resolver,
	gen numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		companies: companies,
		rates:     rates,
		numerator: gen,
		txManager: txManager,
		hooks:     domain.NewHookRegistry[*Invoice](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Invoice] {
	return s.hooks
}

// WithReconciler wires the procurement reconciler (direct mode).
func (s *Service) WithReconciler(r ProcurementReconciler) *Service {
	s.reconciler = r
	return s
}

// WithOutbox wires the transactional outbox (relay mode).
func (s *Service) WithOutbox(e Enqueuer) *Service {
	s.outbox = e
	return s
}

// WithArchive wires the durable audit mirror.
func (s *Service) WithArchive(a AuditArchiver) *Service {
	s.archive = a
	return s
}

// WithDeliverer wires the delivery collaborator.
func (s *Service) WithDeliverer(d Deliverer) *Service {
	s.deliverer = d
	return s
}

// Create validates, prices, numbers and persists a new Draft invoice.
// Number allocation is atomic; a lost uniqueness race is retried with
// a fresh number before surfacing ALLOCATION_CONFLICT.
func (s *Service) Create(ctx context.Context, inv *Invoice) error {
	if err := s.hooks.RunBeforeCreate(ctx, inv); err != nil {
		return err
	}

	comp, err := s.companies.GetByID(ctx, inv.CompanyID)
	if err != nil {
		return err
	}

	if inv.Currency == "" {
		inv.Currency = comp.DefaultCurrency
	}
	if inv.BaseCurrency == "" {
		inv.BaseCurrency = comp.BaseCurrency
	}
	inv.Status = StatusDraft
	if inv.PaymentStatus == "" {
		inv.PaymentStatus = PaymentUnpaid
	}
	inv.ApplyDefaults()

	if err := inv.Validate(ctx); err != nil {
		return err
	}

	inv.ExchangeRate = s.rates.Resolve(ctx, inv.Currency, inv.BaseCurrency, &inv.CompanyID, inv.IssueDate)
	inv.Recalculate()

	actor := appctx.GetEmployeeID(ctx)
	inv.CreatedBy = actor
	inv.UpdatedBy = actor
	inv.Date = inv.IssueDate

	cfg := comp.NumberingConfig()
	presetNumber := inv.Number != ""

	var lastNumber string
	for attempt := 1; attempt <= allocationAttempts; attempt++ {
		if inv.Number == "" {
			inv.Number = s.allocateNumber(ctx, cfg, inv.CompanyID, inv.IssueDate)
		}
		lastNumber = inv.Number

		if attempt == 1 {
			inv.History.Push(NewEntry(actor, ActionCreated, nil, ""))
		}

		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, inv); err != nil {
				return err
			}
			s.archiveEntry(ctx, inv, inv.History.Last())
			return nil
		})
		if err == nil {
			break
		}
		if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeDuplicate && !presetNumber {
			logger.Warn(ctx, "invoice number collision, reallocating",
				"number", inv.Number, "attempt", attempt)
			inv.Number = ""
			continue
		}
		return err
	}
	if err != nil {
		return apperror.NewAllocationConflict(lastNumber).WithCause(err)
	}

	s.reconcile(ctx, inv)

	if err := s.hooks.RunAfterCreate(ctx, inv); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "invoice created",
		"id", inv.ID,
		"number", inv.Number,
		"total", inv.TotalAmount)
	return nil
}

// allocateNumber asks the sequence allocator for the next number. An
// allocator failure must not block creation: it degrades to an opaque
// clock-derived emergency number outside the normal sequence.
func (s *Service) allocateNumber(ctx context.Context, cfg numerator.Config, companyID id.ID, period time.Time) string {
	number, err := s.numerator.GetNextNumber(ctx, companyID.String(), cfg, period)
	if err != nil {
		number = fmt.Sprintf("%s-%d", cfg.Prefix, time.Now().UnixMilli())
		logger.Error(ctx, "number allocation failed, using emergency number",
			"company_id", companyID, "number", number, "error", err)
	}
	return number
}

// GetByID retrieves an invoice scoped to a company.
func (s *Service) GetByID(ctx context.Context, companyID, invID id.ID) (*Invoice, error) {
	return s.repo.GetByID(ctx, companyID, invID)
}

// List retrieves invoices with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	return s.repo.List(ctx, filter)
}

// Stats returns the per-company totals aggregate.
func (s *Service) Stats(ctx context.Context, companyID id.ID) (*Stats, error) {
	return s.repo.Stats(ctx, companyID)
}

// GetHistory returns the bounded audit trail of an invoice.
func (s *Service) GetHistory(ctx context.Context, companyID, invID id.ID) (History, error) {
	inv, err := s.repo.GetByID(ctx, companyID, invID)
	if err != nil {
		return nil, err
	}
	return inv.History, nil
}

// Update applies field edits to a modifiable invoice, recomputes
// totals and records the diff in the audit trail.
func (s *Service) Update(ctx context.Context, inv *Invoice) error {
	if err := s.hooks.RunBeforeUpdate(ctx, inv); err != nil {
		return err
	}

	current, err := s.repo.GetByID(ctx, inv.CompanyID, inv.ID)
	if err != nil {
		return err
	}
	if err := current.CanModify(); err != nil {
		return err
	}

	inv.ApplyDefaults()
	if err := inv.Validate(ctx); err != nil {
		return err
	}

	// Lifecycle fields are not editable through Update
	inv.Number = current.Number
	inv.Status = current.Status
	inv.PaymentStatus = current.PaymentStatus
	inv.PaidAmount = current.PaidAmount
	inv.SentDate = current.SentDate
	inv.PaymentDate = current.PaymentDate
	inv.RemindersSent = current.RemindersSent
	inv.LastReminderDate = current.LastReminderDate
	inv.History = current.History
	inv.CreatedAt = current.CreatedAt
	inv.CreatedBy = current.CreatedBy

	inv.ExchangeRate = s.rates.Resolve(ctx, inv.Currency, inv.BaseCurrency, &inv.CompanyID, inv.IssueDate)
	inv.Recalculate()

	actor := appctx.GetEmployeeID(ctx)
	inv.UpdatedBy = actor
	changes := diffInvoices(current, inv)
	entry := NewEntry(actor, ActionUpdated, changes, "")
	inv.History.Push(entry)
	inv.Touch()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		s.archiveEntry(ctx, inv, &entry)
		return nil
	})
	if err != nil {
		return err
	}

	if !current.TotalAmount.Equal(inv.TotalAmount) {
		s.reconcile(ctx, inv)
	}

	if err := s.hooks.RunAfterUpdate(ctx, inv); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}
	return nil
}

// Send transitions Draft -> Sent and hands the finalized document to
// the delivery collaborator. Delivery failure is logged, not fatal.
func (s *Service) Send(ctx context.Context, companyID, invID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, companyID, invID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := inv.Status
	if err := inv.Send(now); err != nil {
		return nil, err
	}

	actor := appctx.GetEmployeeID(ctx)
	entry := NewEntry(actor, ActionSent, map[string]FieldChange{
		"status": {From: string(from), To: string(inv.Status)},
	}, "")
	inv.History.Push(entry)
	inv.UpdatedBy = actor
	inv.Touch()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		s.archiveEntry(ctx, inv, &entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.deliverer != nil {
		if err := s.deliverer.Deliver(ctx, inv); err != nil {
			logger.Error(ctx, "invoice delivery failed",
				"id", inv.ID, "number", inv.Number, "error", err)
		}
	}

	logger.Info(ctx, "invoice sent", "id", inv.ID, "number", inv.Number)
	return inv, nil
}

// RecordPayment accumulates a payment. Crossing the full-payment
// threshold forces status=Paid; reconciliation follows best-effort.
func (s *Service) RecordPayment(ctx context.Context, companyID, invID id.ID, amount types.Money, paymentRef string) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, companyID, invID)
	if err != nil {
		return nil, err
	}

	prevPaid := inv.PaidAmount
	prevStatus := inv.Status
	prevPayment := inv.PaymentStatus

	if err := inv.ApplyPayment(amount, time.Now()); err != nil {
		return nil, err
	}

	actor := appctx.GetEmployeeID(ctx)
	changes := map[string]FieldChange{
		"paidAmount":    {From: prevPaid.String(), To: inv.PaidAmount.String()},
		"paymentStatus": {From: string(prevPayment), To: string(inv.PaymentStatus)},
	}
	if prevStatus != inv.Status {
		changes["status"] = FieldChange{From: string(prevStatus), To: string(inv.Status)}
	}
	entry := NewEntry(actor, ActionPaid, changes, paymentRef)
	inv.History.Push(entry)
	inv.UpdatedBy = actor
	inv.Touch()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		s.archiveEntry(ctx, inv, &entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.reconcile(ctx, inv)

	logger.Info(ctx, "payment recorded",
		"id", inv.ID,
		"number", inv.Number,
		"amount", amount,
		"paid_total", inv.PaidAmount,
		"payment_status", inv.PaymentStatus)
	return inv, nil
}

// Cancel terminally overrides the lifecycle.
func (s *Service) Cancel(ctx context.Context, companyID, invID id.ID, reason string) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, companyID, invID)
	if err != nil {
		return nil, err
	}

	from := inv.Status
	if err := inv.Cancel(); err != nil {
		return nil, err
	}

	actor := appctx.GetEmployeeID(ctx)
	entry := NewEntry(actor, ActionStatusChanged, map[string]FieldChange{
		"status": {From: string(from), To: string(inv.Status)},
	}, reason)
	inv.History.Push(entry)
	inv.UpdatedBy = actor
	inv.Touch()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		s.archiveEntry(ctx, inv, &entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice cancelled", "id", inv.ID, "number", inv.Number, "reason", reason)
	return inv, nil
}

// Delete removes a Draft invoice. The only legal deletion path:
// non-Draft documents are never physically removed.
func (s *Service) Delete(ctx context.Context, companyID, invID id.ID) error {
	inv, err := s.repo.GetByID(ctx, companyID, invID)
	if err != nil {
		return err
	}
	if err := inv.CanDelete(); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, companyID, invID); err != nil {
		return err
	}
	logger.Info(ctx, "invoice deleted", "id", invID, "number", inv.Number)
	return nil
}

// MarkOverdue drives the scheduler-owned Sent -> Overdue transition.
// System-originated: the audit entry carries no actor.
func (s *Service) MarkOverdue(ctx context.Context, inv *Invoice) error {
	from := inv.Status
	if err := inv.MarkOverdue(); err != nil {
		return err
	}

	entry := NewEntry("", ActionStatusChanged, map[string]FieldChange{
		"status": {From: string(from), To: string(inv.Status)},
	}, "past due date")
	inv.History.Push(entry)
	inv.Touch()

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inv); err != nil {
			return err
		}
		s.archiveEntry(ctx, inv, &entry)
		return nil
	})
}

// SendReminder records reminder bookkeeping and invokes delivery.
// Bookkeeping fields stay mutable even on terminal documents.
func (s *Service) SendReminder(ctx context.Context, inv *Invoice) error {
	inv.RecordReminder(time.Now())
	inv.Touch()

	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, inv)
	}); err != nil {
		return err
	}

	if s.deliverer != nil {
		if err := s.deliverer.Deliver(ctx, inv); err != nil {
			logger.Error(ctx, "reminder delivery failed",
				"id", inv.ID, "number", inv.Number, "error", err)
		}
	}
	return nil
}

// reconcile propagates payment facts to a linked procurement. Through
// the outbox when wired, otherwise a direct logged best-effort call.
func (s *Service) reconcile(ctx context.Context, inv *Invoice) {
	if inv.ProcurementID == nil || id.IsNil(*inv.ProcurementID) {
		return
	}

	ref := procurement.InvoiceRef{
		InvoiceID: inv.ID,
		Number:    inv.Number,
		Amount:    inv.TotalAmount,
		Currency:  inv.Currency,
		Date:      inv.IssueDate,
	}

	if s.outbox != nil {
		event := ReconcileEvent{ProcurementID: *inv.ProcurementID, Ref: ref}
		if err := s.outbox.Enqueue(ctx, TopicReconcile, event); err != nil {
			logger.Error(ctx, "reconciliation enqueue failed",
				"invoice_id", inv.ID, "procurement_id", inv.ProcurementID, "error", err)
		}
		return
	}

	if s.reconciler == nil {
		return
	}
	if err := s.reconciler.Reconcile(ctx, *inv.ProcurementID, ref); err != nil {
		logger.Error(ctx, "procurement reconciliation failed",
			"invoice_id", inv.ID, "procurement_id", inv.ProcurementID, "error", err)
	}
}

// archiveEntry mirrors one history entry to durable audit storage.
// Best-effort: archive failure never fails the document write.
func (s *Service) archiveEntry(ctx context.Context, inv *Invoice, entry *AuditEntry) {
	if s.archive == nil || entry == nil {
		return
	}
	if err := s.archive.Archive(ctx, inv.CompanyID, inv.ID, *entry); err != nil {
		logger.Warn(ctx, "audit archive failed",
			"invoice_id", inv.ID, "action", entry.Action, "error", err)
	}
}

// diffInvoices records field-level changes for the audit trail.
func diffInvoices(old, new *Invoice) map[string]FieldChange {
	changes := make(map[string]FieldChange)

	if !old.DueDate.Equal(new.DueDate) {
		changes["dueDate"] = FieldChange{From: old.DueDate, To: new.DueDate}
	}
	if !old.IssueDate.Equal(new.IssueDate) {
		changes["issueDate"] = FieldChange{From: old.IssueDate, To: new.IssueDate}
	}
	if old.Currency != new.Currency {
		changes["currency"] = FieldChange{From: old.Currency, To: new.Currency}
	}
	if !old.TaxRate.Equal(new.TaxRate) {
		changes["taxRate"] = FieldChange{From: old.TaxRate.String(), To: new.TaxRate.String()}
	}
	if old.GlobalDiscount.Type != new.GlobalDiscount.Type ||
		!old.GlobalDiscount.Value.Equal(new.GlobalDiscount.Value) {
		changes["globalDiscount"] = FieldChange{
			From: fmt.Sprintf("%s %s", old.GlobalDiscount.Type, old.GlobalDiscount.Value),
			To:   fmt.Sprintf("%s %s", new.GlobalDiscount.Type, new.GlobalDiscount.Value),
		}
	}
	if len(old.Items) != len(new.Items) || !old.TotalAmount.Equal(new.TotalAmount) {
		changes["items"] = FieldChange{
			From: fmt.Sprintf("%d items, total %s", len(old.Items), old.TotalAmount),
			To:   fmt.Sprintf("%d items, total %s", len(new.Items), new.TotalAmount),
		}
	}
	if old.Notes != new.Notes {
		changes["notes"] = FieldChange{From: old.Notes, To: new.Notes}
	}
	if old.PaymentTerms != new.PaymentTerms {
		changes["paymentTerms"] = FieldChange{From: old.PaymentTerms, To: new.PaymentTerms}
	}
	return changes
}

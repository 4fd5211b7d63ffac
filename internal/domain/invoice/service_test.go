package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billfold/internal/core/apperror"
	appctx "billfold/internal/core/context"
	"billfold/internal/core/id"
	"billfold/internal/core/numerator"
	"billfold/internal/core/types"
	"billfold/internal/domain"
	"billfold/internal/domain/company"
	"billfold/internal/domain/exchange"
	"billfold/internal/domain/procurement"
)

// --- Mocks ---

type memRepo struct {
	invoices  map[id.ID]*Invoice
	numbers   map[string]bool
	createErr error // forced Create failure when set
}

func newMemRepo() *memRepo {
	return &memRepo{
		invoices: make(map[id.ID]*Invoice),
		numbers:  make(map[string]bool),
	}
}

func (r *memRepo) numberKey(companyID id.ID, number string) string {
	return companyID.String() + "/" + number
}

func (r *memRepo) Create(ctx context.Context, inv *Invoice) error {
	if r.createErr != nil {
		return r.createErr
	}
	key := r.numberKey(inv.CompanyID, inv.Number)
	if r.numbers[key] {
		return apperror.NewDuplicate("invoice", "number", inv.Number)
	}
	r.numbers[key] = true
	r.invoices[inv.ID] = inv
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, companyID, invID id.ID) (*Invoice, error) {
	inv, ok := r.invoices[invID]
	if !ok || inv.CompanyID != companyID {
		return nil, apperror.NewNotFound("invoice", invID.String())
	}
	clone := *inv
	return &clone, nil
}

func (r *memRepo) GetByNumber(ctx context.Context, companyID id.ID, number string) (*Invoice, error) {
	for _, inv := range r.invoices {
		if inv.CompanyID == companyID && inv.Number == number {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", number)
}

func (r *memRepo) Update(ctx context.Context, inv *Invoice) error {
	if _, ok := r.invoices[inv.ID]; !ok {
		return apperror.NewNotFound("invoice", inv.ID.String())
	}
	clone := *inv
	r.invoices[inv.ID] = &clone
	return nil
}

func (r *memRepo) Delete(ctx context.Context, companyID, invID id.ID) error {
	inv, ok := r.invoices[invID]
	if !ok || inv.CompanyID != companyID {
		return apperror.NewNotFound("invoice", invID.String())
	}
	delete(r.numbers, r.numberKey(companyID, inv.Number))
	delete(r.invoices, invID)
	return nil
}

func (r *memRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	result := domain.ListResult[*Invoice]{Limit: filter.Limit, Offset: filter.Offset}
	for _, inv := range r.invoices {
		if inv.CompanyID == filter.CompanyID {
			result.Items = append(result.Items, inv)
		}
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *memRepo) Stats(ctx context.Context, companyID id.ID) (*Stats, error) {
	return &Stats{}, nil
}

func (r *memRepo) ListOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]*Invoice, error) {
	return nil, nil
}

func (r *memRepo) ListReminderCandidates(ctx context.Context, asOf time.Time, cooldown time.Duration, limit int) ([]*Invoice, error) {
	return nil, nil
}

type memCompanies struct {
	companies map[id.ID]*company.Company
}

func (r *memCompanies) Create(ctx context.Context, c *company.Company) error {
	r.companies[c.ID] = c
	return nil
}

func (r *memCompanies) GetByID(ctx context.Context, companyID id.ID) (*company.Company, error) {
	c, ok := r.companies[companyID]
	if !ok {
		return nil, apperror.NewNotFound("company", companyID.String())
	}
	return c, nil
}

func (r *memCompanies) Update(ctx context.Context, c *company.Company) error { return nil }

func (r *memCompanies) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*company.Company], error) {
	return domain.ListResult[*company.Company]{}, nil
}

// fakeRateRepo serves a single fixed company-scoped rate.
type fakeRateRepo struct {
	rate *exchange.ExchangeRate
}

func (r *fakeRateRepo) Create(ctx context.Context, rate *exchange.ExchangeRate) error { return nil }

func (r *fakeRateRepo) List(ctx context.Context, filter exchange.ListFilter) (domain.ListResult[*exchange.ExchangeRate], error) {
	return domain.ListResult[*exchange.ExchangeRate]{}, nil
}

func (r *fakeRateRepo) FindCompanyRate(ctx context.Context, companyID id.ID, from, to string, asOf time.Time) (*exchange.ExchangeRate, error) {
	if r.rate != nil && r.rate.FromCurrency == from && r.rate.ToCurrency == to {
		return r.rate, nil
	}
	return nil, nil
}

func (r *fakeRateRepo) FindGlobalRate(ctx context.Context, from, to string, asOf time.Time) (*exchange.ExchangeRate, error) {
	return nil, nil
}

// noopTx runs the function without a database.
type noopTx struct{}

func (noopTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type spyReconciler struct {
	calls []procurement.InvoiceRef
	err   error
}

func (s *spyReconciler) Reconcile(ctx context.Context, procurementID id.ID, ref procurement.InvoiceRef) error {
	s.calls = append(s.calls, ref)
	return s.err
}

type spyArchiver struct {
	entries []AuditEntry
}

func (s *spyArchiver) Archive(ctx context.Context, companyID, invoiceID id.ID, entry AuditEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

type spyDeliverer struct {
	delivered int
	err       error
}

func (s *spyDeliverer) Deliver(ctx context.Context, inv *Invoice) error {
	s.delivered++
	return s.err
}

// --- Fixture ---

type fixture struct {
	service    *Service
	repo       *memRepo
	company    *company.Company
	generator  *numerator.MockGenerator
	reconciler *spyReconciler
	archiver   *spyArchiver
	deliverer  *spyDeliverer
	allocated  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	comp := company.New("Test Co")
	companies := &memCompanies{companies: map[id.ID]*company.Company{comp.ID: comp}}

	f := &fixture{
		repo:       newMemRepo(),
		company:    comp,
		reconciler: &spyReconciler{},
		archiver:   &spyArchiver{},
		deliverer:  &spyDeliverer{},
	}

	f.generator = &numerator.MockGenerator{
		GetNextNumberFunc: func(ctx context.Context, scope string, cfg numerator.Config, period time.Time) (string, error) {
			f.allocated++
			return cfg.Render(int64(f.allocated), period), nil
		},
	}

	resolver := exchange.NewResolver(&fakeRateRepo{})

	f.service = NewService(f.repo, companies, resolver, f.generator, noopTx{}).
		WithReconciler(f.reconciler).
		WithArchive(f.archiver).
		WithDeliverer(f.deliverer)
	return f
}

func userCtx(employeeID string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{EmployeeID: employeeID})
}

func (f *fixture) newInvoice() *Invoice {
	inv := New(f.company.ID)
	inv.IssueDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inv.Items = LineItems{
		{
			Description: "Widget",
			Quantity:    types.NewQuantityFromFloat64(1),
			UnitPrice:   types.MustMoney("1000"),
		},
	}
	return inv
}

// --- Tests ---

func TestServiceCreate(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))

	assert.Equal(t, "INV-2025-0001", inv.Number)
	assert.Equal(t, StatusDraft, inv.Status)
	assert.Equal(t, PaymentUnpaid, inv.PaymentStatus)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, "USD", inv.BaseCurrency)
	assert.Equal(t, "emp-1", inv.CreatedBy)
	assert.True(t, types.MustMoney("1000").Equal(inv.TotalAmount))

	require.Len(t, inv.History, 1)
	assert.Equal(t, ActionCreated, inv.History[0].Action)
	require.NotNil(t, inv.History[0].Actor)
	assert.Equal(t, "emp-1", *inv.History[0].Actor)

	// Sequence advances per document
	second := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, second))
	assert.Equal(t, "INV-2025-0002", second.Number)

	assert.Len(t, f.archiver.entries, 2)
}

func TestServiceCreate_CompanyRateApplied(t *testing.T) {
	f := newFixture(t)

	comp := company.New("Euro Co")
	comp.DefaultCurrency = "EUR"
	comp.BaseCurrency = "USD"
	companies := &memCompanies{companies: map[id.ID]*company.Company{comp.ID: comp}}

	rate := exchange.New("EUR", "USD", types.MustMoney("1.1"), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	resolver := exchange.NewResolver(&fakeRateRepo{rate: rate})

	svc := NewService(f.repo, companies, resolver, f.generator, noopTx{})

	inv := New(comp.ID)
	inv.IssueDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inv.Items = LineItems{
		{Description: "Service", Quantity: types.NewQuantityFromFloat64(1), UnitPrice: types.MustMoney("100")},
	}

	require.NoError(t, svc.Create(context.Background(), inv))

	assert.Equal(t, "EUR", inv.Currency)
	assert.True(t, types.MustMoney("1.1").Equal(inv.ExchangeRate))
	assert.True(t, types.MustMoney("110").Equal(inv.BaseCurrencyAmount))
}

func TestServiceCreate_MissingCompanyFatal(t *testing.T) {
	f := newFixture(t)

	inv := f.newInvoice()
	inv.CompanyID = id.New()

	err := f.service.Create(context.Background(), inv)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestServiceCreate_CollisionRetries(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	// Occupy the first two generated numbers
	f.repo.numbers[f.repo.numberKey(f.company.ID, "INV-2025-0001")] = true
	f.repo.numbers[f.repo.numberKey(f.company.ID, "INV-2025-0002")] = true

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))

	assert.Equal(t, "INV-2025-0003", inv.Number)
	assert.Equal(t, 3, f.allocated)
	// The created entry is pushed once, not per attempt
	assert.Len(t, inv.History, 1)
}

func TestServiceCreate_AllocationConflictAfterRetries(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = apperror.NewDuplicate("invoice", "number", "taken")

	inv := f.newInvoice()
	err := f.service.Create(userCtx("emp-1"), inv)

	require.Error(t, err)
	assert.True(t, apperror.IsAllocationConflict(err))
	assert.Equal(t, 3, f.allocated)
}

func TestServiceCreate_PresetNumberFailsFast(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	first := f.newInvoice()
	first.Number = "CUSTOM-1"
	require.NoError(t, f.service.Create(ctx, first))
	assert.Equal(t, 0, f.allocated)

	duplicate := f.newInvoice()
	duplicate.Number = "CUSTOM-1"
	err := f.service.Create(ctx, duplicate)

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	// Preset numbers are never reallocated; the duplicate surfaces as-is
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
	assert.Equal(t, 0, f.allocated)
}

func TestServiceCreate_EmergencyNumberOnAllocatorFailure(t *testing.T) {
	f := newFixture(t)
	f.generator.GetNextNumberFunc = func(ctx context.Context, scope string, cfg numerator.Config, period time.Time) (string, error) {
		return "", assert.AnError
	}

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(userCtx("emp-1"), inv))

	assert.Regexp(t, `^INV-\d+$`, inv.Number)
}

func TestServiceCreate_ReconcilesLinkedProcurement(t *testing.T) {
	f := newFixture(t)
	procID := id.New()

	inv := f.newInvoice()
	inv.ProcurementID = &procID
	require.NoError(t, f.service.Create(userCtx("emp-1"), inv))

	require.Len(t, f.reconciler.calls, 1)
	assert.Equal(t, inv.ID, f.reconciler.calls[0].InvoiceID)
	assert.True(t, inv.TotalAmount.Equal(f.reconciler.calls[0].Amount))
}

func TestServiceCreate_ReconcilerFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.reconciler.err = assert.AnError
	procID := id.New()

	inv := f.newInvoice()
	inv.ProcurementID = &procID
	require.NoError(t, f.service.Create(userCtx("emp-1"), inv))
}

func TestServiceSend(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))

	sent, err := f.service.Send(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusSent, sent.Status)
	assert.NotNil(t, sent.SentDate)
	assert.Equal(t, 1, f.deliverer.delivered)

	last := sent.History.Last()
	require.NotNil(t, last)
	assert.Equal(t, ActionSent, last.Action)
}

func TestServiceSend_DeliveryFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.deliverer.err = assert.AnError
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))

	sent, err := f.service.Send(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
}

func TestServiceRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))
	_, err := f.service.Send(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)

	partial, err := f.service.RecordPayment(ctx, f.company.ID, inv.ID, types.MustMoney("999"), "wire-001")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, partial.Status)
	assert.Equal(t, PaymentPartiallyPaid, partial.PaymentStatus)

	last := partial.History.Last()
	require.NotNil(t, last)
	assert.Equal(t, ActionPaid, last.Action)
	assert.Equal(t, "wire-001", last.Reason)

	paid, err := f.service.RecordPayment(ctx, f.company.ID, inv.ID, types.MustMoney("1"), "wire-002")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, PaymentPaid, paid.PaymentStatus)
	assert.NotNil(t, paid.PaymentDate)

	// Status change recorded alongside the payment fields
	last = paid.History.Last()
	assert.Contains(t, last.Changes, "status")
	assert.Contains(t, last.Changes, "paidAmount")
}

func TestServiceRecordPayment_OnPaidRejected(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))
	_, err := f.service.RecordPayment(ctx, f.company.ID, inv.ID, types.MustMoney("1000"), "")
	require.NoError(t, err)

	_, err = f.service.RecordPayment(ctx, f.company.ID, inv.ID, types.MustMoney("1"), "")
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, apperror.CodeIllegalTransition, appErr.Code)
}

func TestServiceUpdate_LocksLifecycleFields(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))

	edited, err := f.service.GetByID(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)
	edited.Number = "HACKED-1"
	edited.Status = StatusPaid
	edited.PaidAmount = types.MustMoney("9999")
	edited.Notes = "updated notes"
	edited.Items[0].UnitPrice = types.MustMoney("500")

	require.NoError(t, f.service.Update(ctx, edited))

	stored, err := f.service.GetByID(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, stored.Number)
	assert.Equal(t, StatusDraft, stored.Status)
	assert.True(t, stored.PaidAmount.IsZero())
	assert.Equal(t, "updated notes", stored.Notes)
	assert.True(t, types.MustMoney("500").Equal(stored.TotalAmount))

	last := stored.History.Last()
	require.NotNil(t, last)
	assert.Equal(t, ActionUpdated, last.Action)
	assert.Contains(t, last.Changes, "notes")
	assert.Contains(t, last.Changes, "items")
}

func TestServiceUpdate_PaidRejected(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))
	_, err := f.service.RecordPayment(ctx, f.company.ID, inv.ID, types.MustMoney("1000"), "")
	require.NoError(t, err)

	edited, err := f.service.GetByID(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)
	edited.Notes = "no longer editable"

	err = f.service.Update(ctx, edited)
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "Cannot update paid invoice", appErr.Message)
}

func TestServiceCancel(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))

	cancelled, err := f.service.Cancel(ctx, f.company.ID, inv.ID, "customer withdrew")
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, cancelled.Status)
	last := cancelled.History.Last()
	require.NotNil(t, last)
	assert.Equal(t, ActionStatusChanged, last.Action)
	assert.Equal(t, "customer withdrew", last.Reason)
}

func TestServiceDelete(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	draft := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, draft))
	require.NoError(t, f.service.Delete(ctx, f.company.ID, draft.ID))

	_, err := f.service.GetByID(ctx, f.company.ID, draft.ID)
	assert.True(t, apperror.IsNotFound(err))

	sent := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, sent))
	_, err = f.service.Send(ctx, f.company.ID, sent.ID)
	require.NoError(t, err)

	err = f.service.Delete(ctx, f.company.ID, sent.ID)
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "Cannot delete sent invoice", appErr.Message)
}

func TestServiceMarkOverdue_SystemActor(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))
	sent, err := f.service.Send(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.MarkOverdue(context.Background(), sent))

	assert.Equal(t, StatusOverdue, sent.Status)
	last := sent.History.Last()
	require.NotNil(t, last)
	assert.Nil(t, last.Actor)
	assert.Equal(t, "past due date", last.Reason)
}

func TestServiceGetHistory(t *testing.T) {
	f := newFixture(t)
	ctx := userCtx("emp-1")

	inv := f.newInvoice()
	require.NoError(t, f.service.Create(ctx, inv))
	_, err := f.service.Send(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)

	history, err := f.service.GetHistory(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ActionCreated, history[0].Action)
	assert.Equal(t, ActionSent, history[1].Action)
}

func TestServiceCreate_OutboxPreferredOverDirect(t *testing.T) {
	f := newFixture(t)
	enqueued := make([]any, 0)
	f.service.WithOutbox(enqueuerFunc(func(ctx context.Context, topic string, payload any) error {
		assert.Equal(t, TopicReconcile, topic)
		enqueued = append(enqueued, payload)
		return nil
	}))

	procID := id.New()
	inv := f.newInvoice()
	inv.ProcurementID = &procID
	require.NoError(t, f.service.Create(userCtx("emp-1"), inv))

	assert.Len(t, enqueued, 1)
	assert.Empty(t, f.reconciler.calls)
}

type enqueuerFunc func(ctx context.Context, topic string, payload any) error

func (f enqueuerFunc) Enqueue(ctx context.Context, topic string, payload any) error {
	return f(ctx, topic, payload)
}

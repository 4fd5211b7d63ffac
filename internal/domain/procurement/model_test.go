package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billfold/internal/core/entity"
	"billfold/internal/core/id"
	"billfold/internal/core/types"
)

func newProcurement(totalCost string) *Procurement {
	return &Procurement{
		BaseEntity: entity.NewBaseEntity(),
		CompanyID:  id.New(),
		Reference:  "PO-2026-0042",
		TotalCost:  types.MustMoney(totalCost),
	}
}

func ref(invoiceID id.ID, amount string) InvoiceRef {
	return InvoiceRef{
		InvoiceID: invoiceID,
		Number:    "INV-2026-0001",
		Amount:    types.MustMoney(amount),
		Currency:  "USD",
		Date:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestApply_Append(t *testing.T) {
	p := newProcurement("1000")

	p.Apply(ref(id.New(), "300"))
	p.Apply(ref(id.New(), "200"))

	require.Len(t, p.Invoices, 2)
	assert.Equal(t, PaymentPartial, p.PaymentStatus)
}

func TestApply_UpsertReplacesByInvoiceID(t *testing.T) {
	p := newProcurement("1000")
	invoiceID := id.New()

	p.Apply(ref(invoiceID, "300"))
	p.Apply(ref(invoiceID, "500"))

	require.Len(t, p.Invoices, 1)
	assert.True(t, types.MustMoney("500").Equal(p.Invoices[0].Amount))
	assert.Equal(t, PaymentPartial, p.PaymentStatus)
}

func TestApply_AggregatePaid(t *testing.T) {
	p := newProcurement("1000")

	p.Apply(ref(id.New(), "600"))
	p.Apply(ref(id.New(), "400"))

	assert.Equal(t, PaymentPaid, p.PaymentStatus)
}

func TestApply_OverCoverageStillPaid(t *testing.T) {
	p := newProcurement("1000")

	p.Apply(ref(id.New(), "1500"))

	assert.Equal(t, PaymentPaid, p.PaymentStatus)
}

func TestApply_ZeroSumUnpaid(t *testing.T) {
	p := newProcurement("1000")

	p.Apply(ref(id.New(), "0"))

	assert.Equal(t, PaymentUnpaid, p.PaymentStatus)
}

func TestApply_ZeroTotalCostCovered(t *testing.T) {
	// The aggregate is a bare sum >= totalCost comparison: invoicing
	// anything against a zero-cost procurement covers it.
	p := newProcurement("0")

	p.Apply(ref(id.New(), "100"))

	assert.Equal(t, PaymentPaid, p.PaymentStatus)
}

func TestInvoiceRefs_JSONBRoundTrip(t *testing.T) {
	refs := InvoiceRefs{ref(id.New(), "250.50")}

	raw, err := refs.Value()
	require.NoError(t, err)

	var decoded InvoiceRefs
	require.NoError(t, decoded.Scan(raw))

	require.Len(t, decoded, 1)
	assert.Equal(t, refs[0].InvoiceID, decoded[0].InvoiceID)
	assert.True(t, refs[0].Amount.Equal(decoded[0].Amount))
}

func TestInvoiceRefs_NilValue(t *testing.T) {
	var refs InvoiceRefs
	raw, err := refs.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), raw)
}

type memProcRepo struct {
	byID      map[id.ID]*Procurement
	updated   int
	updateErr error
}

func (r *memProcRepo) GetByID(ctx context.Context, procurementID id.ID) (*Procurement, error) {
	p, ok := r.byID[procurementID]
	if !ok {
		return nil, assert.AnError
	}
	return p, nil
}

func (r *memProcRepo) Update(ctx context.Context, p *Procurement) error {
	r.updated++
	if r.updateErr != nil {
		return r.updateErr
	}
	r.byID[p.ID] = p
	return nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestReconcile(t *testing.T) {
	p := newProcurement("1000")
	repo := &memProcRepo{byID: map[id.ID]*Procurement{p.ID: p}}
	rec := NewReconciler(repo, passthroughTx{})

	before := p.Version
	err := rec.Reconcile(context.Background(), p.ID, ref(id.New(), "1000"))

	require.NoError(t, err)
	assert.Equal(t, 1, repo.updated)
	assert.Equal(t, PaymentPaid, p.PaymentStatus)
	assert.Equal(t, before+1, p.Version)
}

func TestReconcile_MissingProcurement(t *testing.T) {
	repo := &memProcRepo{byID: map[id.ID]*Procurement{}}
	rec := NewReconciler(repo, passthroughTx{})

	err := rec.Reconcile(context.Background(), id.New(), ref(id.New(), "100"))
	require.Error(t, err)
	assert.Zero(t, repo.updated)
}

func TestReconcile_UpdateFailure(t *testing.T) {
	p := newProcurement("1000")
	repo := &memProcRepo{
		byID:      map[id.ID]*Procurement{p.ID: p},
		updateErr: assert.AnError,
	}
	rec := NewReconciler(repo, passthroughTx{})

	err := rec.Reconcile(context.Background(), p.ID, ref(id.New(), "100"))
	require.Error(t, err)
}

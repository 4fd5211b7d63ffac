// Package procurement provides the upstream procurement summary and
// the best-effort invoice reconciliation applied to it.
package procurement

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"billfold/internal/core/entity"
	"billfold/internal/core/id"
	"billfold/internal/core/types"
)

// PaymentStatus is the aggregate payment state of a procurement.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
	PaymentUnpaid  PaymentStatus = "unpaid"
)

// InvoiceRef is the compact invoice summary mirrored onto the linked
// procurement. Repeated reconciliations of the same invoice replace
// the existing ref rather than appending a duplicate.
type InvoiceRef struct {
	InvoiceID id.ID       `json:"invoiceId"`
	Number    string      `json:"number"`
	Amount    types.Money `json:"amount"`
	Currency  string      `json:"currency"`
	Date      time.Time   `json:"date"`
}

// InvoiceRefs is the JSONB-persisted list of linked invoice summaries.
type InvoiceRefs []InvoiceRef

// Scan implements sql.Scanner for PostgreSQL JSONB.
func (r *InvoiceRefs) Scan(src any) error {
	if src == nil {
		*r = nil
		return nil
	}
	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for InvoiceRefs: %T", src)
	}
	if len(source) == 0 {
		*r = nil
		return nil
	}
	return json.Unmarshal(source, r)
}

// Value implements driver.Valuer for PostgreSQL JSONB.
func (r InvoiceRefs) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Procurement is the engine's view of an upstream procurement record.
// The engine never owns its lifecycle; it only appends invoice
// summaries and recomputes the payment aggregate.
type Procurement struct {
	entity.BaseEntity

	CompanyID     id.ID         `db:"company_id" json:"companyId"`
	Reference     string        `db:"reference" json:"reference"`
	TotalCost     types.Money   `db:"total_cost" json:"totalCost"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
	Invoices      InvoiceRefs   `db:"invoices" json:"invoices"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Apply upserts an invoice summary and recomputes the aggregate
// payment status against TotalCost.
func (p *Procurement) Apply(ref InvoiceRef) {
	replaced := false
	for i := range p.Invoices {
		if p.Invoices[i].InvoiceID == ref.InvoiceID {
			p.Invoices[i] = ref
			replaced = true
			break
		}
	}
	if !replaced {
		p.Invoices = append(p.Invoices, ref)
	}

	sum := types.Zero()
	for _, inv := range p.Invoices {
		sum = sum.Add(inv.Amount)
	}

	// Bare comparison: a zero-cost procurement counts as covered once
	// the invoiced sum reaches it.
	switch {
	case sum.GreaterThanOrEqual(p.TotalCost):
		p.PaymentStatus = PaymentPaid
	case sum.IsPositive():
		p.PaymentStatus = PaymentPartial
	default:
		p.PaymentStatus = PaymentUnpaid
	}

	p.UpdatedAt = time.Now().UTC()
}

// Package invoice provides the Invoice financial document: money model,
// numbering, status lifecycle and bounded audit history.
package invoice

import (
	"context"
	"time"

	"billfold/internal/core/apperror"
	"billfold/internal/core/entity"
	"billfold/internal/core/id"
	"billfold/internal/core/types"
)

// Status is the document lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks how much of the total has been collected.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
)

// DiscountType selects how GlobalDiscount.Value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// GlobalDiscount is a document-level discount applied to the subtotal.
// Persisted as JSONB.
type GlobalDiscount struct {
	Type  DiscountType `json:"type"`
	Value types.Money  `json:"value"`
}

// LineItem is one billed position. Per-line discount and tax are
// percentages independent of the document-level discount.
type LineItem struct {
	LineID      id.ID          `json:"lineId"`
	LineNo      int            `json:"lineNo"`
	Description string         `json:"description"`
	Quantity    types.Quantity `json:"quantity"`
	UnitPrice   types.Money    `json:"unitPrice"`
	Discount    types.Money    `json:"discount"` // percent, default 0
	TaxRate     types.Money    `json:"taxRate"`  // percent, default 0
	Total       types.Money    `json:"total"`    // derived, rounded to 2 places
}

// DefaultPaymentTermDays is applied when no due date is given (Net-30).
const DefaultPaymentTermDays = 30

// Invoice is the financial document governed by the lifecycle engine.
type Invoice struct {
	entity.Document

	// Cross-references (owned by upstream workflows)
	CustomerID    *id.ID `db:"customer_id" json:"customerId,omitempty"`
	OrderID       *id.ID `db:"order_id" json:"orderId,omitempty"`
	ProcurementID *id.ID `db:"procurement_id" json:"procurementId,omitempty"`

	IssueDate time.Time `db:"issue_date" json:"issueDate"`
	DueDate   time.Time `db:"due_date" json:"dueDate"`

	// Table part, persisted as JSONB
	Items LineItems `db:"items" json:"items"`

	GlobalDiscount GlobalDiscount `db:"global_discount" json:"globalDiscount"`
	TaxRate        types.Money    `db:"tax_rate" json:"taxRate"`

	// Derived totals, always recomputed from items
	Subtotal       types.Money `db:"subtotal" json:"subtotal"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	TaxAmount      types.Money `db:"tax_amount" json:"taxAmount"`
	TotalAmount    types.Money `db:"total_amount" json:"totalAmount"`

	// Currency
	Currency           string      `db:"currency" json:"currency"`
	BaseCurrency       string      `db:"base_currency" json:"baseCurrency"`
	ExchangeRate       types.Money `db:"exchange_rate" json:"exchangeRate"`
	BaseCurrencyAmount types.Money `db:"base_currency_amount" json:"baseCurrencyAmount"`

	// Lifecycle
	Status        Status        `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
	PaidAmount    types.Money   `db:"paid_amount" json:"paidAmount"`
	SentDate      *time.Time    `db:"sent_date" json:"sentDate,omitempty"`
	PaymentDate   *time.Time    `db:"payment_date" json:"paymentDate,omitempty"`

	// Reminder bookkeeping (mutable even on terminal documents)
	RemindersSent    int        `db:"reminders_sent" json:"remindersSent"`
	LastReminderDate *time.Time `db:"last_reminder_date" json:"lastReminderDate,omitempty"`

	PaymentTerms string `db:"payment_terms" json:"paymentTerms,omitempty"`

	// Bounded audit trail, persisted as JSONB
	History History `db:"history" json:"history"`
}

// New creates a Draft invoice for a company.
func New(companyID id.ID) *Invoice {
	inv := &Invoice{
		Document:      entity.NewDocument(companyID),
		IssueDate:     time.Now().UTC(),
		Items:         make([]LineItem, 0),
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
		GlobalDiscount: GlobalDiscount{
			Type:  DiscountPercentage,
			Value: types.Zero(),
		},
		ExchangeRate: types.MustMoney("1"),
	}
	return inv
}

// ApplyDefaults fills derivable fields: Net-30 due date and line numbering.
func (inv *Invoice) ApplyDefaults() {
	if inv.IssueDate.IsZero() {
		inv.IssueDate = time.Now().UTC()
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDate(0, 0, DefaultPaymentTermDays)
	}
	for i := range inv.Items {
		if id.IsNil(inv.Items[i].LineID) {
			inv.Items[i].LineID = id.New()
		}
		inv.Items[i].LineNo = i + 1
	}
}

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}

	if len(inv.Items) == 0 {
		return apperror.NewValidation("at least one line item is required").
			WithDetail("field", "items")
	}

	for i, item := range inv.Items {
		if item.Description == "" {
			return apperror.NewValidation("item description is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return apperror.NewValidation("item unit price cannot be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
	}

	if err := validateCurrencyCode(inv.Currency); err != nil {
		return err
	}
	if inv.BaseCurrency != "" {
		if err := validateCurrencyCode(inv.BaseCurrency); err != nil {
			return err
		}
	}

	if !inv.DueDate.IsZero() && inv.DueDate.Before(inv.IssueDate) {
		return apperror.NewValidation("due date cannot be before issue date").
			WithDetail("field", "dueDate")
	}

	if inv.GlobalDiscount.Value.IsNegative() {
		return apperror.NewValidation("discount cannot be negative").
			WithDetail("field", "globalDiscount")
	}

	return nil
}

func validateCurrencyCode(code string) error {
	if len(code) != 3 {
		return apperror.NewValidation("currency must be a 3-letter code").
			WithDetail("field", "currency").
			WithDetail("value", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return apperror.NewValidation("currency must be a 3-letter code").
				WithDetail("field", "currency").
				WithDetail("value", code)
		}
	}
	return nil
}

// CanModify reports whether field edits are currently permitted.
// Paid and Cancelled documents accept only reminder/history bookkeeping.
func (inv *Invoice) CanModify() error {
	switch inv.Status {
	case StatusPaid, StatusCancelled:
		return apperror.NewBusinessRule(
			apperror.CodeIllegalTransition,
			"Cannot update "+string(inv.Status)+" invoice",
		).WithDetail("invoice_id", inv.ID.String()).
			WithDetail("status", string(inv.Status))
	}
	return nil
}

// CanDelete reports whether the document may be removed. Only Drafts may.
func (inv *Invoice) CanDelete() error {
	if inv.Status != StatusDraft {
		return apperror.NewBusinessRule(
			apperror.CodeIllegalTransition,
			"Cannot delete "+string(inv.Status)+" invoice",
		).WithDetail("invoice_id", inv.ID.String()).
			WithDetail("status", string(inv.Status))
	}
	return nil
}

// IsFullyPaid reports whether collected payments cover the total.
// Over-payment is deliberately not clamped; the comparison is >=.
func (inv *Invoice) IsFullyPaid() bool {
	return inv.PaidAmount.GreaterThanOrEqual(inv.TotalAmount)
}

// IsPastDue reports whether the invoice is past its due date at asOf
// without having been fully paid.
func (inv *Invoice) IsPastDue(asOf time.Time) bool {
	return !inv.DueDate.IsZero() && asOf.After(inv.DueDate) && !inv.IsFullyPaid()
}

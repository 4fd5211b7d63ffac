package entity

import (
	"context"
	"time"

	"billfold/internal/core/apperror"
	"billfold/internal/core/id"
)

// Document is the base type for financial documents.
// Examples: Invoice, CreditNote, PaymentReceipt.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within company)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// CompanyID is the owning company (tenant scope for every query)
	CompanyID id.ID `db:"company_id" json:"companyId"`

	// Notes is optional free-text attached by the issuer
	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument(companyID id.ID) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
		CompanyID:    companyID,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.CompanyID) {
		return apperror.NewValidation("company is required").
			WithDetail("field", "companyId")
	}

	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}

// GetID returns the document ID.
func (d *Document) GetID() id.ID {
	return d.ID
}

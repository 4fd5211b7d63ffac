package dto

import (
	"time"

	"billfold/internal/core/id"
	"billfold/internal/core/types"
	"billfold/internal/domain/invoice"
)

// --- Request DTOs ---

// CreateInvoiceRequest represents a request to create an invoice.
type CreateInvoiceRequest struct {
	Number         string             `json:"number,omitempty"`
	CustomerID     *string            `json:"customerId,omitempty"`
	OrderID        *string            `json:"orderId,omitempty"`
	ProcurementID  *string            `json:"procurementId,omitempty"`
	IssueDate      *time.Time         `json:"issueDate,omitempty"`
	DueDate        *time.Time         `json:"dueDate,omitempty"`
	Currency       string             `json:"currency,omitempty"`
	TaxRate        *types.Money       `json:"taxRate,omitempty"`
	GlobalDiscount *GlobalDiscountDTO `json:"globalDiscount,omitempty"`
	Items          []LineItemRequest  `json:"items" binding:"required,min=1,dive"`
	PaymentTerms   string             `json:"paymentTerms,omitempty"`
	Notes          string             `json:"notes,omitempty"`
}

// LineItemRequest represents a line in create/update requests.
type LineItemRequest struct {
	Description string       `json:"description" binding:"required"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
	UnitPrice   types.Money  `json:"unitPrice"`
	Discount    *types.Money `json:"discount,omitempty"` // percent
	TaxRate     *types.Money `json:"taxRate,omitempty"`  // percent
}

// GlobalDiscountDTO carries the document-level discount.
type GlobalDiscountDTO struct {
	Type  string      `json:"type" binding:"required,oneof=percentage fixed"`
	Value types.Money `json:"value"`
}

// ToEntity converts request to domain entity.
func (r *CreateInvoiceRequest) ToEntity(companyID id.ID) *invoice.Invoice {
	inv := invoice.New(companyID)
	inv.Number = r.Number
	inv.Currency = r.Currency
	inv.PaymentTerms = r.PaymentTerms
	inv.Notes = r.Notes

	if r.CustomerID != nil {
		if parsed, err := id.Parse(*r.CustomerID); err == nil {
			inv.CustomerID = &parsed
		}
	}
	if r.OrderID != nil {
		if parsed, err := id.Parse(*r.OrderID); err == nil {
			inv.OrderID = &parsed
		}
	}
	if r.ProcurementID != nil {
		if parsed, err := id.Parse(*r.ProcurementID); err == nil {
			inv.ProcurementID = &parsed
		}
	}
	if r.IssueDate != nil {
		inv.IssueDate = *r.IssueDate
	}
	if r.DueDate != nil {
		inv.DueDate = *r.DueDate
	}
	if r.TaxRate != nil {
		inv.TaxRate = *r.TaxRate
	}
	if r.GlobalDiscount != nil {
		inv.GlobalDiscount = invoice.GlobalDiscount{
			Type:  invoice.DiscountType(r.GlobalDiscount.Type),
			Value: r.GlobalDiscount.Value,
		}
	}
	inv.Items = toLineItems(r.Items)
	return inv
}

func toLineItems(lines []LineItemRequest) invoice.LineItems {
	items := make(invoice.LineItems, 0, len(lines))
	for _, line := range lines {
		item := invoice.LineItem{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		}
		if line.Discount != nil {
			item.Discount = *line.Discount
		}
		if line.TaxRate != nil {
			item.TaxRate = *line.TaxRate
		}
		items = append(items, item)
	}
	return items
}

// UpdateInvoiceRequest represents a request to update an invoice.
// Lifecycle fields (number, status, payments) are not updatable here.
type UpdateInvoiceRequest struct {
	CustomerID     *string            `json:"customerId,omitempty"`
	OrderID        *string            `json:"orderId,omitempty"`
	ProcurementID  *string            `json:"procurementId,omitempty"`
	IssueDate      *time.Time         `json:"issueDate,omitempty"`
	DueDate        *time.Time         `json:"dueDate,omitempty"`
	Currency       *string            `json:"currency,omitempty"`
	TaxRate        *types.Money       `json:"taxRate,omitempty"`
	GlobalDiscount *GlobalDiscountDTO `json:"globalDiscount,omitempty"`
	Items          []LineItemRequest  `json:"items,omitempty"`
	PaymentTerms   *string            `json:"paymentTerms,omitempty"`
	Notes          *string            `json:"notes,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateInvoiceRequest) ApplyTo(inv *invoice.Invoice) {
	if r.CustomerID != nil {
		if parsed, err := id.Parse(*r.CustomerID); err == nil {
			inv.CustomerID = &parsed
		}
	}
	if r.OrderID != nil {
		if parsed, err := id.Parse(*r.OrderID); err == nil {
			inv.OrderID = &parsed
		}
	}
	if r.ProcurementID != nil {
		if parsed, err := id.Parse(*r.ProcurementID); err == nil {
			inv.ProcurementID = &parsed
		}
	}
	if r.IssueDate != nil {
		inv.IssueDate = *r.IssueDate
	}
	if r.DueDate != nil {
		inv.DueDate = *r.DueDate
	}
	if r.Currency != nil {
		inv.Currency = *r.Currency
	}
	if r.TaxRate != nil {
		inv.TaxRate = *r.TaxRate
	}
	if r.GlobalDiscount != nil {
		inv.GlobalDiscount = invoice.GlobalDiscount{
			Type:  invoice.DiscountType(r.GlobalDiscount.Type),
			Value: r.GlobalDiscount.Value,
		}
	}
	if r.Items != nil {
		inv.Items = toLineItems(r.Items)
	}
	if r.PaymentTerms != nil {
		inv.PaymentTerms = *r.PaymentTerms
	}
	if r.Notes != nil {
		inv.Notes = *r.Notes
	}
}

// RecordPaymentRequest records a collected amount against an invoice.
type RecordPaymentRequest struct {
	Amount     types.Money `json:"amount" binding:"required"`
	PaymentRef string      `json:"paymentRef,omitempty"`
}

// CancelInvoiceRequest carries the cancellation reason.
type CancelInvoiceRequest struct {
	Reason string `json:"reason,omitempty"`
}

// --- Response DTOs ---

// LineItemResponse represents a line in API responses.
type LineItemResponse struct {
	LineID      string         `json:"lineId"`
	LineNo      int            `json:"lineNo"`
	Description string         `json:"description"`
	Quantity    types.Quantity `json:"quantity"`
	UnitPrice   types.Money    `json:"unitPrice"`
	Discount    types.Money    `json:"discount"`
	TaxRate     types.Money    `json:"taxRate"`
	Total       types.Money    `json:"total"`
}

// InvoiceResponse represents an invoice in API responses.
type InvoiceResponse struct {
	ID                 string             `json:"id"`
	Version            int                `json:"version"`
	Number             string             `json:"number"`
	CompanyID          string             `json:"companyId"`
	CustomerID         *string            `json:"customerId,omitempty"`
	OrderID            *string            `json:"orderId,omitempty"`
	ProcurementID      *string            `json:"procurementId,omitempty"`
	IssueDate          time.Time          `json:"issueDate"`
	DueDate            time.Time          `json:"dueDate"`
	Items              []LineItemResponse `json:"items"`
	GlobalDiscount     GlobalDiscountDTO  `json:"globalDiscount"`
	TaxRate            types.Money        `json:"taxRate"`
	Subtotal           types.Money        `json:"subtotal"`
	DiscountAmount     types.Money        `json:"discountAmount"`
	TaxAmount          types.Money        `json:"taxAmount"`
	TotalAmount        types.Money        `json:"totalAmount"`
	Currency           string             `json:"currency"`
	BaseCurrency       string             `json:"baseCurrency"`
	ExchangeRate       types.Money        `json:"exchangeRate"`
	BaseCurrencyAmount types.Money        `json:"baseCurrencyAmount"`
	Status             string             `json:"status"`
	PaymentStatus      string             `json:"paymentStatus"`
	PaidAmount         types.Money        `json:"paidAmount"`
	SentDate           *time.Time         `json:"sentDate,omitempty"`
	PaymentDate        *time.Time         `json:"paymentDate,omitempty"`
	RemindersSent      int                `json:"remindersSent"`
	LastReminderDate   *time.Time         `json:"lastReminderDate,omitempty"`
	PaymentTerms       string             `json:"paymentTerms,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	CreatedBy          string             `json:"createdBy,omitempty"`
	UpdatedBy          string             `json:"updatedBy,omitempty"`
}

// FromInvoice creates InvoiceResponse from the domain entity.
func FromInvoice(inv *invoice.Invoice) InvoiceResponse {
	items := make([]LineItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, LineItemResponse{
			LineID:      item.LineID.String(),
			LineNo:      item.LineNo,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			TaxRate:     item.TaxRate,
			Total:       item.Total,
		})
	}

	return InvoiceResponse{
		ID:            inv.ID.String(),
		Version:       inv.Version,
		Number:        inv.Number,
		CompanyID:     inv.CompanyID.String(),
		CustomerID:    idToString(inv.CustomerID),
		OrderID:       idToString(inv.OrderID),
		ProcurementID: idToString(inv.ProcurementID),
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Items:         items,
		GlobalDiscount: GlobalDiscountDTO{
			Type:  string(inv.GlobalDiscount.Type),
			Value: inv.GlobalDiscount.Value,
		},
		TaxRate:            inv.TaxRate,
		Subtotal:           inv.Subtotal,
		DiscountAmount:     inv.DiscountAmount,
		TaxAmount:          inv.TaxAmount,
		TotalAmount:        inv.TotalAmount,
		Currency:           inv.Currency,
		BaseCurrency:       inv.BaseCurrency,
		ExchangeRate:       inv.ExchangeRate,
		BaseCurrencyAmount: inv.BaseCurrencyAmount,
		Status:             string(inv.Status),
		PaymentStatus:      string(inv.PaymentStatus),
		PaidAmount:         inv.PaidAmount,
		SentDate:           inv.SentDate,
		PaymentDate:        inv.PaymentDate,
		RemindersSent:      inv.RemindersSent,
		LastReminderDate:   inv.LastReminderDate,
		PaymentTerms:       inv.PaymentTerms,
		Notes:              inv.Notes,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
		CreatedBy:          inv.CreatedBy,
		UpdatedBy:          inv.UpdatedBy,
	}
}

// FromInvoices converts a slice for list responses.
func FromInvoices(invs []*invoice.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, FromInvoice(inv))
	}
	return out
}

func idToString(v *id.ID) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

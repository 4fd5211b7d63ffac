package invoice

import (
	"github.com/shopspring/decimal"

	"billfold/internal/core/types"
)

// Totals holds the derived monetary fields of an invoice.
type Totals struct {
	Subtotal       types.Money
	DiscountAmount types.Money
	TaxAmount      types.Money
	TotalAmount    types.Money
}

var hundred = decimal.NewFromInt(100)

// LineTotal computes quantity * unitPrice * (1 - discount/100) rounded
// to 2 places. The per-line discount is independent of the document
// discount and is never folded into it.
func LineTotal(item LineItem) types.Money {
	gross := item.UnitPrice.Mul(item.Quantity.Decimal())
	if item.Discount.IsZero() {
		return types.Round2(gross)
	}
	factor := decimal.NewFromInt(1).Sub(item.Discount.Div(hundred))
	return types.Round2(gross.Mul(factor))
}

// ComputeTotals derives all monetary aggregates from pre-validated
// inputs. Pure function: no side effects, no failure modes.
//
// Each term is rounded before it enters the next one, so recomputing
// from the same inputs is always bit-identical.
func ComputeTotals(items []LineItem, discount GlobalDiscount, taxRate types.Money) Totals {
	subtotal := types.Zero()
	for _, item := range items {
		subtotal = subtotal.Add(LineTotal(item))
	}

	discountAmount := types.Zero()
	switch discount.Type {
	case DiscountFixed:
		discountAmount = types.Round2(discount.Value)
	case DiscountPercentage:
		if !discount.Value.IsZero() {
			discountAmount = types.Percent(subtotal, discount.Value)
		}
	}

	taxable := subtotal.Sub(discountAmount)
	taxAmount := types.Zero()
	if !taxRate.IsZero() {
		taxAmount = types.Percent(taxable, taxRate)
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		TaxAmount:      taxAmount,
		TotalAmount:    subtotal.Sub(discountAmount).Add(taxAmount),
	}
}

// Recalculate recomputes line totals, document totals and the
// base-currency amount in place.
func (inv *Invoice) Recalculate() {
	for i := range inv.Items {
		inv.Items[i].Total = LineTotal(inv.Items[i])
	}

	totals := ComputeTotals(inv.Items, inv.GlobalDiscount, inv.TaxRate)
	inv.Subtotal = totals.Subtotal
	inv.DiscountAmount = totals.DiscountAmount
	inv.TaxAmount = totals.TaxAmount
	inv.TotalAmount = totals.TotalAmount

	if inv.ExchangeRate.IsZero() {
		inv.ExchangeRate = decimal.NewFromInt(1)
	}
	inv.BaseCurrencyAmount = types.Round2(inv.TotalAmount.Mul(inv.ExchangeRate))
}

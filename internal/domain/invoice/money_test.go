package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"billfold/internal/core/types"
)

func TestLineTotal_Rounding(t *testing.T) {
	item := LineItem{
		Quantity:  types.NewQuantityFromFloat64(3),
		UnitPrice: types.MustMoney("0.335"),
	}

	// 3 * 0.335 = 1.005, rounded half away from zero
	assert.True(t, types.MustMoney("1.01").Equal(LineTotal(item)))
}

func TestLineTotal_PerLineDiscount(t *testing.T) {
	item := LineItem{
		Quantity:  types.NewQuantityFromFloat64(1),
		UnitPrice: types.MustMoney("100"),
		Discount:  types.MustMoney("10"),
	}

	assert.True(t, types.MustMoney("90").Equal(LineTotal(item)))
}

func TestComputeTotals_PercentageDiscount(t *testing.T) {
	items := []LineItem{
		{Quantity: types.NewQuantityFromFloat64(2), UnitPrice: types.MustMoney("30")},
		{Quantity: types.NewQuantityFromFloat64(4), UnitPrice: types.MustMoney("10")},
	}
	discount := GlobalDiscount{Type: DiscountPercentage, Value: types.MustMoney("10")}

	totals := ComputeTotals(items, discount, types.MustMoney("20"))

	assert.True(t, types.MustMoney("100").Equal(totals.Subtotal))
	assert.True(t, types.MustMoney("10").Equal(totals.DiscountAmount))
	// Tax applies to the discounted subtotal: 20% of 90
	assert.True(t, types.MustMoney("18").Equal(totals.TaxAmount))
	assert.True(t, types.MustMoney("108").Equal(totals.TotalAmount))
}

func TestComputeTotals_FixedDiscount(t *testing.T) {
	items := []LineItem{
		{Quantity: types.NewQuantityFromFloat64(1), UnitPrice: types.MustMoney("200")},
	}
	discount := GlobalDiscount{Type: DiscountFixed, Value: types.MustMoney("15.5")}

	totals := ComputeTotals(items, discount, types.Zero())

	assert.True(t, types.MustMoney("15.50").Equal(totals.DiscountAmount))
	assert.True(t, types.MustMoney("184.50").Equal(totals.TotalAmount))
	assert.True(t, totals.TaxAmount.IsZero())
}

func TestComputeTotals_NoDiscountNoTax(t *testing.T) {
	items := []LineItem{
		{Quantity: types.NewQuantityFromFloat64(1.5), UnitPrice: types.MustMoney("99.99")},
	}

	totals := ComputeTotals(items, GlobalDiscount{Type: DiscountPercentage}, types.Zero())

	// 1.5 * 99.99 = 149.985 -> 149.99
	assert.True(t, types.MustMoney("149.99").Equal(totals.Subtotal))
	assert.True(t, totals.Subtotal.Equal(totals.TotalAmount))
}

func TestRecalculate_BaseCurrencyAmount(t *testing.T) {
	inv := New(testCompanyID())
	inv.Items = LineItems{
		{Quantity: types.NewQuantityFromFloat64(1), UnitPrice: types.MustMoney("108")},
	}
	inv.ExchangeRate = types.MustMoney("1.1")

	inv.Recalculate()

	assert.True(t, types.MustMoney("108").Equal(inv.TotalAmount))
	assert.True(t, types.MustMoney("118.80").Equal(inv.BaseCurrencyAmount))
}

func TestRecalculate_ZeroRateDefaultsToOne(t *testing.T) {
	inv := New(testCompanyID())
	inv.Items = LineItems{
		{Quantity: types.NewQuantityFromFloat64(2), UnitPrice: types.MustMoney("50")},
	}
	inv.ExchangeRate = types.Zero()

	inv.Recalculate()

	assert.True(t, types.MustMoney("1").Equal(inv.ExchangeRate))
	assert.True(t, types.MustMoney("100").Equal(inv.BaseCurrencyAmount))
}

func TestRecalculate_Stable(t *testing.T) {
	inv := New(testCompanyID())
	inv.Items = LineItems{
		{Quantity: types.NewQuantityFromFloat64(3), UnitPrice: types.MustMoney("0.335")},
		{Quantity: types.NewQuantityFromFloat64(7), UnitPrice: types.MustMoney("14.285")},
	}
	inv.GlobalDiscount = GlobalDiscount{Type: DiscountPercentage, Value: types.MustMoney("7.5")}
	inv.TaxRate = types.MustMoney("19")

	inv.Recalculate()
	first := inv.TotalAmount

	// Recomputing from the stored lines must be bit-identical
	inv.Recalculate()
	assert.True(t, first.Equal(inv.TotalAmount))
	assert.Equal(t, first.String(), inv.TotalAmount.String())
}

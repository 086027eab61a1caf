package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fjod/storefront/internal/domain"
)

func line(price float64, qty int) domain.CartLine {
	return domain.CartLine{SKU: "SKU-1", Name: "Item", Price: price, Qty: qty, MaxQty: 10}
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), field)
}

func TestCalculate_EmptyCartPaysFlatShipping(t *testing.T) {
	totals := Calculate(nil)

	assertAmount(t, "0.00", totals.Subtotal, "subtotal")
	assertAmount(t, "0.00", totals.Tax, "tax")
	assertAmount(t, "6.00", totals.Shipping, "shipping")
	assertAmount(t, "6.00", totals.Total, "total")
	assertAmount(t, "60.00", totals.FreeShippingRemaining, "remaining")
	assert.False(t, totals.FreeShipping())
}

func TestCalculate_BelowThreshold(t *testing.T) {
	totals := Calculate([]domain.CartLine{line(25.00, 2)})

	assertAmount(t, "50.00", totals.Subtotal, "subtotal")
	assertAmount(t, "6.50", totals.Tax, "tax")
	assertAmount(t, "6.00", totals.Shipping, "shipping")
	assertAmount(t, "62.50", totals.Total, "total")
	assertAmount(t, "10.00", totals.FreeShippingRemaining, "remaining")
}

func TestCalculate_AtOrAboveThresholdShipsFree(t *testing.T) {
	totals := Calculate([]domain.CartLine{line(25.00, 3)})

	assertAmount(t, "75.00", totals.Subtotal, "subtotal")
	assertAmount(t, "9.75", totals.Tax, "tax")
	assertAmount(t, "0.00", totals.Shipping, "shipping")
	assertAmount(t, "84.75", totals.Total, "total")
	assertAmount(t, "0.00", totals.FreeShippingRemaining, "remaining")
	assert.True(t, totals.FreeShipping())

	exact := Calculate([]domain.CartLine{line(30.00, 2)})
	assertAmount(t, "0.00", exact.Shipping, "shipping at threshold")
}

func TestCalculate_RoundsHalfUp(t *testing.T) {
	// tax = 0.065 exactly; half-even would give 0.06
	totals := Calculate([]domain.CartLine{line(0.50, 1)})

	assertAmount(t, "0.07", totals.Tax, "tax")
	assertAmount(t, "6.57", totals.Total, "total")
}

func TestCalculate_RoundsOnlyAtTheEnd(t *testing.T) {
	// 3 x 19.99 = 59.97, tax 7.7961, total 73.7661
	totals := Calculate([]domain.CartLine{line(19.99, 3)})

	assertAmount(t, "59.97", totals.Subtotal, "subtotal")
	assertAmount(t, "7.80", totals.Tax, "tax")
	assertAmount(t, "73.77", totals.Total, "total")
}

func TestCalculate_MultipleLinesAvoidFloatDrift(t *testing.T) {
	totals := Calculate([]domain.CartLine{line(0.10, 1), line(0.20, 1)})

	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("0.3")))
}

func TestCalculate_IsDeterministic(t *testing.T) {
	lines := []domain.CartLine{line(12.34, 2), line(5.55, 7)}

	first := Calculate(lines)
	Calculate([]domain.CartLine{line(999, 1)})
	second := Calculate(lines)

	assert.True(t, first.Total.Equal(second.Total))
	assert.True(t, first.Tax.Equal(second.Tax))
}

func TestCalculateTotals_CustomPolicy(t *testing.T) {
	policy := Policy{
		TaxRate:               decimal.Zero,
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingFlat:          decimal.RequireFromString("4.99"),
	}

	totals := CalculateTotals([]domain.CartLine{line(10, 1)}, policy)

	assertAmount(t, "0.00", totals.Tax, "tax")
	assertAmount(t, "4.99", totals.Shipping, "shipping")
	assertAmount(t, "14.99", totals.Total, "total")
}

func TestToCents(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{19.99, 1999},
		{0.29, 29},
		{1.005, 101},
		{25, 2500},
		{0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToCents(tt.in), "%v", tt.in)
	}
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, "19.99", FromCents(1999).StringFixed(2))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$0.00", FormatUSD(decimal.Zero))
	assert.Equal(t, "$62.50", FormatUSD(decimal.RequireFromString("62.5")))
	assert.Equal(t, "$1,234,567.89", FormatUSD(decimal.RequireFromString("1234567.891")))
	assert.Equal(t, "-$3.00", FormatUSD(decimal.NewFromInt(-3)))
	assert.Equal(t, "$1,000.00", FormatUSD(decimal.RequireFromString("999.995")))
	assert.Equal(t, "-$12,345.68", FormatUSD(decimal.RequireFromString("-12345.675")))
}

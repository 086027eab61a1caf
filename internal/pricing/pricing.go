// Package pricing turns cart lines into a totals breakdown.
//
// Amounts are computed with exact decimals and rounded to cents once, at the
// end, using round-half-up (away from zero). All amounts are non-negative so
// half-up and half-away-from-zero coincide.
package pricing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/fjod/storefront/internal/domain"
)

const centsPlaces = 2

var hundred = decimal.NewFromInt(100)

// Policy is the fixed tax and shipping policy applied to a cart.
type Policy struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	ShippingFlat          decimal.Decimal
}

// DefaultPolicy is 13% tax, free shipping from 60, otherwise a flat 6.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:               decimal.RequireFromString("0.13"),
		FreeShippingThreshold: decimal.NewFromInt(60),
		ShippingFlat:          decimal.NewFromInt(6),
	}
}

// Totals is the derived cart: its lines plus the monetary breakdown.
type Totals struct {
	Lines    []domain.CartLine
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal

	// FreeShippingRemaining is how much more subtotal qualifies for free shipping.
	FreeShippingRemaining decimal.Decimal
}

// FreeShipping reports whether the cart ships for free.
func (t Totals) FreeShipping() bool {
	return t.Shipping.IsZero()
}

// Calculate applies DefaultPolicy.
func Calculate(lines []domain.CartLine) Totals {
	return CalculateTotals(lines, DefaultPolicy())
}

// CalculateTotals is pure: the result depends only on lines and policy.
func CalculateTotals(lines []domain.CartLine, policy Policy) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		lineTotal := decimal.NewFromFloat(line.Price).Mul(decimal.NewFromInt(int64(line.Qty)))
		subtotal = subtotal.Add(lineTotal)
	}

	tax := subtotal.Mul(policy.TaxRate)

	shipping := policy.ShippingFlat
	if subtotal.GreaterThanOrEqual(policy.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	total := subtotal.Add(tax).Add(shipping)

	remaining := policy.FreeShippingThreshold.Sub(subtotal)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return Totals{
		Lines:                 lines,
		Subtotal:              round(subtotal),
		Tax:                   round(tax),
		Shipping:              round(shipping),
		Total:                 round(total),
		FreeShippingRemaining: round(remaining),
	}
}

// ToCents converts a currency amount to integer minor units, e.g. 19.99 -> 1999.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units back to a currency amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -centsPlaces)
}

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatUSD renders an amount as "$1,234.50".
func FormatUSD(amount decimal.Decimal) string {
	amount = round(amount)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + "$" + usdPrinter.Sprint(number.Decimal(amount.Abs().InexactFloat64(), number.Scale(centsPlaces)))
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(centsPlaces)
}

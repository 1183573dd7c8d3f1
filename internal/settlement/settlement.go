// Package settlement owns the cart-to-money math: line totals, the cart
// settlement, and the rounding rule every other package defers to.
//
// Rounding rule: arithmetic runs in full decimal precision; only subtotal and
// grand total are rounded (half away from zero, 2 places) and the discount
// total is defined as their difference. That keeps
//
//	subtotal - discount_total == grand_total
//
// exact after rounding, which is the property the backend reconciles against.
// A cart of (1×50.00, 0%) + (3×33.33, 50%) therefore settles to subtotal
// 149.99, grand total 100.00, discount total 49.99.
package settlement

import (
	"github.com/shopspring/decimal"

	"warunglink/terminal/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// LineTotals returns the full-precision gross amount, discount amount, and
// discounted total for one cart line. It is the single source both the
// settlement and the per-item submission breakdown derive from, so the two
// can never drift.
func LineTotals(line domain.LineItem) (gross, discount, net decimal.Decimal) {
	qty := decimal.NewFromInt(int64(line.Quantity))
	gross = qty.Mul(line.UnitPrice)
	discount = gross.Mul(line.DiscountPercent).Div(hundred)
	net = gross.Sub(discount)
	return gross, discount, net
}

// Round2 applies the repository-wide rounding rule: half away from zero to
// two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Compute maps a cart plus tendered payment to a Settlement. Pure and
// idempotent: identical inputs yield identical outputs, no hidden state.
// A negative amountPaid is treated as zero.
func Compute(lines []domain.LineItem, amountPaid decimal.Decimal) domain.Settlement {
	subtotal := decimal.Zero
	grand := decimal.Zero
	for _, line := range lines {
		gross, _, net := LineTotals(line)
		subtotal = subtotal.Add(gross)
		grand = grand.Add(net)
	}

	subtotal = Round2(subtotal)
	grand = Round2(grand)

	if amountPaid.IsNegative() {
		amountPaid = decimal.Zero
	}
	paid := Round2(amountPaid)

	change := decimal.Zero
	due := decimal.Zero
	if paid.GreaterThan(grand) {
		change = paid.Sub(grand)
	} else {
		due = grand.Sub(paid)
	}

	return domain.Settlement{
		Subtotal:      subtotal,
		DiscountTotal: subtotal.Sub(grand),
		GrandTotal:    grand,
		AmountPaid:    paid,
		AmountChange:  change,
		Due:           due,
	}
}

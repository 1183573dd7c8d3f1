// Package order assembles the submission payload for the platform's
// order-creation endpoint. It constructs and validates only; the network
// call belongs to the upstream client.
package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"warunglink/terminal/internal/domain"
	"warunglink/terminal/internal/settlement"
)

var (
	ErrEmptyCart             = fmt.Errorf("%w: cart has no items", domain.ErrValidation)
	ErrPaymentMethodRequired = fmt.Errorf("%w: payment method is required", domain.ErrValidation)
)

// DiscountTypePercentage is the only discount type the terminal produces;
// the backend keeps the field an enum.
const DiscountTypePercentage = "percentage"

// Build maps the cart lines plus their computed settlement into the wire
// payload. The per-item breakdown re-derives each line from the same
// settlement.LineTotals helper the aggregate used; any cent of drift between
// the per-line rounding and the aggregate-first totals is folded into the
// last line so the breakdown sums reproduce the settlement exactly. The
// customer phone number passes through untouched; validating it is the
// operator form's business.
func Build(shopID int64, lines []domain.LineItem, s domain.Settlement, customer domain.CustomerInfo, payment domain.PaymentMeta) (domain.TransactionPayload, error) {
	if len(lines) == 0 {
		return domain.TransactionPayload{}, ErrEmptyCart
	}
	if strings.TrimSpace(payment.Method) == "" {
		return domain.TransactionPayload{}, ErrPaymentMethodRequired
	}

	items := make([]domain.ItemBreakdown, 0, len(lines))
	sumDiscount := decimal.Zero
	sumNet := decimal.Zero
	for _, line := range lines {
		_, discount, net := settlement.LineTotals(line)
		roundedDiscount := settlement.Round2(discount)
		roundedNet := settlement.Round2(net)
		sumDiscount = sumDiscount.Add(roundedDiscount)
		sumNet = sumNet.Add(roundedNet)
		items = append(items, domain.ItemBreakdown{
			ProductStockID:        line.StockID,
			Quantity:              line.Quantity,
			DiscountType:          DiscountTypePercentage,
			DiscountTotal:         roundedDiscount,
			TotalDiscountedAmount: roundedNet,
		})
	}

	// Half-cent lines round up individually while the aggregate rounds once;
	// the last line absorbs the difference.
	last := len(items) - 1
	items[last].DiscountTotal = items[last].DiscountTotal.Add(s.DiscountTotal.Sub(sumDiscount))
	items[last].TotalDiscountedAmount = items[last].TotalDiscountedAmount.Add(s.GrandTotal.Sub(sumNet))

	return domain.TransactionPayload{
		ShopID:              shopID,
		CustomerPhoneNumber: customer.PhoneNumber,
		CustomerName:        customer.Name,
		Note:                customer.Note,
		PaymentMethod:       payment.Method,
		Subtotal:            s.Subtotal,
		DiscountTotal:       s.DiscountTotal,
		GrandTotal:          s.GrandTotal,
		AmountPaid:          s.AmountPaid,
		AmountChange:        s.AmountChange,
		Due:                 s.Due,
		Items:               items,
	}, nil
}

package totals

import (
	"github.com/shopspring/decimal"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
)

// Calculate sums exactly and converts to float64 only at the end. No
// rounding to currency precision happens here.
func Calculate(items []domain.LineItem, defaultTaxRate float64) domain.Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero

	for _, item := range items {
		line := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		rate := defaultTaxRate
		if item.TaxRate != nil {
			rate = *item.TaxRate
		}
		subtotal = subtotal.Add(line)
		tax = tax.Add(line.Mul(decimal.NewFromFloat(rate)))
	}

	return domain.Totals{
		Subtotal: subtotal.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Total:    subtotal.Add(tax).InexactFloat64(),
	}
}

func CheckCashPayment(total float64, received float64) error {
	if decimal.NewFromFloat(received).LessThan(decimal.NewFromFloat(total)) {
		return apperror.InsufficientPayment(total, received)
	}
	return nil
}

// Change is only handed back for cash; card and mobile settle the exact total.
func Change(method string, total float64, received float64) float64 {
	if method != domain.PaymentCash {
		return 0
	}
	change := decimal.NewFromFloat(received).Sub(decimal.NewFromFloat(total))
	if change.IsNegative() {
		return 0
	}
	return change.InexactFloat64()
}

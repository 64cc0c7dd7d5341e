package totals

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
)

func rate(v float64) *float64 { return &v }

func TestCalculateScenarioA(t *testing.T) {
	items := []domain.LineItem{{ID: "p-1", Name: "Teh", UnitPrice: 10, Quantity: 2, TaxRate: rate(0.15)}}

	got := Calculate(items, 0)

	assert.Equal(t, 20.0, got.Subtotal)
	assert.Equal(t, 3.0, got.Tax)
	assert.Equal(t, 23.0, got.Total)
	assert.NoError(t, CheckCashPayment(got.Total, 25))
	assert.Equal(t, 2.0, Change(domain.PaymentCash, got.Total, 25))
}

func TestCashPaymentShortfallScenarioB(t *testing.T) {
	err := CheckCashPayment(23, 20)

	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, apperror.RuleInsufficientPayment, verr.Rule)
	assert.Equal(t, 23.0, *verr.Required)
	assert.Equal(t, 20.0, *verr.Received)
}

func TestDefaultTaxRateAppliesOnlyWhenItemOmitsOne(t *testing.T) {
	items := []domain.LineItem{
		{ID: "a", Name: "A", UnitPrice: 100, Quantity: 1},
		{ID: "b", Name: "B", UnitPrice: 100, Quantity: 1, TaxRate: rate(0)},
	}

	got := Calculate(items, 0.11)

	assert.Equal(t, 200.0, got.Subtotal)
	assert.InDelta(t, 11.0, got.Tax, 1e-9)
	assert.InDelta(t, 211.0, got.Total, 1e-9)
}

func TestChangeIsZeroForNonCash(t *testing.T) {
	assert.Equal(t, 0.0, Change(domain.PaymentCard, 23, 50))
	assert.Equal(t, 0.0, Change(domain.PaymentMobile, 23, 23))
	assert.Equal(t, 0.0, Change(domain.PaymentCash, 23, 20))
}

func TestTotalEqualsSubtotalPlusTax(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(8)
		items := make([]domain.LineItem, 0, n)
		wantSubtotal, wantTax := 0.0, 0.0
		for j := 0; j < n; j++ {
			item := domain.LineItem{
				ID:        "p",
				Name:      "p",
				UnitPrice: float64(1+rng.Intn(100000)) / 100,
				Quantity:  1 + rng.Intn(20),
				TaxRate:   rate(float64(rng.Intn(101)) / 100),
			}
			items = append(items, item)
			line := item.UnitPrice * float64(item.Quantity)
			wantSubtotal += line
			wantTax += line * *item.TaxRate
		}

		got := Calculate(items, 0.15)

		assert.InDelta(t, got.Subtotal+got.Tax, got.Total, 1e-6)
		assert.InDelta(t, wantSubtotal, got.Subtotal, 1e-6)
		assert.InDelta(t, wantTax, got.Tax, 1e-6)
	}
}

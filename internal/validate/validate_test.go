package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
)

func amount(v float64) *float64 { return &v }

func validItem() domain.LineItem {
	return domain.LineItem{ID: "p-1", Name: "Mie Goreng", UnitPrice: 3500, Quantity: 1}
}

func validRequest() domain.SaleRequest {
	return domain.SaleRequest{
		Items:           []domain.LineItem{validItem()},
		PaymentMethod:   domain.PaymentCash,
		PaymentReceived: amount(5000),
	}
}

func requireRule(t *testing.T, err error, rule apperror.Rule) *apperror.ValidationError {
	t.Helper()
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, rule, verr.Rule, "message: %s", verr.Message)
	return verr
}

func TestValidRequestPasses(t *testing.T) {
	v := New(Rules{MaxBasketItems: 10})
	assert.NoError(t, v.Validate(validRequest()))
}

func TestBasketRules(t *testing.T) {
	v := New(Rules{MaxBasketItems: 2})

	req := validRequest()
	req.Items = nil
	requireRule(t, v.Validate(req), apperror.RuleBasket)

	req = validRequest()
	req.Items = []domain.LineItem{validItem(), validItem(), validItem()}
	requireRule(t, v.Validate(req), apperror.RuleBasket)
}

func TestItemRulesNameFieldAndLine(t *testing.T) {
	v := New(Rules{MaxBasketItems: 10})

	cases := []struct {
		name   string
		mutate func(*domain.LineItem)
		field  string
	}{
		{"missing id", func(it *domain.LineItem) { it.ID = "  " }, "id"},
		{"missing name", func(it *domain.LineItem) { it.Name = "" }, "name"},
		{"zero price", func(it *domain.LineItem) { it.UnitPrice = 0 }, "unit_price"},
		{"negative quantity", func(it *domain.LineItem) { it.Quantity = -1 }, "quantity"},
		{"tax above one", func(it *domain.LineItem) { it.TaxRate = amount(1.5) }, "tax_rate"},
		{"infinite price", func(it *domain.LineItem) { it.UnitPrice = math.Inf(1) }, "unit_price"},
		{"nan price", func(it *domain.LineItem) { it.UnitPrice = math.NaN() }, "unit_price"},
		{"nan tax", func(it *domain.LineItem) { it.TaxRate = amount(math.NaN()) }, "tax_rate"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := validItem()
			tc.mutate(&bad)
			req := validRequest()
			req.Items = []domain.LineItem{validItem(), bad}

			verr := requireRule(t, v.Validate(req), apperror.RuleItem)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, 2, verr.Line)
		})
	}
}

func TestTaxRateIsOptional(t *testing.T) {
	v := New(Rules{})
	req := validRequest()
	req.Items[0].TaxRate = nil
	assert.NoError(t, v.Validate(req))

	req.Items[0].TaxRate = amount(0)
	assert.NoError(t, v.Validate(req))
}

func TestPaymentRules(t *testing.T) {
	v := New(Rules{MinPayment: 1})

	req := validRequest()
	req.PaymentMethod = ""
	requireRule(t, v.Validate(req), apperror.RulePaymentMethod)

	req = validRequest()
	req.PaymentMethod = "crypto"
	requireRule(t, v.Validate(req), apperror.RulePaymentMethod)

	req = validRequest()
	req.PaymentReceived = nil
	requireRule(t, v.Validate(req), apperror.RulePaymentAmount)

	req = validRequest()
	req.PaymentReceived = amount(0.5)
	requireRule(t, v.Validate(req), apperror.RulePaymentAmount)
}

func TestPrecedenceOnMultipleViolations(t *testing.T) {
	v := New(Rules{MaxBasketItems: 5, MinPayment: 1})

	bad := validItem()
	bad.Quantity = 0

	// Every rule is violated: the basket rule must surface first.
	req := domain.SaleRequest{}
	requireRule(t, v.Validate(req), apperror.RuleBasket)

	// Item, method and amount violated: item first.
	req = domain.SaleRequest{Items: []domain.LineItem{bad}}
	requireRule(t, v.Validate(req), apperror.RuleItem)

	// Method and amount violated: method first.
	req = domain.SaleRequest{Items: []domain.LineItem{validItem()}}
	requireRule(t, v.Validate(req), apperror.RulePaymentMethod)

	// Only the amount remains.
	req.PaymentMethod = domain.PaymentCard
	requireRule(t, v.Validate(req), apperror.RulePaymentAmount)
}

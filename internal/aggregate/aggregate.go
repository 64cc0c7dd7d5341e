// Package aggregate maintains the per-tenant, per-day sales summary. The
// summary is a cache of the transaction log: Derive rebuilds it from
// committed transactions and Reconcile compares the two.
package aggregate

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
	"kasirinaja/salecore/internal/keys"
	"kasirinaja/salecore/internal/kv"
)

const tolerance = 1e-6

// TransactionLister is the slice of the transaction store Reconcile needs.
type TransactionLister interface {
	ListForDate(ctx context.Context, ns keys.Namespace, date string) (domain.TransactionList, error)
}

type Aggregator struct {
	store  kv.Store
	logger zerolog.Logger
	now    func() time.Time
}

func New(store kv.Store, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger.With().Str("component", "aggregate").Logger(),
		now:    time.Now,
	}
}

// ApplySale adds one committed sale to the day's summary with a single
// read-modify-write.
func (a *Aggregator) ApplySale(ctx context.Context, ns keys.Namespace, date string, totals domain.Totals, method string) (domain.DailySalesSummary, error) {
	summary, err := a.Get(ctx, ns, date)
	if err != nil {
		return domain.DailySalesSummary{}, err
	}

	add(&summary, totals, method)
	updatedAt := a.now().UTC()
	summary.UpdatedAt = &updatedAt

	if err := kv.SetJSON(ctx, a.store, ns.DailySales(date), summary); err != nil {
		return domain.DailySalesSummary{}, apperror.Persistence("write daily summary", err)
	}
	return summary, nil
}

// Get returns the stored summary or a zeroed one when no sale was recorded
// for the date yet.
func (a *Aggregator) Get(ctx context.Context, ns keys.Namespace, date string) (domain.DailySalesSummary, error) {
	summary := zero(ns, date)
	found, err := kv.GetJSON(ctx, a.store, ns.DailySales(date), &summary)
	if err != nil {
		return domain.DailySalesSummary{}, apperror.Persistence("read daily summary", err)
	}
	if !found {
		return zero(ns, date), nil
	}
	summary.Date = date
	summary.TenantID = ns.Tenant()
	return summary, nil
}

// Derive rebuilds a summary from committed transactions.
func Derive(ns keys.Namespace, date string, transactions []domain.Transaction) domain.DailySalesSummary {
	summary := zero(ns, date)
	for _, tx := range transactions {
		add(&summary, domain.Totals{Subtotal: tx.Subtotal, Tax: tx.Tax, Total: tx.Total}, tx.PaymentMethod)
	}
	return summary
}

func (a *Aggregator) Reconcile(ctx context.Context, ns keys.Namespace, date string, lister TransactionLister) (domain.Reconciliation, error) {
	stored, err := a.Get(ctx, ns, date)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	list, err := lister.ListForDate(ctx, ns, date)
	if err != nil {
		return domain.Reconciliation{}, err
	}

	derived := Derive(ns, date, list.Transactions)
	result := domain.Reconciliation{
		Date:       date,
		TenantID:   ns.Tenant(),
		Stored:     stored,
		Derived:    derived,
		Consistent: Equivalent(stored, derived),
	}
	if !result.Consistent {
		a.logger.Warn().
			Str("tenant", ns.Tenant()).
			Str("date", date).
			Float64("stored_sales", stored.TotalSales).
			Float64("derived_sales", derived.TotalSales).
			Int("stored_transactions", stored.TotalTransactions).
			Int("derived_transactions", derived.TotalTransactions).
			Msg("daily summary drifted from transaction log")
	}
	return result, nil
}

// Equivalent compares the accumulated figures, ignoring bookkeeping fields.
func Equivalent(a domain.DailySalesSummary, b domain.DailySalesSummary) bool {
	return a.TotalTransactions == b.TotalTransactions &&
		near(a.TotalSales, b.TotalSales) &&
		near(a.TotalTax, b.TotalTax) &&
		near(a.PaymentMethods.Cash, b.PaymentMethods.Cash) &&
		near(a.PaymentMethods.Card, b.PaymentMethods.Card) &&
		near(a.PaymentMethods.Mobile, b.PaymentMethods.Mobile)
}

func add(summary *domain.DailySalesSummary, totals domain.Totals, method string) {
	summary.TotalSales = sum(summary.TotalSales, totals.Total)
	summary.TotalTax = sum(summary.TotalTax, totals.Tax)
	summary.TotalTransactions++

	switch method {
	case domain.PaymentCash:
		summary.PaymentMethods.Cash = sum(summary.PaymentMethods.Cash, totals.Total)
	case domain.PaymentCard:
		summary.PaymentMethods.Card = sum(summary.PaymentMethods.Card, totals.Total)
	case domain.PaymentMobile:
		summary.PaymentMethods.Mobile = sum(summary.PaymentMethods.Mobile, totals.Total)
	}
}

func sum(a float64, b float64) float64 {
	return decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).InexactFloat64()
}

func near(a float64, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func zero(ns keys.Namespace, date string) domain.DailySalesSummary {
	return domain.DailySalesSummary{Date: date, TenantID: ns.Tenant()}
}

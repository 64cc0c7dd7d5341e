package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kasirinaja/salecore/internal/aggregate"
	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
	"kasirinaja/salecore/internal/inventory"
	"kasirinaja/salecore/internal/keys"
	"kasirinaja/salecore/internal/kv"
	"kasirinaja/salecore/internal/targets"
	"kasirinaja/salecore/internal/totals"
	"kasirinaja/salecore/internal/txstore"
	"kasirinaja/salecore/internal/validate"
	"kasirinaja/salecore/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Settings struct {
	DefaultTenantID    string
	RequireTenant      bool
	MaxBasketItems     int
	MinPayment         float64
	DefaultTaxRate     float64
	DefaultMinStock    int
	TargetLookbackDays int
}

type SaleResult struct {
	Success     bool                `json:"success"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Errors      []apperror.Detail   `json:"errors,omitempty"`
}

type Service struct {
	settings     Settings
	validator    *validate.Validator
	ledger       *inventory.Ledger
	transactions *txstore.Store
	aggregator   *aggregate.Aggregator
	targets      *targets.Registry
	logger       zerolog.Logger
	now          func() time.Time
}

func New(store kv.Store, settings Settings, logger zerolog.Logger) *Service {
	if settings.DefaultTenantID == "" {
		settings.DefaultTenantID = "main-store"
	}

	aggregator := aggregate.New(store, logger)
	return &Service{
		settings:     settings,
		validator:    validate.New(validate.Rules{MaxBasketItems: settings.MaxBasketItems, MinPayment: settings.MinPayment}),
		ledger:       inventory.NewLedger(store, settings.DefaultMinStock, logger),
		transactions: txstore.New(store, logger),
		aggregator:   aggregator,
		targets:      targets.New(store, aggregator, settings.TargetLookbackDays, logger),
		logger:       logger.With().Str("component", "service").Logger(),
		now:          time.Now,
	}
}

// CommitSale runs validate, totals, stock check, stock apply, transaction
// commit and summary update, in that order. Validation and stock errors
// leave every projection untouched. Once the primary catalog is written the
// sale is only reported failed if the transaction record cannot be stored.
func (s *Service) CommitSale(ctx context.Context, req domain.SaleRequest) (SaleResult, error) {
	actor, hasActor := ActorFromContext(ctx)
	if req.TenantID == "" && hasActor {
		req.TenantID = actor.TenantID
	}
	if strings.TrimSpace(req.Cashier) == "" && hasActor {
		req.Cashier = actor.Cashier
	}

	if err := s.validator.Validate(req); err != nil {
		return failed(err)
	}
	ns, err := s.namespace(req.TenantID)
	if err != nil {
		return failed(err)
	}

	method := strings.TrimSpace(req.PaymentMethod)
	items := s.normalizeItems(req.Items)
	sale := totals.Calculate(items, s.settings.DefaultTaxRate)
	received := *req.PaymentReceived
	if method == domain.PaymentCash {
		if err := totals.CheckCashPayment(sale.Total, received); err != nil {
			return failed(err)
		}
	}

	plan, err := s.ledger.Check(ctx, ns, items)
	if err != nil {
		return failed(err)
	}

	now := s.now().UTC()
	tx := domain.Transaction{
		ID:              xid.TransactionID(),
		ReceiptNumber:   xid.ReceiptNumber(now),
		TenantID:        ns.Tenant(),
		Timestamp:       now,
		Items:           items,
		Subtotal:        sale.Subtotal,
		Tax:             sale.Tax,
		Total:           sale.Total,
		PaymentMethod:   method,
		PaymentReceived: received,
		Change:          totals.Change(method, sale.Total, received),
		Cashier:         strings.TrimSpace(req.Cashier),
		Terminal:        strings.TrimSpace(req.Terminal),
		Status:          domain.TxStatusCompleted,
	}

	report, err := s.ledger.Apply(ctx, plan)
	if err != nil {
		s.logger.Error().Err(err).Str("tenant", ns.Tenant()).Str("transaction", tx.ID).Msg("stock write failed, sale aborted")
		return failed(err)
	}
	if failures := report.Failures(); len(failures) > 0 {
		s.logger.Warn().Str("tenant", ns.Tenant()).Str("transaction", tx.ID).Int("failed_syncs", len(failures)).Msg("sale committed with projection drift")
	}

	if err := s.transactions.Commit(ctx, ns, tx); err != nil {
		// Stock is already decremented at this point; the retry decrements again.
		s.logger.Error().Err(err).Str("tenant", ns.Tenant()).Str("transaction", tx.ID).Msg("transaction write failed after stock update")
		return failed(err)
	}

	if _, err := s.aggregator.ApplySale(ctx, ns, keys.DateOf(now), sale, method); err != nil {
		s.logger.Error().Err(err).Str("tenant", ns.Tenant()).Str("transaction", tx.ID).Msg("daily summary update failed, sale kept")
	}

	s.logger.Info().
		Str("tenant", ns.Tenant()).
		Str("transaction", tx.ID).
		Str("receipt", tx.ReceiptNumber).
		Str("payment_method", method).
		Float64("total", tx.Total).
		Msg("sale committed")
	return SaleResult{Success: true, Transaction: &tx}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string, tenantID string) (domain.Transaction, error) {
	ns, err := s.namespace(tenantID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return s.transactions.Fetch(ctx, ns, id)
}

// GetDailySales returns a zeroed summary when nothing was sold on date. A
// malformed or impossible date is apperror.ErrInvalidDate.
func (s *Service) GetDailySales(ctx context.Context, date string, tenantID string) (domain.DailySalesSummary, error) {
	date, err := checkDate(date)
	if err != nil {
		return domain.DailySalesSummary{}, err
	}
	ns, err := s.namespace(tenantID)
	if err != nil {
		return domain.DailySalesSummary{}, err
	}
	return s.aggregator.Get(ctx, ns, date)
}

func (s *Service) ListTransactions(ctx context.Context, date string, tenantID string) (domain.TransactionList, error) {
	date, err := checkDate(date)
	if err != nil {
		return domain.TransactionList{}, err
	}
	ns, err := s.namespace(tenantID)
	if err != nil {
		return domain.TransactionList{}, err
	}
	return s.transactions.ListForDate(ctx, ns, date)
}

func (s *Service) ReconcileDailySales(ctx context.Context, date string, tenantID string) (domain.Reconciliation, error) {
	date, err := checkDate(date)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	ns, err := s.namespace(tenantID)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	return s.aggregator.Reconcile(ctx, ns, date, s.transactions)
}

func (s *Service) CreateTarget(ctx context.Context, tenantID string, req domain.TargetCreateRequest) (domain.DailyTarget, error) {
	ns, err := s.namespace(tenantID)
	if err != nil {
		return domain.DailyTarget{}, err
	}
	return s.targets.Create(ctx, ns, req)
}

func (s *Service) UpdateTarget(ctx context.Context, tenantID string, id string, req domain.TargetUpdateRequest) (domain.DailyTarget, error) {
	ns, err := s.namespace(tenantID)
	if err != nil {
		return domain.DailyTarget{}, err
	}
	return s.targets.Update(ctx, ns, id, req)
}

func (s *Service) DeleteTarget(ctx context.Context, tenantID string, id string) error {
	ns, err := s.namespace(tenantID)
	if err != nil {
		return err
	}
	return s.targets.Delete(ctx, ns, id)
}

func (s *Service) ListTargets(ctx context.Context, date string, tenantID string) ([]domain.TargetProgress, error) {
	date, err := checkDate(date)
	if err != nil {
		return nil, err
	}
	ns, err := s.namespace(tenantID)
	if err != nil {
		return nil, err
	}
	return s.targets.List(ctx, ns, date)
}

func (s *Service) InventorySnapshot(ctx context.Context, tenantID string) (domain.InventorySnapshot, error) {
	ns, err := s.namespace(tenantID)
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	return s.ledger.Snapshot(ctx, ns)
}

func (s *Service) SeedInventory(ctx context.Context, tenantID string, records []domain.CatalogRecord) error {
	ns, err := s.namespace(tenantID)
	if err != nil {
		return err
	}
	return s.ledger.Seed(ctx, ns, records)
}

func (s *Service) DefaultTenant() string {
	return s.settings.DefaultTenantID
}

// namespace resolves the tenant of a call. The default tenant is a
// migration aid and is refused when RequireTenant is set.
func (s *Service) namespace(tenantID string) (keys.Namespace, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		if s.settings.RequireTenant {
			return keys.Namespace{}, apperror.NewValidation(apperror.RuleTenant, "tenant_id", "tenant id is required")
		}
		tenantID = s.settings.DefaultTenantID
	}

	ns, err := keys.For(tenantID)
	if err != nil {
		if errors.Is(err, keys.ErrTenantRequired) || errors.Is(err, keys.ErrInvalidTenant) {
			return keys.Namespace{}, apperror.NewValidation(apperror.RuleTenant, "tenant_id", "%s", err.Error())
		}
		return keys.Namespace{}, err
	}
	return ns, nil
}

// normalizeItems trims identifiers and pins the effective tax rate on every
// line so a stored transaction is self-describing.
func (s *Service) normalizeItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		item.Name = strings.TrimSpace(item.Name)
		item.Barcode = strings.TrimSpace(item.Barcode)
		if item.TaxRate == nil {
			rate := s.settings.DefaultTaxRate
			item.TaxRate = &rate
		} else {
			rate := *item.TaxRate
			item.TaxRate = &rate
		}
		out = append(out, item)
	}
	return out
}

func checkDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if _, err := keys.ParseDate(date); err != nil {
		return "", apperror.ErrInvalidDate
	}
	return date, nil
}

func failed(err error) (SaleResult, error) {
	return SaleResult{Success: false, Errors: apperror.Details(err)}, err
}

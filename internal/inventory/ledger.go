// Package inventory is the stock ledger. A sale is checked against the
// primary catalog projection and, only when every line can be fulfilled,
// the decrement is written to the primary catalog and then fanned out to the
// global catalog, the item ledger and the operational view.
//
// Only the primary write is authoritative. Mirror writes are best-effort:
// their failures are logged and reported in ApplyReport, never returned.
package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
	"kasirinaja/salecore/internal/keys"
	"kasirinaja/salecore/internal/kv"
)

type Projection string

const (
	ProjectionCatalog     Projection = "catalog"
	ProjectionGlobal      Projection = "global"
	ProjectionItemLedger  Projection = "item_ledger"
	ProjectionOperational Projection = "operational"
)

type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusCreated SyncStatus = "created"
	StatusSkipped SyncStatus = "skipped"
	StatusFailed  SyncStatus = "failed"
)

type SyncResult struct {
	Projection Projection
	ProductID  string
	Status     SyncStatus
	Err        error
}

type ApplyReport struct {
	Tenant  string
	Results []SyncResult
}

// Status returns the outcome recorded for one product in one projection, or
// an empty status when nothing was recorded.
func (r ApplyReport) Status(projection Projection, productID string) SyncStatus {
	for _, result := range r.Results {
		if result.Projection == projection && result.ProductID == productID {
			return result.Status
		}
	}
	return ""
}

func (r ApplyReport) Failures() []SyncResult {
	var out []SyncResult
	for _, result := range r.Results {
		if result.Status == StatusFailed {
			out = append(out, result)
		}
	}
	return out
}

// PlanEntry is one product of the stock-update plan. Record is the primary
// catalog record as read during the check.
type PlanEntry struct {
	Record           domain.CatalogRecord
	QuantityToReduce int
	NewStock         int
}

type Plan struct {
	ns      keys.Namespace
	catalog []domain.CatalogRecord
	Entries []PlanEntry
}

func (p *Plan) Tenant() string {
	return p.ns.Tenant()
}

type Ledger struct {
	store           kv.Store
	defaultMinStock int
	logger          zerolog.Logger
	now             func() time.Time
}

func NewLedger(store kv.Store, defaultMinStock int, logger zerolog.Logger) *Ledger {
	if defaultMinStock < 0 {
		defaultMinStock = 0
	}
	return &Ledger{
		store:           store,
		defaultMinStock: defaultMinStock,
		logger:          logger.With().Str("component", "inventory").Logger(),
		now:             time.Now,
	}
}

type demand struct {
	index     int
	productID string
	name      string
	quantity  int
}

// Check reads the primary catalog once and builds the stock-update plan.
// Lines for the same product are checked against their combined quantity.
// When any line fails, a *apperror.StockError listing every failing product
// is returned and no plan is produced.
func (l *Ledger) Check(ctx context.Context, ns keys.Namespace, items []domain.LineItem) (*Plan, error) {
	var catalog []domain.CatalogRecord
	if _, err := kv.GetJSON(ctx, l.store, ns.Catalog(), &catalog); err != nil {
		return nil, apperror.Persistence("read catalog", err)
	}

	byID := make(map[string]int, len(catalog))
	byBarcode := make(map[string]int, len(catalog))
	for i, record := range catalog {
		byID[strings.TrimSpace(record.ID)] = i
		if barcode := strings.TrimSpace(record.Barcode); barcode != "" {
			byBarcode[barcode] = i
		}
	}

	demands := make([]*demand, 0, len(items))
	found := make(map[int]*demand)
	missing := make(map[string]*demand)
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		index, ok := byID[id]
		if barcode := strings.TrimSpace(item.Barcode); !ok && barcode != "" {
			index, ok = byBarcode[barcode]
		}

		if !ok {
			if d, seen := missing[id]; seen {
				d.quantity += item.Quantity
				continue
			}
			d := &demand{index: -1, productID: id, name: item.Name, quantity: item.Quantity}
			missing[id] = d
			demands = append(demands, d)
			continue
		}

		if d, seen := found[index]; seen {
			d.quantity += item.Quantity
			continue
		}
		d := &demand{index: index, productID: catalog[index].ID, name: item.Name, quantity: item.Quantity}
		found[index] = d
		demands = append(demands, d)
	}

	var failures []apperror.StockLineError
	plan := &Plan{ns: ns, catalog: catalog, Entries: make([]PlanEntry, 0, len(found))}
	for _, d := range demands {
		if d.index < 0 {
			failures = append(failures, apperror.ProductNotFound(d.productID, d.name, d.quantity))
			continue
		}
		record := catalog[d.index]
		if record.CurrentStock < d.quantity {
			failures = append(failures, apperror.InsufficientStock(record.ID, displayName(record.Name, d.name), d.quantity, record.CurrentStock))
			continue
		}
		plan.Entries = append(plan.Entries, PlanEntry{
			Record:           record,
			QuantityToReduce: d.quantity,
			NewStock:         record.CurrentStock - d.quantity,
		})
	}

	if len(failures) > 0 {
		return nil, &apperror.StockError{Lines: failures}
	}
	return plan, nil
}

// Apply writes the plan. A failed primary write is returned as a
// *apperror.PersistenceError; mirror failures only show up in the report.
func (l *Ledger) Apply(ctx context.Context, plan *Plan) (ApplyReport, error) {
	report := ApplyReport{Tenant: plan.ns.Tenant()}
	if len(plan.Entries) == 0 {
		return report, nil
	}
	now := l.now().UTC()

	updated := make([]domain.CatalogRecord, len(plan.catalog))
	copy(updated, plan.catalog)
	newStock := make(map[string]int, len(plan.Entries))
	for _, entry := range plan.Entries {
		newStock[entry.Record.ID] = entry.NewStock
	}
	for i := range updated {
		if stock, ok := newStock[updated[i].ID]; ok {
			updated[i].CurrentStock = stock
			updated[i].LastUpdated = now
		}
		updated[i].LowStockAlert = l.isLow(updated[i].CurrentStock, updated[i].MinStock)
	}

	if err := kv.SetJSON(ctx, l.store, plan.ns.Catalog(), updated); err != nil {
		for _, entry := range plan.Entries {
			report.add(ProjectionCatalog, entry.Record.ID, StatusFailed, err)
		}
		return report, apperror.Persistence("write catalog", err)
	}
	for _, entry := range plan.Entries {
		report.add(ProjectionCatalog, entry.Record.ID, StatusSynced, nil)
	}

	l.syncGlobal(ctx, plan, now, &report)
	l.syncItemLedger(ctx, plan, now, &report)
	l.syncOperational(ctx, plan, now, &report)

	return report, nil
}

func (l *Ledger) syncGlobal(ctx context.Context, plan *Plan, now time.Time, report *ApplyReport) {
	var records []domain.CatalogRecord
	if _, err := kv.GetJSON(ctx, l.store, keys.GlobalCatalog, &records); err != nil {
		l.failAll(plan, ProjectionGlobal, err, report)
		return
	}

	var touched []string
	for _, entry := range plan.Entries {
		index := -1
		for i, record := range records {
			if record.TenantID == plan.ns.Tenant() && record.ID == entry.Record.ID {
				index = i
				break
			}
		}
		if index < 0 {
			report.add(ProjectionGlobal, entry.Record.ID, StatusSkipped, nil)
			continue
		}
		record := &records[index]
		record.CurrentStock = decrement(record.CurrentStock, entry.QuantityToReduce)
		record.LastUpdated = now
		record.LowStockAlert = l.isLow(record.CurrentStock, record.MinStock)
		touched = append(touched, entry.Record.ID)
	}
	if len(touched) == 0 {
		return
	}

	l.finish(ctx, plan, ProjectionGlobal, keys.GlobalCatalog, records, touched, report)
}

func (l *Ledger) syncItemLedger(ctx context.Context, plan *Plan, now time.Time, report *ApplyReport) {
	var records []domain.ItemLedgerRecord
	if _, err := kv.GetJSON(ctx, l.store, plan.ns.ItemLedger(), &records); err != nil {
		l.failAll(plan, ProjectionItemLedger, err, report)
		return
	}

	var synced, created []string
	for _, entry := range plan.Entries {
		index := matchNameOrID(len(records), entry.Record, func(i int) (string, string) {
			return records[i].ID, records[i].Name
		})
		if index < 0 {
			records = append(records, domain.ItemLedgerRecord{
				ID:            entry.Record.ID,
				Name:          entry.Record.Name,
				CurrentStock:  entry.NewStock,
				MinStock:      entry.Record.MinStock,
				ReorderLevel:  entry.Record.ReorderLevel,
				TotalSold:     entry.QuantityToReduce,
				LastUpdated:   now,
				LowStockAlert: l.isLow(entry.NewStock, entry.Record.MinStock),
			})
			created = append(created, entry.Record.ID)
			continue
		}
		record := &records[index]
		record.CurrentStock = decrement(record.CurrentStock, entry.QuantityToReduce)
		record.TotalSold += entry.QuantityToReduce
		record.LastUpdated = now
		record.LowStockAlert = l.isLow(record.CurrentStock, record.MinStock)
		synced = append(synced, entry.Record.ID)
	}

	if err := kv.SetJSON(ctx, l.store, plan.ns.ItemLedger(), records); err != nil {
		l.failAll(plan, ProjectionItemLedger, err, report)
		return
	}
	for _, id := range synced {
		report.add(ProjectionItemLedger, id, StatusSynced, nil)
	}
	for _, id := range created {
		report.add(ProjectionItemLedger, id, StatusCreated, nil)
	}
}

func (l *Ledger) syncOperational(ctx context.Context, plan *Plan, now time.Time, report *ApplyReport) {
	var records []domain.OperationalRecord
	if _, err := kv.GetJSON(ctx, l.store, plan.ns.Operational(), &records); err != nil {
		l.failAll(plan, ProjectionOperational, err, report)
		return
	}

	var touched []string
	for _, entry := range plan.Entries {
		index := matchNameOrID(len(records), entry.Record, func(i int) (string, string) {
			return records[i].ProductID, records[i].ProductName
		})
		if index < 0 {
			report.add(ProjectionOperational, entry.Record.ID, StatusSkipped, nil)
			continue
		}
		record := &records[index]
		record.CurrentStock = decrement(record.CurrentStock, entry.QuantityToReduce)
		record.LastUpdated = now
		record.LowStockAlert = l.isLow(record.CurrentStock, record.MinStock)
		touched = append(touched, entry.Record.ID)
	}
	if len(touched) == 0 {
		return
	}

	l.finish(ctx, plan, ProjectionOperational, plan.ns.Operational(), records, touched, report)
}

func (l *Ledger) finish(ctx context.Context, plan *Plan, projection Projection, key string, value any, touched []string, report *ApplyReport) {
	if err := kv.SetJSON(ctx, l.store, key, value); err != nil {
		for _, id := range touched {
			l.warn(plan, projection, id, err)
			report.add(projection, id, StatusFailed, err)
		}
		return
	}
	for _, id := range touched {
		report.add(projection, id, StatusSynced, nil)
	}
}

func (l *Ledger) failAll(plan *Plan, projection Projection, err error, report *ApplyReport) {
	for _, entry := range plan.Entries {
		l.warn(plan, projection, entry.Record.ID, err)
		report.add(projection, entry.Record.ID, StatusFailed, err)
	}
}

func (l *Ledger) warn(plan *Plan, projection Projection, productID string, err error) {
	l.logger.Warn().
		Err(err).
		Str("tenant", plan.ns.Tenant()).
		Str("projection", string(projection)).
		Str("product", productID).
		Msg("projection sync failed, sale kept")
}

func (l *Ledger) isLow(stock int, minStock *int) bool {
	threshold := l.defaultMinStock
	if minStock != nil {
		threshold = *minStock
	}
	return stock <= threshold
}

func (r *ApplyReport) add(projection Projection, productID string, status SyncStatus, err error) {
	r.Results = append(r.Results, SyncResult{Projection: projection, ProductID: productID, Status: status, Err: err})
}

// matchNameOrID prefers an id match over a case-insensitive name match.
func matchNameOrID(n int, record domain.CatalogRecord, fields func(i int) (id string, name string)) int {
	nameIndex := -1
	for i := 0; i < n; i++ {
		id, name := fields(i)
		if id != "" && id == record.ID {
			return i
		}
		if nameIndex < 0 && name != "" && strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(record.Name)) {
			nameIndex = i
		}
	}
	return nameIndex
}

func decrement(stock int, quantity int) int {
	if stock-quantity < 0 {
		return 0
	}
	return stock - quantity
}

func displayName(recordName string, lineName string) string {
	if strings.TrimSpace(recordName) != "" {
		return recordName
	}
	return lineName
}

package inventory

import (
	"context"
	"strings"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
	"kasirinaja/salecore/internal/keys"
	"kasirinaja/salecore/internal/kv"
)

// DemoCatalog is the starter assortment used by development deployments.
func DemoCatalog() []domain.CatalogRecord {
	products := []struct {
		id    string
		name  string
		price float64
	}{
		{"SKU-MIE-01", "Mie Goreng Instan", 3500},
		{"SKU-TELUR-01", "Telur 10 Butir", 26500},
		{"SKU-SUSU-01", "Susu UHT 1L", 18900},
		{"SKU-ROTI-01", "Roti Tawar", 17800},
		{"SKU-KOPI-01", "Kopi Sachet", 2600},
		{"SKU-GULA-01", "Gula 1kg", 17400},
		{"SKU-TEH-01", "Teh Celup", 9800},
		{"SKU-AIR-01", "Air Mineral 600ml", 3900},
		{"SKU-KERIPIK-01", "Keripik Singkong", 12800},
		{"SKU-COKLAT-01", "Coklat Batang", 8600},
		{"SKU-SABUN-01", "Sabun Mandi", 7400},
		{"SKU-SHAMPOO-01", "Shampoo Sachet", 3200},
	}

	records := make([]domain.CatalogRecord, 0, len(products))
	for _, p := range products {
		records = append(records, domain.CatalogRecord{
			ID:           p.id,
			Name:         p.name,
			Price:        p.price,
			CurrentStock: 120,
			ReorderLevel: 24,
		})
	}
	return records
}

// Seed replaces the tenant's catalog and writes matching records into every
// mirror. Existing item-ledger totals are kept. Unlike a sale, every write
// here is required and the first failure is returned.
func (l *Ledger) Seed(ctx context.Context, ns keys.Namespace, records []domain.CatalogRecord) error {
	now := l.now().UTC()

	seen := make(map[string]struct{}, len(records))
	catalog := make([]domain.CatalogRecord, 0, len(records))
	for i, record := range records {
		record.ID = strings.TrimSpace(record.ID)
		record.Name = strings.TrimSpace(record.Name)
		record.Barcode = strings.TrimSpace(record.Barcode)
		if record.ID == "" || record.Name == "" {
			verr := apperror.NewValidation(apperror.RuleRequest, "id", "record %d: id and name are required", i+1)
			verr.Line = i + 1
			return verr
		}
		if record.CurrentStock < 0 || record.Price < 0 {
			verr := apperror.NewValidation(apperror.RuleRequest, "current_stock", "record %d: stock and price must not be negative", i+1)
			verr.Line = i + 1
			return verr
		}
		if _, dup := seen[record.ID]; dup {
			verr := apperror.NewValidation(apperror.RuleRequest, "id", "record %d: duplicate id %s", i+1, record.ID)
			verr.Line = i + 1
			return verr
		}
		seen[record.ID] = struct{}{}

		record.TenantID = ""
		record.LastUpdated = now
		record.LowStockAlert = l.isLow(record.CurrentStock, record.MinStock)
		catalog = append(catalog, record)
	}

	if err := kv.SetJSON(ctx, l.store, ns.Catalog(), catalog); err != nil {
		return apperror.Persistence("seed catalog", err)
	}

	var global []domain.CatalogRecord
	if _, err := kv.GetJSON(ctx, l.store, keys.GlobalCatalog, &global); err != nil {
		return apperror.Persistence("read global catalog", err)
	}
	kept := global[:0]
	for _, record := range global {
		if record.TenantID != ns.Tenant() {
			kept = append(kept, record)
		}
	}
	for _, record := range catalog {
		record.TenantID = ns.Tenant()
		kept = append(kept, record)
	}
	if err := kv.SetJSON(ctx, l.store, keys.GlobalCatalog, kept); err != nil {
		return apperror.Persistence("seed global catalog", err)
	}

	var ledger []domain.ItemLedgerRecord
	if _, err := kv.GetJSON(ctx, l.store, ns.ItemLedger(), &ledger); err != nil {
		return apperror.Persistence("read item ledger", err)
	}
	soldByID := make(map[string]int, len(ledger))
	for _, record := range ledger {
		soldByID[record.ID] = record.TotalSold
	}
	items := make([]domain.ItemLedgerRecord, 0, len(catalog))
	operational := make([]domain.OperationalRecord, 0, len(catalog))
	for _, record := range catalog {
		items = append(items, domain.ItemLedgerRecord{
			ID:            record.ID,
			Name:          record.Name,
			CurrentStock:  record.CurrentStock,
			MinStock:      record.MinStock,
			ReorderLevel:  record.ReorderLevel,
			TotalSold:     soldByID[record.ID],
			LastUpdated:   now,
			LowStockAlert: record.LowStockAlert,
		})
		operational = append(operational, domain.OperationalRecord{
			ProductID:     record.ID,
			ProductName:   record.Name,
			CurrentStock:  record.CurrentStock,
			MinStock:      record.MinStock,
			LastUpdated:   now,
			LowStockAlert: record.LowStockAlert,
		})
	}
	if err := kv.SetJSON(ctx, l.store, ns.ItemLedger(), items); err != nil {
		return apperror.Persistence("seed item ledger", err)
	}
	if err := kv.SetJSON(ctx, l.store, ns.Operational(), operational); err != nil {
		return apperror.Persistence("seed operational view", err)
	}

	l.logger.Info().Str("tenant", ns.Tenant()).Int("products", len(catalog)).Msg("inventory seeded")
	return nil
}

// Snapshot reads all four projections for one tenant and reports drift
// between the primary catalog and its mirrors.
func (l *Ledger) Snapshot(ctx context.Context, ns keys.Namespace) (domain.InventorySnapshot, error) {
	snapshot := domain.InventorySnapshot{
		TenantID:    ns.Tenant(),
		Catalog:     []domain.CatalogRecord{},
		Global:      []domain.CatalogRecord{},
		Items:       []domain.ItemLedgerRecord{},
		Operational: []domain.OperationalRecord{},
	}

	if _, err := kv.GetJSON(ctx, l.store, ns.Catalog(), &snapshot.Catalog); err != nil {
		return domain.InventorySnapshot{}, apperror.Persistence("read catalog", err)
	}
	var global []domain.CatalogRecord
	if _, err := kv.GetJSON(ctx, l.store, keys.GlobalCatalog, &global); err != nil {
		return domain.InventorySnapshot{}, apperror.Persistence("read global catalog", err)
	}
	for _, record := range global {
		if record.TenantID == ns.Tenant() {
			snapshot.Global = append(snapshot.Global, record)
		}
	}
	if _, err := kv.GetJSON(ctx, l.store, ns.ItemLedger(), &snapshot.Items); err != nil {
		return domain.InventorySnapshot{}, apperror.Persistence("read item ledger", err)
	}
	if _, err := kv.GetJSON(ctx, l.store, ns.Operational(), &snapshot.Operational); err != nil {
		return domain.InventorySnapshot{}, apperror.Persistence("read operational view", err)
	}

	snapshot.Drift = Drift(snapshot)
	return snapshot, nil
}

// Drift lists catalog products whose stock differs in any mirror, or that a
// mirror does not carry at all.
func Drift(snapshot domain.InventorySnapshot) []domain.StockDrift {
	drift := []domain.StockDrift{}
	for _, record := range snapshot.Catalog {
		entry := domain.StockDrift{ProductID: record.ID, Catalog: record.CurrentStock}

		for _, g := range snapshot.Global {
			if g.ID == record.ID {
				stock := g.CurrentStock
				entry.Global = &stock
				break
			}
		}
		if i := matchNameOrID(len(snapshot.Items), record, func(i int) (string, string) {
			return snapshot.Items[i].ID, snapshot.Items[i].Name
		}); i >= 0 {
			stock := snapshot.Items[i].CurrentStock
			entry.ItemLedger = &stock
		}
		if i := matchNameOrID(len(snapshot.Operational), record, func(i int) (string, string) {
			return snapshot.Operational[i].ProductID, snapshot.Operational[i].ProductName
		}); i >= 0 {
			stock := snapshot.Operational[i].CurrentStock
			entry.Operational = &stock
		}

		if differs(entry.Global, record.CurrentStock) || differs(entry.ItemLedger, record.CurrentStock) || differs(entry.Operational, record.CurrentStock) {
			drift = append(drift, entry)
		}
	}
	return drift
}

func differs(mirror *int, primary int) bool {
	return mirror == nil || *mirror != primary
}

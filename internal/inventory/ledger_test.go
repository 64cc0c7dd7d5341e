package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/domain"
	"kasirinaja/salecore/internal/keys"
	"kasirinaja/salecore/internal/kv"
	"kasirinaja/salecore/internal/kv/kvtest"
	"kasirinaja/salecore/internal/kv/memory"
)

var fixedNow = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func newLedger(t *testing.T) (*Ledger, *kvtest.Faulty, keys.Namespace) {
	t.Helper()
	store := kvtest.Wrap(memory.New())
	ledger := NewLedger(store, 5, zerolog.Nop())
	ledger.now = func() time.Time { return fixedNow }
	ns, err := keys.For("store-a")
	require.NoError(t, err)
	return ledger, store, ns
}

func seed(t *testing.T, ledger *Ledger, store *kvtest.Faulty, ns keys.Namespace, records ...domain.CatalogRecord) {
	t.Helper()
	require.NoError(t, ledger.Seed(context.Background(), ns, records))
	store.ResetWrites()
}

func catalogOf(t *testing.T, store kv.Store, ns keys.Namespace) map[string]domain.CatalogRecord {
	t.Helper()
	var records []domain.CatalogRecord
	_, err := kv.GetJSON(context.Background(), store, ns.Catalog(), &records)
	require.NoError(t, err)
	out := make(map[string]domain.CatalogRecord, len(records))
	for _, r := range records {
		out[r.ID] = r
	}
	return out
}

func line(id string, qty int) domain.LineItem {
	return domain.LineItem{ID: id, Name: id, UnitPrice: 1000, Quantity: qty}
}

func TestCheckRejectsShortfallWithoutWrites(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns, domain.CatalogRecord{ID: "p-1", Name: "Kopi", CurrentStock: 1})

	plan, err := ledger.Check(context.Background(), ns, []domain.LineItem{line("p-1", 2)})

	require.Nil(t, plan)
	var stockErr *apperror.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Lines, 1)
	assert.Equal(t, apperror.KindInsufficientStock, stockErr.Lines[0].Kind)
	assert.Equal(t, 1, stockErr.Lines[0].Available)
	assert.Equal(t, 1, stockErr.Lines[0].Shortfall)
	assert.Empty(t, store.Writes())
}

func TestCheckListsEveryFailingLine(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns,
		domain.CatalogRecord{ID: "p-1", Name: "Kopi", CurrentStock: 10},
		domain.CatalogRecord{ID: "p-2", Name: "Gula", CurrentStock: 0},
	)

	_, err := ledger.Check(context.Background(), ns, []domain.LineItem{line("p-1", 1), line("ghost", 1), line("p-2", 3)})

	var stockErr *apperror.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Lines, 2)
	assert.Equal(t, apperror.KindProductNotFound, stockErr.Lines[0].Kind)
	assert.Equal(t, "ghost", stockErr.Lines[0].ProductID)
	assert.Equal(t, apperror.KindInsufficientStock, stockErr.Lines[1].Kind)
	assert.Equal(t, "p-2", stockErr.Lines[1].ProductID)
}

func TestCheckSumsRepeatedLines(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns, domain.CatalogRecord{ID: "p-1", Name: "Kopi", CurrentStock: 3})

	_, err := ledger.Check(context.Background(), ns, []domain.LineItem{line("p-1", 2), line("p-1", 2)})

	var stockErr *apperror.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Lines[0].Requested)

	plan, err := ledger.Check(context.Background(), ns, []domain.LineItem{line("p-1", 1), line("p-1", 2)})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, 3, plan.Entries[0].QuantityToReduce)
	assert.Equal(t, 0, plan.Entries[0].NewStock)
}

func TestCheckFallsBackToBarcode(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns, domain.CatalogRecord{ID: "p-1", Name: "Kopi", Barcode: "899100", CurrentStock: 3})

	item := line("scanned", 1)
	item.Barcode = "899100"
	plan, err := ledger.Check(context.Background(), ns, []domain.LineItem{item})

	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, "p-1", plan.Entries[0].Record.ID)
}

func TestBarcodeMatchIgnoresSurroundingWhitespace(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns, domain.CatalogRecord{ID: "p-1", Name: "Kopi", Barcode: " 899100\t", CurrentStock: 3})
	assert.Equal(t, "899100", catalogOf(t, store, ns)["p-1"].Barcode)

	item := line("scanned", 1)
	item.Barcode = "899100 "
	plan, err := ledger.Check(context.Background(), ns, []domain.LineItem{item})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, "p-1", plan.Entries[0].Record.ID)

	require.NoError(t, kv.SetJSON(context.Background(), store, ns.Catalog(), []domain.CatalogRecord{
		{ID: "p-2", Name: "Teh", Barcode: "  899200 ", CurrentStock: 2},
	}))
	item = line("scanned", 1)
	item.Barcode = "899200"
	plan, err = ledger.Check(context.Background(), ns, []domain.LineItem{item})
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, "p-2", plan.Entries[0].Record.ID)
}

func TestApplyDecrementsEveryProjection(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns,
		domain.CatalogRecord{ID: "p-1", Name: "Kopi", CurrentStock: 8, MinStock: intPtr(6)},
		domain.CatalogRecord{ID: "p-2", Name: "Gula", CurrentStock: 20},
	)
	ctx := context.Background()

	plan, err := ledger.Check(ctx, ns, []domain.LineItem{line("p-1", 2)})
	require.NoError(t, err)
	report, err := ledger.Apply(ctx, plan)
	require.NoError(t, err)
	assert.Empty(t, report.Failures())

	catalog := catalogOf(t, store, ns)
	assert.Equal(t, 6, catalog["p-1"].CurrentStock)
	assert.True(t, catalog["p-1"].LowStockAlert)
	assert.Equal(t, fixedNow, catalog["p-1"].LastUpdated)
	assert.Equal(t, 20, catalog["p-2"].CurrentStock)
	assert.False(t, catalog["p-2"].LowStockAlert)

	snapshot, err := ledger.Snapshot(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Drift)
	for _, item := range snapshot.Items {
		if item.ID == "p-1" {
			assert.Equal(t, 2, item.TotalSold)
			assert.True(t, item.LowStockAlert)
		}
	}
	assert.Equal(t, StatusSynced, report.Status(ProjectionGlobal, "p-1"))
	assert.Equal(t, StatusSynced, report.Status(ProjectionItemLedger, "p-1"))
	assert.Equal(t, StatusSynced, report.Status(ProjectionOperational, "p-1"))
}

func TestLowStockUsesDefaultThresholdWhenMinStockMissing(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns, domain.CatalogRecord{ID: "p-1", Name: "Kopi", CurrentStock: 6})
	ctx := context.Background()

	assert.False(t, catalogOf(t, store, ns)["p-1"].LowStockAlert)

	plan, err := ledger.Check(ctx, ns, []domain.LineItem{line("p-1", 1)})
	require.NoError(t, err)
	_, err = ledger.Apply(ctx, plan)
	require.NoError(t, err)

	assert.True(t, catalogOf(t, store, ns)["p-1"].LowStockAlert)
}

func TestPrimaryWriteFailureAbortsWithPersistenceError(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns, domain.CatalogRecord{ID: "p-1", Name: "Kopi", CurrentStock: 5})
	ctx := context.Background()

	plan, err := ledger.Check(ctx, ns, []domain.LineItem{line("p-1", 1)})
	require.NoError(t, err)

	store.FailSet(ns.Catalog(), errors.New("connection reset"))
	_, err = ledger.Apply(ctx, plan)

	var perr *apperror.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, store.Writes())
	store.Heal()
	assert.Equal(t, 5, catalogOf(t, store, ns)["p-1"].CurrentStock)
}

func TestMirrorFailuresAreSwallowed(t *testing.T) {
	ledger, store, ns := newLedger(t)
	seed(t, ledger, store, ns, domain.CatalogRecord{ID: "p-1", Name: "Kopi", CurrentStock: 5})
	ctx := context.Background()

	store.FailSet(keys.GlobalCatalog, errors.New("timeout"))
	store.FailGet(ns.ItemLedger(), errors.New("timeout"))
	store.FailSet(ns.Operational(), errors.New("timeout"))

	plan, err := ledger.Check(ctx, ns, []domain.LineItem{line("p-1", 2)})
	require.NoError(t, err)
	report, err := ledger.Apply(ctx, plan)

	require.NoError(t, err)
	assert.Len(t, report.Failures(), 3)
	assert.Equal(t, StatusSynced, report.Status(ProjectionCatalog, "p-1"))
	assert.Equal(t, 3, catalogOf(t, store, ns)["p-1"].CurrentStock)

	store.Heal()
	snapshot, err := ledger.Snapshot(ctx, ns)
	require.NoError(t, err)
	require.Len(t, snapshot.Drift, 1)
	assert.Equal(t, 3, snapshot.Drift[0].Catalog)
	assert.Equal(t, 5, *snapshot.Drift[0].Global)
}

func TestItemLedgerRecordCreatedWhenMissing(t *testing.T) {
	ledger, store, ns := newLedger(t)
	ctx := context.Background()
	require.NoError(t, kv.SetJSON(ctx, store, ns.Catalog(), []domain.CatalogRecord{{ID: "p-9", Name: "Teh", CurrentStock: 4}}))

	plan, err := ledger.Check(ctx, ns, []domain.LineItem{line("p-9", 1)})
	require.NoError(t, err)
	report, err := ledger.Apply(ctx, plan)
	require.NoError(t, err)

	assert.Equal(t, StatusSkipped, report.Status(ProjectionGlobal, "p-9"))
	assert.Equal(t, StatusCreated, report.Status(ProjectionItemLedger, "p-9"))
	assert.Equal(t, StatusSkipped, report.Status(ProjectionOperational, "p-9"))

	var items []domain.ItemLedgerRecord
	_, err = kv.GetJSON(ctx, store, ns.ItemLedger(), &items)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].CurrentStock)
	assert.Equal(t, 1, items[0].TotalSold)
}

func TestMirrorsMatchByNameWhenIDsDiffer(t *testing.T) {
	ledger, store, ns := newLedger(t)
	ctx := context.Background()
	require.NoError(t, kv.SetJSON(ctx, store, ns.Catalog(), []domain.CatalogRecord{{ID: "p-1", Name: "Kopi Sachet", CurrentStock: 10}}))
	require.NoError(t, kv.SetJSON(ctx, store, ns.ItemLedger(), []domain.ItemLedgerRecord{{ID: "legacy-7", Name: "kopi sachet", CurrentStock: 10, TotalSold: 4}}))
	require.NoError(t, kv.SetJSON(ctx, store, ns.Operational(), []domain.OperationalRecord{{ProductID: "legacy-7", ProductName: "KOPI SACHET", CurrentStock: 10}}))

	plan, err := ledger.Check(ctx, ns, []domain.LineItem{line("p-1", 3)})
	require.NoError(t, err)
	_, err = ledger.Apply(ctx, plan)
	require.NoError(t, err)

	snapshot, err := ledger.Snapshot(ctx, ns)
	require.NoError(t, err)
	require.Len(t, snapshot.Items, 1)
	assert.Equal(t, 7, snapshot.Items[0].CurrentStock)
	assert.Equal(t, 7, snapshot.Items[0].TotalSold)
	assert.Equal(t, 7, snapshot.Operational[0].CurrentStock)
}

func TestSeedKeepsOtherTenantsInGlobalCatalog(t *testing.T) {
	ledger, store, ns := newLedger(t)
	ctx := context.Background()
	other, err := keys.For("store-b")
	require.NoError(t, err)

	require.NoError(t, ledger.Seed(ctx, other, []domain.CatalogRecord{{ID: "p-1", Name: "Kopi", CurrentStock: 1}}))
	require.NoError(t, ledger.Seed(ctx, ns, DemoCatalog()))
	require.NoError(t, ledger.Seed(ctx, ns, DemoCatalog()))

	var global []domain.CatalogRecord
	_, err = kv.GetJSON(ctx, store, keys.GlobalCatalog, &global)
	require.NoError(t, err)
	assert.Len(t, global, len(DemoCatalog())+1)

	err = ledger.Seed(ctx, ns, []domain.CatalogRecord{{ID: "x", Name: "X"}, {ID: "x", Name: "Y"}})
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Line)
}

package txstore

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
	"kasirinaja/salecore/internal/kv/kvtest"
	"kasirinaja/salecore/internal/kv/memory"
)

func setup(t *testing.T) (*Store, *kvtest.Faulty, keys.Namespace) {
	t.Helper()
	faulty := kvtest.Wrap(memory.New())
	ns, err := keys.For("store-a")
	require.NoError(t, err)
	return New(faulty, zerolog.Nop()), faulty, ns
}

func transaction(id string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:            id,
		ReceiptNumber: "RCP-" + id,
		TenantID:      "store-a",
		Timestamp:     at,
		Items:         []domain.LineItem{{ID: "p-1", Name: "Kopi", UnitPrice: 10, Quantity: 1}},
		Subtotal:      10,
		Total:         10,
		PaymentMethod: domain.PaymentCard,
		Status:        domain.TxStatusCompleted,
	}
}

func TestCommitThenFetch(t *testing.T) {
	store, _, ns := setup(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Commit(ctx, ns, transaction("txn-1", at)))

	got, err := store.Fetch(ctx, ns, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "RCP-txn-1", got.ReceiptNumber)
	assert.True(t, at.Equal(got.Timestamp))
}

func TestFetchUnknownIsNotFound(t *testing.T) {
	store, _, ns := setup(t)

	_, err := store.Fetch(context.Background(), ns, "txn-missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = store.Fetch(context.Background(), ns, " ")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestFetchIsTenantScoped(t *testing.T) {
	store, _, ns := setup(t)
	ctx := context.Background()
	other, err := keys.For("store-b")
	require.NoError(t, err)

	require.NoError(t, store.Commit(ctx, ns, transaction("txn-1", time.Now())))

	_, err = store.Fetch(ctx, other, "txn-1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListForDateKeepsOrderAndSkipsMissing(t *testing.T) {
	store, faulty, ns := setup(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Commit(ctx, ns, transaction("txn-1", day)))
	require.NoError(t, store.Commit(ctx, ns, transaction("txn-2", day.Add(time.Hour))))
	require.NoError(t, store.Commit(ctx, ns, transaction("txn-3", day.Add(2*time.Hour))))
	require.NoError(t, store.Commit(ctx, ns, transaction("txn-next-day", day.Add(24*time.Hour))))
	require.NoError(t, faulty.Del(ctx, ns.Transaction("txn-2")))

	list, err := store.ListForDate(ctx, ns, "2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	require.Len(t, list.Transactions, 2)
	assert.Equal(t, "txn-1", list.Transactions[0].ID)
	assert.Equal(t, "txn-3", list.Transactions[1].ID)

	empty, err := store.ListForDate(ctx, ns, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count)
	assert.NotNil(t, empty.Transactions)
}

func TestRecommitDoesNotDuplicateIndex(t *testing.T) {
	store, _, ns := setup(t)
	ctx := context.Background()
	tx := transaction("txn-1", time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC))

	require.NoError(t, store.Commit(ctx, ns, tx))
	require.NoError(t, store.Commit(ctx, ns, tx))

	list, err := store.ListForDate(ctx, ns, "2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
}

func TestCommitFailuresArePersistenceErrors(t *testing.T) {
	store, faulty, ns := setup(t)
	ctx := context.Background()
	tx := transaction("txn-1", time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC))

	faulty.FailSet(ns.Transaction("txn-1"), errors.New("disk full"))
	err := store.Commit(ctx, ns, tx)
	var perr *apperror.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "write transaction", perr.Op)
	assert.Empty(t, faulty.Writes())

	faulty.Heal()
	faulty.FailSet(ns.TransactionIndex("2024-03-14"), errors.New("disk full"))
	err = store.Commit(ctx, ns, tx)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "write transaction index", perr.Op)
}

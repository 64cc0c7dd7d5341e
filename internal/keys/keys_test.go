package keys

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceKeysArePrefixedByTenant(t *testing.T) {
	ns, err := For("store-7")
	require.NoError(t, err)

	assert.Equal(t, "tenant:store-7:catalog", ns.Catalog())
	assert.Equal(t, "tenant:store-7:items", ns.ItemLedger())
	assert.Equal(t, "tenant:store-7:inventory", ns.Operational())
	assert.Equal(t, "tenant:store-7:transaction:txn-1", ns.Transaction("txn-1"))
	assert.Equal(t, "tenant:store-7:transactions:2024-02-15", ns.TransactionIndex("2024-02-15"))
	assert.Equal(t, "tenant:store-7:sales:2024-02-15", ns.DailySales("2024-02-15"))
	assert.Equal(t, "tenant:store-7:targets:2024-02-15", ns.Targets("2024-02-15"))
}

func TestTenantsDoNotShareKeys(t *testing.T) {
	a, err := For("a")
	require.NoError(t, err)
	b, err := For("b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Catalog(), b.Catalog())
	assert.NotEqual(t, a.DailySales("2024-01-01"), b.DailySales("2024-01-01"))
}

func TestForRejectsMissingOrUnsafeTenant(t *testing.T) {
	_, err := For("  ")
	assert.ErrorIs(t, err, ErrTenantRequired)

	_, err = For("a:b")
	assert.ErrorIs(t, err, ErrInvalidTenant)

	_, err = For("a b")
	assert.ErrorIs(t, err, ErrInvalidTenant)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	for _, raw := range []string{"2024-02-30", "2023-02-29", "2024-2-3", "15/02/2024", ""} {
		_, err := ParseDate(raw)
		assert.Error(t, err, "expected %q to be rejected", raw)
	}
}

func TestDateOfUsesUTC(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	at := time.Date(2024, 3, 1, 2, 0, 0, 0, jakarta)
	assert.Equal(t, "2024-02-29", DateOf(at))
}

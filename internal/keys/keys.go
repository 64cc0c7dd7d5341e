// Package keys derives every storage key used by the sale core. Tenant
// identity is the first segment of all tenant-owned keys; isolation between
// tenants relies on this prefix alone.
package keys

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrTenantRequired = errors.New("tenant id is required")
	ErrInvalidTenant  = errors.New("tenant id must not contain ':' or whitespace")
)

// GlobalCatalog holds catalog records for every tenant in a single key.
const GlobalCatalog = "catalog:global"

type Namespace struct {
	tenant string
}

func For(tenantID string) (Namespace, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Namespace{}, ErrTenantRequired
	}
	if strings.ContainsAny(tenantID, ": \t\r\n") {
		return Namespace{}, ErrInvalidTenant
	}
	return Namespace{tenant: tenantID}, nil
}

func (n Namespace) Tenant() string {
	return n.tenant
}

func (n Namespace) Catalog() string {
	return n.key("catalog")
}

func (n Namespace) ItemLedger() string {
	return n.key("items")
}

func (n Namespace) Operational() string {
	return n.key("inventory")
}

func (n Namespace) Transaction(id string) string {
	return n.key("transaction", id)
}

func (n Namespace) TransactionIndex(date string) string {
	return n.key("transactions", date)
}

func (n Namespace) DailySales(date string) string {
	return n.key("sales", date)
}

func (n Namespace) Targets(date string) string {
	return n.key("targets", date)
}

func (n Namespace) key(parts ...string) string {
	return fmt.Sprintf("tenant:%s:%s", n.tenant, strings.Join(parts, ":"))
}

// ParseDate accepts only calendar-valid YYYY-MM-DD strings.
func ParseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

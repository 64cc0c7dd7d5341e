package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"kasirinaja/salecore/internal/config"
	"kasirinaja/salecore/internal/httpapi"
)

// gentoken mints a bearer token for a till. The secret comes from
// AUTH_SECRET, the same setting the server verifies with.
func main() {
	cashier := flag.String("cashier", "", "cashier recorded on sales made with the token")
	tenant := flag.String("tenant", "", "tenant the token sells for (defaults to DEFAULT_TENANT_ID)")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *tenant == "" {
		*tenant = cfg.DefaultTenantID
	}

	tokens, err := httpapi.NewTokenManager(cfg.AuthSecret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "AUTH_SECRET: %v\n", err)
		os.Exit(1)
	}
	token, expiresAt, err := tokens.Sign(*cashier, *tenant)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}

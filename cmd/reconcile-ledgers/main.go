// reconcile-ledgers checks the stock movement, coupon usage and wallet ledgers
// against the balances they back, and exits non-zero when any disagree.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/reconcile-ledgers
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/workflow"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	violations, err := workflow.RunLedgerChecks(ctx, db, config.GetLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger checks failed: %v\n", err)
		os.Exit(1)
	}
	if len(violations) == 0 {
		fmt.Println("All ledgers reconcile")
		return
	}
	for _, v := range violations {
		fmt.Printf("%-16s %-24s %s\n", v.Check, v.Reference, v.Detail)
	}
	fmt.Fprintf(os.Stderr, "%d ledger violation(s)\n", len(violations))
	os.Exit(2)
}

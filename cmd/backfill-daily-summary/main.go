// backfill-daily-summary rebuilds daily_sales_summaries from sales reports,
// for example after replaying dead order events.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

func main() {
	from := flag.String("from", "", "Optional: start date (YYYY-MM-DD). Defaults to 30 days ago.")
	to := flag.String("to", "", "Optional: end date (YYYY-MM-DD). Defaults to today.")
	flag.Parse()

	start := strings.TrimSpace(*from)
	if start == "" {
		start = time.Now().AddDate(0, 0, -30).Format(dateLayout)
	}
	end := strings.TrimSpace(*to)
	if end == "" {
		end = time.Now().Format(dateLayout)
	}
	for _, d := range []string{start, end} {
		if _, err := time.Parse(dateLayout, d); err != nil {
			fmt.Fprintf(os.Stderr, "invalid date %q: %v\n", d, err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	// Ensure schema is up-to-date (creates daily_sales_summaries if missing).
	models.MigrateTable(db)

	fmt.Printf("Backfilling daily_sales_summaries from=%s to=%s\n", start, end)
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.RebuildDailySalesSummaries(tx, start, end)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "backfill failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Backfill complete")
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DailySalesSummary is a query-friendly aggregate used by the dashboard and charts.
//
// Grain: summary_date (UTC day).
// NOTE: This table is derived data and can be rebuilt from sales_reports with RebuildDailySalesSummaries.
type DailySalesSummary struct {
	SummaryDate    time.Time       `gorm:"primaryKey;type:date" json:"summary_date"`
	OrderCount     int             `gorm:"not null;default:0" json:"order_count"`
	ItemsSold      int             `gorm:"not null;default:0" json:"items_sold"`
	GrossSales     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_sales"`
	// ReversedAmount is the line value of cancelled and returned items, refunded to a wallet or not.
	ReversedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reversed_amount"`
	CancelledItems int             `gorm:"not null;default:0" json:"cancelled_items"`
	ReturnedItems  int             `gorm:"not null;default:0" json:"returned_items"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// DailySalesDelta is added onto one day's summary row.
type DailySalesDelta struct {
	OrderCount     int
	ItemsSold      int
	GrossSales     decimal.Decimal
	ReversedAmount decimal.Decimal
	CancelledItems int
	ReturnedItems  int
}

// ApplyDailySalesDelta upserts the day row and adds delta onto it.
func ApplyDailySalesDelta(tx *gorm.DB, day time.Time, delta DailySalesDelta) error {
	date := day.UTC().Format("2006-01-02")
	return tx.Exec(`
		INSERT INTO daily_sales_summaries
			(summary_date, order_count, items_sold, gross_sales, reversed_amount, cancelled_items, returned_items, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			order_count = order_count + VALUES(order_count),
			items_sold = items_sold + VALUES(items_sold),
			gross_sales = gross_sales + VALUES(gross_sales),
			reversed_amount = reversed_amount + VALUES(reversed_amount),
			cancelled_items = cancelled_items + VALUES(cancelled_items),
			returned_items = returned_items + VALUES(returned_items),
			updated_at = NOW()
	`, date, delta.OrderCount, delta.ItemsSold, delta.GrossSales, delta.ReversedAmount,
		delta.CancelledItems, delta.ReturnedItems).Error
}

// RebuildDailySalesSummaries recomputes rows for [from, to] (YYYY-MM-DD) from sales reports
// and removes days that no longer have any orders.
//
// gross_sales is rebuilt from the amount at placement (current final amount plus reversed lines),
// so it matches the incremental projection.
func RebuildDailySalesSummaries(tx *gorm.DB, from, to string) error {
	if err := tx.Exec(`
		INSERT INTO daily_sales_summaries
			(summary_date, order_count, items_sold, gross_sales, reversed_amount, cancelled_items, returned_items, created_at, updated_at)
		SELECT
			r.summary_date,
			r.order_count,
			COALESCE(l.items_sold, 0),
			r.final_amount + COALESCE(l.reversed_amount, 0),
			COALESCE(l.reversed_amount, 0),
			COALESCE(l.cancelled_items, 0),
			COALESCE(l.returned_items, 0),
			NOW(),
			NOW()
		FROM (
			SELECT DATE(order_date) AS summary_date, COUNT(*) AS order_count, SUM(final_amount) AS final_amount
			FROM sales_reports
			WHERE DATE(order_date) BETWEEN ? AND ?
			GROUP BY DATE(order_date)
		) r
		LEFT JOIN (
			SELECT
				DATE(sr.order_date) AS summary_date,
				SUM(sl.quantity) AS items_sold,
				SUM(CASE WHEN sl.delivery_status IN ('Cancelled', 'Returned') THEN ROUND(sl.total_price - sl.discount, 2) ELSE 0 END) AS reversed_amount,
				SUM(CASE WHEN sl.delivery_status = 'Cancelled' THEN sl.quantity ELSE 0 END) AS cancelled_items,
				SUM(CASE WHEN sl.delivery_status = 'Returned' THEN sl.quantity ELSE 0 END) AS returned_items
			FROM sales_reports sr
			JOIN sales_report_lines sl ON sl.report_id = sr.id
			WHERE DATE(sr.order_date) BETWEEN ? AND ?
			GROUP BY DATE(sr.order_date)
		) l ON l.summary_date = r.summary_date
		ON DUPLICATE KEY UPDATE
			order_count = VALUES(order_count),
			items_sold = VALUES(items_sold),
			gross_sales = VALUES(gross_sales),
			reversed_amount = VALUES(reversed_amount),
			cancelled_items = VALUES(cancelled_items),
			returned_items = VALUES(returned_items),
			updated_at = NOW()
	`, from, to, from, to).Error; err != nil {
		return err
	}

	return tx.Exec(`
		DELETE ds
		FROM daily_sales_summaries ds
		LEFT JOIN (
			SELECT DISTINCT DATE(order_date) AS summary_date
			FROM sales_reports
			WHERE DATE(order_date) BETWEEN ? AND ?
		) agg ON agg.summary_date = ds.summary_date
		WHERE ds.summary_date BETWEEN ? AND ?
			AND agg.summary_date IS NULL
	`, from, to, from, to).Error
}

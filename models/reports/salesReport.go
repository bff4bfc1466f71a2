package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodCustom  Period = "custom"
)

const queryDateLayout = "2006-01-02"

type SalesReportQuery struct {
	Period    Period `form:"period"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
}

type SalesReportResponse struct {
	Reports          []models.SalesReport `json:"reports"`
	TotalSalesCount  int64                `json:"totalSalesCount"`
	TotalOrderAmount decimal.Decimal      `json:"totalOrderAmount"`
	TotalDiscount    decimal.Decimal      `json:"totalDiscount"`
	TotalPages       int                  `json:"totalPages"`
	Page             int                  `json:"page"`
}

// DateRange returns the [from, to] window of a report period ending at now.
// daily starts at midnight; weekly, monthly and yearly reach back one week, month or year.
func DateRange(period Period, startDate, endDate string, now time.Time) (time.Time, time.Time, error) {
	switch period {
	case "", PeriodDaily:
		return utils.StartOfDay(now), now, nil
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), now, nil
	case PeriodMonthly:
		return now.AddDate(0, -1, 0), now, nil
	case PeriodYearly:
		return now.AddDate(-1, 0, 0), now, nil
	case PeriodCustom:
		if startDate == "" || endDate == "" {
			return time.Time{}, time.Time{}, utils.NewValidationError("Start date and end date are required")
		}
		start, err := time.ParseInLocation(queryDateLayout, startDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, utils.NewValidationError("Invalid start date")
		}
		end, err := time.ParseInLocation(queryDateLayout, endDate, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, utils.NewValidationError("Invalid end date")
		}
		if end.Before(start) {
			return time.Time{}, time.Time{}, utils.NewValidationError("End date must not be before start date")
		}
		return utils.StartOfDay(start), utils.EndOfDay(end), nil
	}
	return time.Time{}, time.Time{}, utils.NewValidationError("Invalid period")
}

func salesReportScope(from, to time.Time) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("sales_reports.order_date BETWEEN ? AND ?", from, to)
	}
}

// GetSalesReport lists sales reports for a period, newest first, with totals over the whole period.
func GetSalesReport(ctx context.Context, q SalesReportQuery, now time.Time) (*SalesReportResponse, error) {
	started := time.Now()
	defer logSlowReport(ctx, "sales_report", started, map[string]any{"period": q.Period})

	from, to, err := DateRange(q.Period, q.StartDate, q.EndDate, now)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	p := models.PageRequest{Page: q.Page, Limit: q.Limit}.Normalize()

	page, err := models.FetchPage[models.SalesReport](
		db.Model(&models.SalesReport{}).Scopes(salesReportScope(from, to)),
		p, "order_date DESC, id DESC",
		func(q *gorm.DB) *gorm.DB {
			return q.Preload("Lines", func(q *gorm.DB) *gorm.DB { return q.Order("id") })
		})
	if err != nil {
		return nil, err
	}

	var orderAmount decimal.NullDecimal
	if err := db.Model(&models.SalesReport{}).
		Scopes(salesReportScope(from, to)).
		Select("SUM(final_amount)").
		Scan(&orderAmount).Error; err != nil {
		return nil, err
	}
	var discount decimal.NullDecimal
	if err := db.Model(&models.SalesReportLine{}).
		Joins("JOIN sales_reports ON sales_reports.id = sales_report_lines.report_id").
		Scopes(salesReportScope(from, to)).
		Select("SUM(sales_report_lines.discount + sales_report_lines.coupon_deduction)").
		Scan(&discount).Error; err != nil {
		return nil, err
	}

	return &SalesReportResponse{
		Reports:          page.Items,
		TotalSalesCount:  page.TotalCount,
		TotalOrderAmount: nullToZero(orderAmount),
		TotalDiscount:    nullToZero(discount),
		TotalPages:       page.TotalPages,
		Page:             page.CurrentPage,
	}, nil
}

// listSalesReports loads every report in the period for export.
func listSalesReports(ctx context.Context, from, to time.Time) ([]models.SalesReport, error) {
	var records []models.SalesReport
	err := config.GetDB().WithContext(ctx).
		Scopes(salesReportScope(from, to)).
		Preload("Lines", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		Order("order_date ASC, id ASC").
		Find(&records).Error
	return records, err
}

func nullToZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

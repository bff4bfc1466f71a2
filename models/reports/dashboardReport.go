package reports

import (
	"context"
	"strconv"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
)

type DashboardResponse struct {
	TotalUsers         int64           `json:"totalUsers"`
	TotalOrders        int64           `json:"totalOrders"`
	TotalSales         decimal.Decimal `json:"totalSales"`
	TotalPendingOrders int64           `json:"totalPendingOrders"`
}

func GetDashboardData(ctx context.Context) (*DashboardResponse, error) {
	db := config.GetDB().WithContext(ctx)
	var resp DashboardResponse

	if err := db.Model(&models.User{}).Where("role = ?", models.UserRoleUser).Count(&resp.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Count(&resp.TotalOrders).Error; err != nil {
		return nil, err
	}
	var sales decimal.NullDecimal
	if err := db.Model(&models.SalesReport{}).Select("SUM(final_amount)").Scan(&sales).Error; err != nil {
		return nil, err
	}
	resp.TotalSales = utils.RoundMoney(nullToZero(sales))
	if err := db.Model(&models.Order{}).
		Where("EXISTS (SELECT 1 FROM order_items WHERE order_items.order_id = orders.id AND order_items.status = ?)", models.OrderItemStatusPending).
		Count(&resp.TotalPendingOrders).Error; err != nil {
		return nil, err
	}
	return &resp, nil
}

type ChartPoint struct {
	Name       string          `json:"name"`
	Sales      decimal.Decimal `json:"sales"`
	OrderCount int             `json:"orderCount"`
	Customers  int             `json:"customers"`
}

type ChartTotals struct {
	Sales     decimal.Decimal `json:"sales"`
	Customers int             `json:"customers"`
	Orders    int             `json:"orders"`
}

type ChartResponse struct {
	Overview []ChartPoint `json:"overview"`
	Totals   ChartTotals  `json:"totals"`
}

// ChartRange parses the optional year and month query values into a date range.
// Without a year the current year is used.
func ChartRange(year, month string, now time.Time) (time.Time, time.Time, error) {
	y := now.Year()
	if year != "" {
		n, err := strconv.Atoi(year)
		if err != nil || n < 2000 || n > now.Year() {
			return time.Time{}, time.Time{}, utils.NewValidationError("Invalid year")
		}
		y = n
	}
	if month != "" {
		m, err := strconv.Atoi(month)
		if err != nil || m < 1 || m > 12 {
			return time.Time{}, time.Time{}, utils.NewValidationError("Invalid month")
		}
		if year == "" {
			// a month without a year is ignored
			return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC), nil
		}
		start := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1), nil
	}
	return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC), nil
}

type monthlySales struct {
	Name       string
	Sales      decimal.Decimal
	OrderCount int
}

type monthlyCustomers struct {
	Name      string
	Customers int
}

// mergeChart joins monthly sales with monthly sign-ups and sums the totals.
func mergeChart(sales []monthlySales, customers []monthlyCustomers) ChartResponse {
	byMonth := make(map[string]int, len(customers))
	for _, c := range customers {
		byMonth[c.Name] = c.Customers
	}
	resp := ChartResponse{Overview: make([]ChartPoint, 0, len(sales)), Totals: ChartTotals{Sales: decimal.Zero}}
	for _, s := range sales {
		point := ChartPoint{
			Name:       s.Name,
			Sales:      utils.RoundMoney(s.Sales),
			OrderCount: s.OrderCount,
			Customers:  byMonth[s.Name],
		}
		resp.Overview = append(resp.Overview, point)
		resp.Totals.Sales = resp.Totals.Sales.Add(point.Sales)
		resp.Totals.Orders += point.OrderCount
		resp.Totals.Customers += point.Customers
	}
	return resp
}

// GetChartData builds monthly sales from daily_sales_summaries. Sales are net of refunds.
func GetChartData(ctx context.Context, year, month string, now time.Time) (*ChartResponse, error) {
	started := time.Now()
	defer logSlowReport(ctx, "chart_data", started, map[string]any{"year": year, "month": month})

	from, to, err := ChartRange(year, month, now)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)

	var sales []monthlySales
	if err := db.Model(&models.DailySalesSummary{}).
		Select("DATE_FORMAT(summary_date, '%Y-%m') AS name, SUM(gross_sales - reversed_amount) AS sales, SUM(order_count) AS order_count").
		Where("summary_date BETWEEN ? AND ?", from.Format(queryDateLayout), to.Format(queryDateLayout)).
		Group("name").
		Order("name").
		Scan(&sales).Error; err != nil {
		return nil, err
	}

	var customers []monthlyCustomers
	if err := db.Model(&models.User{}).
		Select("DATE_FORMAT(created_at, '%Y-%m') AS name, COUNT(*) AS customers").
		Where("role = ? AND created_at BETWEEN ? AND ?", models.UserRoleUser, from, utils.EndOfDay(to)).
		Group("name").
		Order("name").
		Scan(&customers).Error; err != nil {
		return nil, err
	}

	resp := mergeChart(sales, customers)
	return &resp, nil
}

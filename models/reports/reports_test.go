package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var reportNow = time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

func TestDateRange(t *testing.T) {
	from, to, err := DateRange(PeriodDaily, "", "", reportNow)
	if err != nil || !from.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) || !to.Equal(reportNow) {
		t.Fatalf("daily: from=%s to=%s err=%v", from, to, err)
	}
	from, _, _ = DateRange(PeriodWeekly, "", "", reportNow)
	if !from.Equal(reportNow.AddDate(0, 0, -7)) {
		t.Fatalf("weekly: unexpected from %s", from)
	}
	from, _, _ = DateRange(PeriodYearly, "", "", reportNow)
	if !from.Equal(reportNow.AddDate(-1, 0, 0)) {
		t.Fatalf("yearly: unexpected from %s", from)
	}

	from, to, err = DateRange(PeriodCustom, "2026-01-01", "2026-01-31", reportNow)
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if !from.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) || to.Day() != 31 || to.Hour() != 23 {
		t.Fatalf("custom: from=%s to=%s", from, to)
	}

	invalid := []struct {
		period     Period
		start, end string
		message    string
	}{
		{PeriodCustom, "", "2026-01-31", "Start date and end date are required"},
		{PeriodCustom, "01/01/2026", "2026-01-31", "Invalid start date"},
		{PeriodCustom, "2026-02-01", "2026-01-31", "End date must not be before start date"},
		{Period("hourly"), "", "", "Invalid period"},
	}
	for _, tc := range invalid {
		_, _, err := DateRange(tc.period, tc.start, tc.end, reportNow)
		if !utils.IsStatus(err, 400) || err.Error() != tc.message {
			t.Fatalf("%s %q-%q: expected %q, got %v", tc.period, tc.start, tc.end, tc.message, err)
		}
	}
}

func TestChartRange(t *testing.T) {
	from, to, err := ChartRange("2025", "2", reportNow)
	if err != nil || !from.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("february: from=%s to=%s err=%v", from, to, err)
	}
	from, to, err = ChartRange("", "7", reportNow)
	if err != nil || from.Month() != time.January || to.Month() != time.December || from.Year() != 2026 {
		t.Fatalf("month without year: from=%s to=%s err=%v", from, to, err)
	}
	for _, tc := range [][2]string{{"1999", ""}, {"2027", ""}, {"abc", ""}, {"2025", "13"}} {
		if _, _, err := ChartRange(tc[0], tc[1], reportNow); !utils.IsStatus(err, 400) {
			t.Fatalf("year=%q month=%q: expected a validation error, got %v", tc[0], tc[1], err)
		}
	}
}

func TestMergeChart(t *testing.T) {
	resp := mergeChart(
		[]monthlySales{
			{Name: "Jan", Sales: decimal.RequireFromString("100.005"), OrderCount: 2},
			{Name: "Feb", Sales: decimal.NewFromInt(50), OrderCount: 1},
		},
		[]monthlyCustomers{{Name: "Feb", Customers: 4}},
	)
	if len(resp.Overview) != 2 || resp.Overview[0].Customers != 0 || resp.Overview[1].Customers != 4 {
		t.Fatalf("unexpected overview %+v", resp.Overview)
	}
	if resp.Totals.Orders != 3 || resp.Totals.Customers != 4 || !resp.Totals.Sales.Equal(decimal.RequireFromString("150.01")) {
		t.Fatalf("unexpected totals %+v", resp.Totals)
	}
}

func sampleReports() []models.SalesReport {
	return []models.SalesReport{{
		OrderId:       7,
		CustomerName:  "Asha",
		PaymentMethod: models.PaymentMethodWallet,
		FinalAmount:   decimal.RequireFromString("1468.1"),
		OrderDate:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Lines: []models.SalesReportLine{
			{ProductName: "Pixel 9", Quantity: 2, UnitPrice: decimal.NewFromInt(799), TotalPrice: decimal.NewFromInt(1598),
				Discount: decimal.RequireFromString("79.9"), CouponDeduction: decimal.NewFromInt(50), DeliveryStatus: models.OrderItemStatusPending},
			{ProductName: "Charger", Quantity: 1, UnitPrice: decimal.NewFromInt(39), TotalPrice: decimal.NewFromInt(39),
				Discount: decimal.Zero, CouponDeduction: decimal.NewFromInt(50), DeliveryStatus: models.OrderItemStatusShipped},
		},
	}}
}

func TestSalesReportRows(t *testing.T) {
	rows := salesReportRows(sampleReports())
	if len(rows) != 2 {
		t.Fatalf("expected one row per line, got %d", len(rows))
	}
	if len(rows[0]) != len(salesReportColumns) {
		t.Fatalf("expected %d columns, got %d", len(salesReportColumns), len(rows[0]))
	}
	if rows[0][0] != "March 1, 2026" || rows[0][4] != "Pixel 9" || rows[1][3] != string(models.OrderItemStatusShipped) {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestWriteSalesReportWorkbook(t *testing.T) {
	data, err := writeSalesReportWorkbook(sampleReports())
	if err != nil {
		t.Fatalf("writeSalesReportWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(salesReportSheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 || rows[0][0] != "Order Date" || rows[2][4] != "Charger" {
		t.Fatalf("unexpected sheet contents %v", rows)
	}
}

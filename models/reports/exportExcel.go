package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const salesReportSheet = "Sales Report"

var salesReportColumns = []string{
	"Order Date",
	"Customer Name",
	"Payment Method",
	"Delivery Status",
	"Product Name",
	"Quantity",
	"Unit Price",
	"Total Price",
	"Discount",
	"Coupon Deduction",
	"Final Amount",
}

type SalesReportExport struct {
	FileName string
	Data     []byte
	// ArchiveURI is the gs:// copy, empty when archiving is off or failed.
	ArchiveURI string
}

// salesReportRows flattens reports into one row per line, in column order.
func salesReportRows(records []models.SalesReport) [][]interface{} {
	rows := make([][]interface{}, 0, len(records))
	for _, r := range records {
		for _, line := range r.Lines {
			rows = append(rows, []interface{}{
				utils.FormatDisplayDate(r.OrderDate),
				r.CustomerName,
				string(r.PaymentMethod),
				string(line.DeliveryStatus),
				line.ProductName,
				line.Quantity,
				line.UnitPrice.InexactFloat64(),
				line.TotalPrice.InexactFloat64(),
				line.Discount.InexactFloat64(),
				line.CouponDeduction.InexactFloat64(),
				r.FinalAmount.InexactFloat64(),
			})
		}
	}
	return rows
}

func writeSalesReportWorkbook(records []models.SalesReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", salesReportSheet); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(salesReportSheet, "A", "K", 18); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(salesReportSheet, "A1", &salesReportColumns); err != nil {
		return nil, err
	}
	for i, row := range salesReportRows(records) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := row
		if err := f.SetSheetRow(salesReportSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportSalesReportExcel renders the period as an xlsx workbook and, when
// REPORT_EXPORT_BUCKET is set, archives a copy to GCS.
func ExportSalesReportExcel(ctx context.Context, q SalesReportQuery, now time.Time) (*SalesReportExport, error) {
	started := time.Now()
	defer logSlowReport(ctx, "sales_report_excel", started, map[string]any{"period": q.Period})

	from, to, err := DateRange(q.Period, q.StartDate, q.EndDate, now)
	if err != nil {
		return nil, err
	}
	records, err := listSalesReports(ctx, from, to)
	if err != nil {
		return nil, err
	}
	data, err := writeSalesReportWorkbook(records)
	if err != nil {
		return nil, fmt.Errorf("write sales report workbook: %w", err)
	}

	export := &SalesReportExport{FileName: "sales_report.xlsx", Data: data}
	if bucket := utils.ReportExportBucket(); bucket != "" {
		object := fmt.Sprintf("sales-reports/%s_%s_%d.xlsx", from.Format(queryDateLayout), to.Format(queryDateLayout), now.Unix())
		uri, err := utils.UploadBytesToGCS(ctx, bucket, object, utils.XlsxContentType, data)
		if err != nil {
			// the download still succeeds without the archive copy
			config.LogError(config.GetLogger(), "ExportExcel.go", "ExportSalesReportExcel", "archive sales report", object, err)
		} else {
			export.ArchiveURI = uri
			config.GetLogger().WithFields(logrus.Fields{
				"field": "ExportSalesReportExcel",
				"uri":   uri,
			}).Info("sales report archived")
		}
	}
	return export, nil
}

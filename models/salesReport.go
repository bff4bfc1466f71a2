package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SalesReport is the denormalized per-order row the admin sales report reads.
type SalesReport struct {
	ID             int               `gorm:"primary_key" json:"id"`
	OrderId        int               `gorm:"not null;uniqueIndex" json:"orderId"`
	CustomerId     int               `gorm:"not null;index" json:"customer"`
	CustomerName   string            `gorm:"size:255" json:"customer_name"`
	PaymentMethod  PaymentMethod     `gorm:"size:30;not null" json:"paymentMethod"`
	FinalAmount    decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"finalAmount"`
	OrderDate      time.Time         `gorm:"index;not null" json:"orderDate"`
	DeliveryStatus OrderItemStatus   `gorm:"size:20;not null" json:"deliveryStatus"`
	Lines          []SalesReportLine `gorm:"foreignKey:ReportId" json:"product"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// SalesReportLine carries its own delivery status so item transitions touch only their line.
type SalesReportLine struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ReportId        int             `gorm:"not null;index" json:"report_id"`
	OrderItemId     int             `gorm:"not null;uniqueIndex" json:"order_item_id"`
	ProductId       int             `gorm:"not null;index" json:"product_id"`
	ProductName     string          `gorm:"size:255" json:"productName"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unitPrice"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"totalPrice"`
	Discount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	CouponDeduction decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"couponDeduction"`
	DeliveryStatus  OrderItemStatus `gorm:"size:20;not null" json:"deliveryStatus"`
}

// NetAmount is what the customer paid for the line before coupon.
func (l SalesReportLine) NetAmount() decimal.Decimal {
	return utils.RoundMoney(l.TotalPrice.Sub(l.Discount))
}

const fallbackProductName = "Product Name"

// BuildSalesReport derives the report row and its lines from a placed order.
func BuildSalesReport(order *Order, customer *User, productNames map[int]string) SalesReport {
	lines := make([]SalesReportLine, 0, len(order.Items))
	for _, item := range order.Items {
		total := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		name := productNames[item.ProductId]
		if name == "" {
			name = fallbackProductName
		}
		lines = append(lines, SalesReportLine{
			OrderItemId:     item.ID,
			ProductId:       item.ProductId,
			ProductName:     name,
			Quantity:        item.Quantity,
			UnitPrice:       item.Price,
			TotalPrice:      total,
			Discount:        utils.RoundMoney(item.Discount.Div(decimalOneHundred).Mul(total)),
			CouponDeduction: order.CouponDiscount,
			DeliveryStatus:  item.Status,
		})
	}

	finalAmount := order.TotalPriceWithDiscount
	if finalAmount.IsZero() {
		finalAmount = order.TotalAmount.Sub(order.CouponDiscount)
	}

	status := OrderItemStatusPending
	if len(order.Items) > 0 {
		status = order.Items[0].Status
	}

	report := SalesReport{
		OrderId:        order.ID,
		CustomerId:     order.UserId,
		PaymentMethod:  order.PaymentMethod,
		FinalAmount:    finalAmount,
		OrderDate:      order.PlacedAt,
		DeliveryStatus: status,
		Lines:          lines,
	}
	if customer != nil {
		report.CustomerName = customer.FirstName + " " + customer.LastName
	}
	return report
}

// CreateSalesReport writes exactly one report per order, inside the placement transaction.
func CreateSalesReport(tx *gorm.DB, order *Order, customer *User, productNames map[int]string) (*SalesReport, error) {
	report := BuildSalesReport(order, customer, productNames)
	if err := tx.Create(&report).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("sales report for order %d already exists: %w", order.ID, err)
		}
		return nil, err
	}
	return &report, nil
}

// SummarizeDeliveryStatus: uniform lines give that status; otherwise the
// least-advanced status among lines still in flight.
func SummarizeDeliveryStatus(lines []SalesReportLine) OrderItemStatus {
	if len(lines) == 0 {
		return OrderItemStatusPending
	}
	var best OrderItemStatus
	bestOpen := false
	for _, line := range lines {
		status := line.DeliveryStatus
		open := !status.IsTerminal()
		switch {
		case best == "":
			best, bestOpen = status, open
		case open && !bestOpen:
			best, bestOpen = status, true
		case open == bestOpen && status.rank() < best.rank():
			best = status
		}
	}
	return best
}

// MarkSalesReportLineStatus mirrors an order item's status onto its report line
// and refreshes the report summary. A line leaving the sale (Cancelled, Returned)
// is taken out of final_amount, never below zero.
func MarkSalesReportLineStatus(tx *gorm.DB, orderItemId int, status OrderItemStatus) error {
	var line SalesReportLine
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_item_id = ?", orderItemId).
		First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("sales report line for order item %d: %w", orderItemId, utils.ErrorRecordNotFound)
		}
		return err
	}
	var report SalesReport
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&report, line.ReportId).Error; err != nil {
		return err
	}

	leavingSale := status.IsTerminal() && !line.DeliveryStatus.IsTerminal()
	if err := tx.Model(&SalesReportLine{}).Where("id = ?", line.ID).Update("delivery_status", status).Error; err != nil {
		return err
	}

	var lines []SalesReportLine
	if err := tx.Where("report_id = ?", report.ID).Find(&lines).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"delivery_status": SummarizeDeliveryStatus(lines),
	}
	if leavingSale {
		final := report.FinalAmount.Sub(line.NetAmount())
		if final.IsNegative() {
			final = decimal.Zero
		}
		updates["final_amount"] = final
	}
	return tx.Model(&SalesReport{}).Where("id = ?", report.ID).Updates(updates).Error
}

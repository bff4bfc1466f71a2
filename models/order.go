package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryLeadTime is added to placed_at to get delivery_by.
const DeliveryLeadTime = 7 * 24 * time.Hour

type ShippingAddress struct {
	AddressType string `gorm:"size:50" json:"address_type"`
	Address     string `gorm:"size:500" json:"address" binding:"required"`
	District    string `gorm:"size:100" json:"district" binding:"required"`
	State       string `gorm:"size:100" json:"state" binding:"required"`
	Zip         string `gorm:"size:20" json:"zip" binding:"required"`
	Phone       string `gorm:"size:30" json:"phone" binding:"required,phone"`
}

type Order struct {
	ID                     int             `gorm:"primary_key" json:"id"`
	OrderNumber            string          `gorm:"size:64;not null;uniqueIndex" json:"order_number"`
	UserId                 int             `gorm:"index;not null" json:"user_id"`
	User                   *User           `gorm:"foreignKey:UserId" json:"user,omitempty"`
	ShippingAddress        ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	PaymentMethod          PaymentMethod   `gorm:"size:30;not null" json:"payment_method"`
	PaymentStatus          PaymentStatus   `gorm:"size:20;not null;default:'Pending'" json:"payment_status"`
	TotalAmount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CouponId               *int            `gorm:"index" json:"coupon_id"`
	CouponDiscount         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"coupon_discount"`
	ShippingFee            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"shipping_fee"`
	TotalPriceWithDiscount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price_with_discount"`
	PlacedAt               time.Time       `gorm:"index;not null" json:"placed_at"`
	DeliveryBy             time.Time       `gorm:"not null" json:"delivery_by"`
	Items                  []OrderItem     `gorm:"foreignKey:OrderId" json:"order_items"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderItem is one purchased variant. The return request lives on the item.
type OrderItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	OrderId           int             `gorm:"not null;uniqueIndex:uniq_order_line,priority:1" json:"order_id"`
	ProductId         int             `gorm:"not null;index;uniqueIndex:uniq_order_line,priority:2" json:"product_id"`
	VariantSku        string          `gorm:"size:100;not null;uniqueIndex:uniq_order_line,priority:3" json:"variant"`
	Quantity          int             `gorm:"not null" json:"quantity"`
	Price             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Discount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	TotalPrice        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	Status            OrderItemStatus `gorm:"size:20;not null;default:'Pending';index" json:"order_status"`
	ReturnRequested   bool            `gorm:"not null;default:false" json:"-"`
	ReturnReason      string          `gorm:"size:255" json:"-"`
	ReturnComment     string          `gorm:"type:text" json:"-"`
	ReturnApproved    bool            `gorm:"not null;default:false" json:"-"`
	ReturnResponded   bool            `gorm:"not null;default:false" json:"-"`
	ReturnRequestedAt *time.Time      `json:"-"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ReturnRequest struct {
	IsRequested    bool   `json:"is_requested"`
	IsApproved     bool   `json:"is_approved"`
	Reason         string `json:"reason"`
	Comment        string `json:"comment"`
	IsResponseSend bool   `json:"is_response_send"`
}

func (i OrderItem) ReturnRequest() ReturnRequest {
	return ReturnRequest{
		IsRequested:    i.ReturnRequested,
		IsApproved:     i.ReturnApproved,
		Reason:         i.ReturnReason,
		Comment:        i.ReturnComment,
		IsResponseSend: i.ReturnResponded,
	}
}

func (i OrderItem) StockRef() StockRef {
	return StockRef{
		ProductId:   i.ProductId,
		Sku:         i.VariantSku,
		Quantity:    i.Quantity,
		OrderId:     i.OrderId,
		OrderItemId: i.ID,
	}
}

// ReturnDeadline is the last instant an item of this order may be returned.
func (o Order) ReturnDeadline(windowDays int) time.Time {
	return o.PlacedAt.AddDate(0, 0, windowDays)
}

func (o Order) IsReturnEligible(now time.Time, windowDays int) bool {
	return !now.After(o.ReturnDeadline(windowDays))
}

// OrderLineRef names one line of an order. A SKU is only unique within its
// product, so ProductId is needed when two products of the order share a SKU.
// Zero ProductId matches any product.
type OrderLineRef struct {
	Sku       string
	ProductId int
}

func (r OrderLineRef) String() string {
	if r.ProductId == 0 {
		return r.Sku
	}
	return fmt.Sprintf("%d/%s", r.ProductId, r.Sku)
}

func (r OrderLineRef) matches(item OrderItem) bool {
	return item.VariantSku == r.Sku && (r.ProductId == 0 || item.ProductId == r.ProductId)
}

// pickOrderLine returns the single item ref points at.
func pickOrderLine(items []OrderItem, ref OrderLineRef) (*OrderItem, error) {
	var found *OrderItem
	for i := range items {
		if !ref.matches(items[i]) {
			continue
		}
		if found != nil {
			return nil, utils.NewValidationError("Variant " + ref.Sku + " matches more than one product, product_id is required")
		}
		found = &items[i]
	}
	if found == nil {
		return nil, utils.NewNotFoundError("Order item not found")
	}
	return found, nil
}

func (o Order) FindItem(ref OrderLineRef) (*OrderItem, error) {
	return pickOrderLine(o.Items, ref)
}

// LockOrderItem loads an order and the line ref points at FOR UPDATE.
func LockOrderItem(tx *gorm.DB, orderId int, ref OrderLineRef) (*Order, *OrderItem, error) {
	var order Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.NewNotFoundError("Order not found")
		}
		return nil, nil, err
	}
	var items []OrderItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND variant_sku = ?", orderId, ref.Sku).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, nil, err
	}
	item, err := pickOrderLine(items, ref)
	if err != nil {
		return &order, nil, err
	}
	return &order, item, nil
}

func SetOrderItemStatus(tx *gorm.DB, item *OrderItem, status OrderItemStatus) error {
	if err := tx.Model(&OrderItem{}).Where("id = ?", item.ID).Update("status", status).Error; err != nil {
		return err
	}
	item.Status = status
	return nil
}

// ListUserOrders returns the user's orders, newest first.
func ListUserOrders(ctx context.Context, db *gorm.DB, userId int) ([]Order, error) {
	orders := make([]Order, 0)
	err := db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		Where("user_id = ?", userId).
		Order("placed_at DESC, id DESC").
		Find(&orders).Error
	return orders, err
}

// GetUserOrder loads one order with items and user, checking ownership.
func GetUserOrder(ctx context.Context, db *gorm.DB, userId, orderId int) (*Order, error) {
	var order Order
	err := db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		Preload("User").
		First(&order, orderId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("Order not found")
		}
		return nil, err
	}
	if order.UserId != userId {
		return nil, utils.NewForbiddenError("Order does not belong to this user")
	}
	return &order, nil
}

// ListOrders is the admin listing, newest first.
func ListOrders(ctx context.Context, db *gorm.DB, p PageRequest) (*Page[Order], error) {
	return FetchPage[Order](db.WithContext(ctx).Model(&Order{}), p, "placed_at DESC, id DESC",
		func(q *gorm.DB) *gorm.DB {
			return q.Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id") })
		})
}

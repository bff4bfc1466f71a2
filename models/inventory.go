package models

import (
	"fmt"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"gorm.io/gorm"
)

// StockMovement is the append-only audit of every variant stock mutation.
// For each row stock_delta == -sold_delta.
type StockMovement struct {
	ID          int                 `gorm:"primary_key" json:"id"`
	VariantId   int                 `gorm:"index;not null" json:"variant_id"`
	ProductId   int                 `gorm:"index;not null" json:"product_id"`
	Sku         string              `gorm:"size:100;not null" json:"sku"`
	OrderId     int                 `gorm:"index" json:"order_id"`
	OrderItemId int                 `gorm:"index" json:"order_item_id"`
	Reason      StockMovementReason `gorm:"size:20;not null" json:"reason"`
	StockDelta  int                 `gorm:"not null" json:"stock_delta"`
	SoldDelta   int                 `gorm:"not null" json:"sold_delta"`
	CreatedAt   time.Time           `gorm:"autoCreateTime;index" json:"created_at"`
}

// StockRef identifies the order line a stock mutation belongs to.
type StockRef struct {
	ProductId   int
	Sku         string
	Quantity    int
	OrderId     int
	OrderItemId int
}

// ReserveStock atomically decrements stock and increments sold for one variant.
// The decrement only happens when stock >= quantity, so concurrent orders cannot oversell.
func ReserveStock(tx *gorm.DB, ref StockRef) error {
	if ref.Quantity <= 0 {
		return utils.NewValidationError("Quantity must be at least 1")
	}
	res := tx.Model(&ProductVariant{}).
		Where("product_id = ? AND sku = ? AND stock >= ?", ref.ProductId, ref.Sku, ref.Quantity).
		Updates(map[string]interface{}{
			"stock":         gorm.Expr("stock - ?", ref.Quantity),
			"quantity_sold": gorm.Expr("quantity_sold + ?", ref.Quantity),
		})
	if res.Error != nil {
		return fmt.Errorf("reserve stock %s: %w", ref.Sku, res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewValidationError("Not enough stock for variant: " + ref.Sku)
	}

	if err := tx.Model(&Product{}).
		Where("id = ?", ref.ProductId).
		Update("quantity_sold", gorm.Expr("quantity_sold + ?", ref.Quantity)).Error; err != nil {
		return fmt.Errorf("bump product quantity_sold: %w", err)
	}
	return appendStockMovement(tx, ref, StockMovementSale, -ref.Quantity, ref.Quantity)
}

// RestoreStock is the inverse of ReserveStock for a cancelled or returned line.
func RestoreStock(tx *gorm.DB, ref StockRef, reason StockMovementReason) error {
	if ref.Quantity <= 0 {
		return utils.NewValidationError("Quantity must be at least 1")
	}
	res := tx.Model(&ProductVariant{}).
		Where("product_id = ? AND sku = ? AND quantity_sold >= ?", ref.ProductId, ref.Sku, ref.Quantity).
		Updates(map[string]interface{}{
			"stock":         gorm.Expr("stock + ?", ref.Quantity),
			"quantity_sold": gorm.Expr("quantity_sold - ?", ref.Quantity),
		})
	if res.Error != nil {
		return fmt.Errorf("restore stock %s: %w", ref.Sku, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("restore stock %s: variant missing or quantity_sold below %d", ref.Sku, ref.Quantity)
	}

	if err := tx.Model(&Product{}).
		Where("id = ?", ref.ProductId).
		Update("quantity_sold", gorm.Expr("GREATEST(quantity_sold - ?, 0)", ref.Quantity)).Error; err != nil {
		return fmt.Errorf("drop product quantity_sold: %w", err)
	}
	return appendStockMovement(tx, ref, reason, ref.Quantity, -ref.Quantity)
}

func appendStockMovement(tx *gorm.DB, ref StockRef, reason StockMovementReason, stockDelta, soldDelta int) error {
	var variantId int
	if err := tx.Model(&ProductVariant{}).
		Select("id").
		Where("product_id = ? AND sku = ?", ref.ProductId, ref.Sku).
		Scan(&variantId).Error; err != nil {
		return err
	}
	movement := StockMovement{
		VariantId:   variantId,
		ProductId:   ref.ProductId,
		Sku:         ref.Sku,
		OrderId:     ref.OrderId,
		OrderItemId: ref.OrderItemId,
		Reason:      reason,
		StockDelta:  stockDelta,
		SoldDelta:   soldDelta,
	}
	return tx.Create(&movement).Error
}

// VariantMovementTotal is the per-variant sum of ledger deltas.
type VariantMovementTotal struct {
	VariantId  int
	StockDelta int
	SoldDelta  int
}

func GetVariantMovementTotals(tx *gorm.DB) ([]VariantMovementTotal, error) {
	var totals []VariantMovementTotal
	err := tx.Model(&StockMovement{}).
		Select("variant_id, SUM(stock_delta) AS stock_delta, SUM(sold_delta) AS sold_delta").
		Group("variant_id").
		Scan(&totals).Error
	return totals, err
}

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

type Cart struct {
	ID          int             `gorm:"primary_key" json:"id"`
	UserId      int             `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"totalAmount"`
	Items       []CartItem      `gorm:"foreignKey:CartId" json:"items"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type CartItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	CartId     int             `gorm:"not null;uniqueIndex:uniq_cart_variant,priority:1" json:"cart_id"`
	ProductId  int             `gorm:"not null;index;uniqueIndex:uniq_cart_variant,priority:2" json:"product_id"`
	VariantSku string          `gorm:"size:100;not null;uniqueIndex:uniq_cart_variant,priority:3" json:"variant"`
	Quantity   int             `gorm:"not null;default:1" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Discount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"totalPrice"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *CartItem) reprice() {
	i.TotalPrice = LineTotal(i.Price, i.Discount, i.Quantity)
}

func ensureCart(tx *gorm.DB, userId int) (*Cart, error) {
	cart := Cart{UserId: userId, TotalAmount: decimal.Zero}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&cart).Error; err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}
	if err := tx.Where("user_id = ?", userId).First(&cart).Error; err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return &cart, nil
}

// GetOrCreateCart returns the user's cart with items, creating an empty cart if needed.
func GetOrCreateCart(ctx context.Context, db *gorm.DB, userId int) (*Cart, error) {
	cart, err := ensureCart(db.WithContext(ctx), userId)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Where("cart_id = ?", cart.ID).Order("id").Find(&cart.Items).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

type AddToCartInput struct {
	ProductId int    `json:"product_id" binding:"required"`
	Variant   string `json:"variant" binding:"required"`
}

// AddToCart adds one unit of a variant, priced from the catalog at now.
func AddToCart(ctx context.Context, db *gorm.DB, userId int, input *AddToCartInput, now time.Time) (*Cart, error) {
	product, err := GetProduct(ctx, db, input.ProductId)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, utils.NewValidationError("Product is not available")
	}
	variant, ok := product.FindVariant(input.Variant)
	if !ok {
		return nil, utils.NewNotFoundError("Variant not found: " + input.Variant)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := ensureCart(tx, userId)
		if err != nil {
			return err
		}
		item := CartItem{
			CartId:     cart.ID,
			ProductId:  product.ID,
			VariantSku: variant.Sku,
			Quantity:   1,
			Price:      variant.Price,
			Discount:   product.EffectiveDiscount(now),
		}
		item.reprice()
		if err := tx.Create(&item).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return utils.NewConflictError("Product already in Cart")
			}
			return err
		}
		return RecomputeCartTotal(tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return GetOrCreateCart(ctx, db, userId)
}

// FindCartItem looks up a variant in the user's cart.
func FindCartItem(ctx context.Context, db *gorm.DB, userId, productId int, sku string) (*CartItem, error) {
	var item CartItem
	err := db.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ? AND cart_items.product_id = ? AND cart_items.variant_sku = ?", userId, productId, sku).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("Product not found in cart")
		}
		return nil, err
	}
	return &item, nil
}

type UpdateCartQuantityInput struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// UpdateCartQuantity sets the quantity of the line with sku, bounded by variant stock.
func UpdateCartQuantity(ctx context.Context, db *gorm.DB, userId int, sku string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, utils.NewValidationError("Quantity must be at least 1")
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item CartItem
		err := tx.Joins("JOIN carts ON carts.id = cart_items.cart_id").
			Where("carts.user_id = ? AND cart_items.variant_sku = ?", userId, sku).
			First(&item).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("Product not found in cart")
			}
			return err
		}

		var variant ProductVariant
		if err := tx.Where("product_id = ? AND sku = ?", item.ProductId, sku).First(&variant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("Variant not found: " + sku)
			}
			return err
		}
		if quantity > variant.Stock {
			return utils.NewValidationError("Quantity exceeds available stock")
		}

		item.Quantity = quantity
		item.reprice()
		if err := tx.Model(&CartItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"quantity":    item.Quantity,
			"total_price": item.TotalPrice,
		}).Error; err != nil {
			return err
		}
		return RecomputeCartTotal(tx, item.CartId)
	})
	if err != nil {
		return nil, err
	}
	return GetOrCreateCart(ctx, db, userId)
}

func RemoveCartItem(ctx context.Context, db *gorm.DB, userId int, sku string) (*Cart, error) {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := ensureCart(tx, userId)
		if err != nil {
			return err
		}
		if err := tx.Where("cart_id = ? AND variant_sku = ?", cart.ID, sku).Delete(&CartItem{}).Error; err != nil {
			return err
		}
		return RecomputeCartTotal(tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return GetOrCreateCart(ctx, db, userId)
}

// RemoveProductsFromCart drops every line of the given products and recomputes the total.
// It is a no-op for users without a cart.
func RemoveProductsFromCart(tx *gorm.DB, userId int, productIds []int) error {
	var cart Cart
	err := tx.Where("user_id = ?", userId).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(productIds) > 0 {
		if err := tx.Where("cart_id = ? AND product_id IN ?", cart.ID, utils.UniqueSlice(productIds)).
			Delete(&CartItem{}).Error; err != nil {
			return fmt.Errorf("remove ordered products from cart: %w", err)
		}
	}
	return RecomputeCartTotal(tx, cart.ID)
}

// RecomputeCartTotal persists total_amount = sum of item totals.
func RecomputeCartTotal(tx *gorm.DB, cartId int) error {
	var total decimal.NullDecimal
	if err := tx.Model(&CartItem{}).
		Select("SUM(total_price)").
		Where("cart_id = ?", cartId).
		Scan(&total).Error; err != nil {
		return err
	}
	amount := decimal.Zero
	if total.Valid {
		amount = total.Decimal
	}
	return tx.Model(&Cart{}).Where("id = ?", cartId).Update("total_amount", amount).Error
}

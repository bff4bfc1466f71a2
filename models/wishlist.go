package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"gorm.io/gorm"
)

type WishlistItem struct {
	ID         int       `gorm:"primary_key" json:"id"`
	UserId     int       `gorm:"not null;uniqueIndex:uniq_wishlist_variant,priority:1" json:"user_id"`
	ProductId  int       `gorm:"not null;index;uniqueIndex:uniq_wishlist_variant,priority:2" json:"product_id"`
	VariantSku string    `gorm:"size:100;not null;uniqueIndex:uniq_wishlist_variant,priority:3" json:"variant"`
	Product    *Product  `gorm:"foreignKey:ProductId" json:"product,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type WishlistInput struct {
	ProductId int    `json:"productId" form:"productId" binding:"required"`
	Variant   string `json:"variant" form:"variant" binding:"required"`
}

// ListWishlist returns the user's wishlist, skipping inactive products.
func ListWishlist(ctx context.Context, db *gorm.DB, userId int) ([]WishlistItem, error) {
	items := make([]WishlistItem, 0)
	err := db.WithContext(ctx).
		Joins("JOIN products ON products.id = wishlist_items.product_id AND products.is_active = ?", true).
		Preload("Product.Variants").
		Where("wishlist_items.user_id = ?", userId).
		Order("wishlist_items.id DESC").
		Find(&items).Error
	return items, err
}

func AddToWishlist(ctx context.Context, db *gorm.DB, userId int, input *WishlistInput) (*WishlistItem, error) {
	if err := utils.ValidateResourceId[Product](ctx, db, input.ProductId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewNotFoundError("Product not found")
		}
		return nil, err
	}
	item := WishlistItem{UserId: userId, ProductId: input.ProductId, VariantSku: input.Variant}
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return nil, utils.NewConflictError("Product already in wishlist")
		}
		return nil, err
	}
	return &item, nil
}

func RemoveFromWishlist(ctx context.Context, db *gorm.DB, userId int, input *WishlistInput) error {
	res := db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND variant_sku = ?", userId, input.ProductId, input.Variant).
		Delete(&WishlistItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError("Product not found in wishlist")
	}
	return nil
}

func IsInWishlist(ctx context.Context, db *gorm.DB, userId int, input *WishlistInput) (bool, error) {
	count, err := utils.ResourceCountWhere[WishlistItem](ctx, db,
		"user_id = ? AND product_id = ? AND variant_sku = ?", userId, input.ProductId, input.Variant)
	return count > 0, err
}

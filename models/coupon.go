package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Coupon struct {
	ID                 int                 `gorm:"primary_key" json:"id"`
	Code               string              `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Description        string              `gorm:"type:text" json:"description"`
	DiscountType       DiscountType        `gorm:"size:20;not null" json:"discount_type"`
	DiscountValue      decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"discount_value"`
	MinPurchaseAmount  decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"min_purchase_amount"`
	MaxDiscountAmount  decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"max_discount_amount"`
	ExpirationDate     time.Time           `gorm:"index;not null" json:"expiration_date"`
	UsageLimit         *int                `json:"usage_limit"`
	IsActive           bool                `gorm:"not null;default:true;index" json:"is_active"`
	EligibleCategories []Category          `gorm:"many2many:coupon_categories" json:"eligible_categories"`
	CreatedAt          time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// CouponUsage counts how many orders a user has placed with a coupon.
type CouponUsage struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CouponId  int       `gorm:"not null;uniqueIndex:uniq_coupon_user,priority:1" json:"coupon_id"`
	UserId    int       `gorm:"not null;uniqueIndex:uniq_coupon_user,priority:2;index" json:"user_id"`
	UsedCount int       `gorm:"not null;default:0" json:"used_count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c Coupon) IsEligibleCategory(categoryId int) bool {
	for _, category := range c.EligibleCategories {
		if category.ID == categoryId {
			return true
		}
	}
	return false
}

// CheckUsable rejects inactive and expired coupons.
func (c Coupon) CheckUsable(now time.Time) error {
	if !c.IsActive {
		return utils.NewValidationError("Coupon is not active")
	}
	if c.ExpirationDate.Before(now) {
		return utils.NewValidationError("Coupon has expired")
	}
	return nil
}

func (c Coupon) limitReached(usedCount int) bool {
	return c.UsageLimit != nil && usedCount >= *c.UsageLimit
}

// ComputeCouponDiscount returns the discount a coupon grants on amount.
// Percentage discounts round up to a whole unit; both kinds are capped by
// max_discount_amount and never exceed the amount itself.
func ComputeCouponDiscount(c Coupon, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = amount.Mul(c.DiscountValue).Div(decimalOneHundred).Ceil()
	case DiscountTypeFixed:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}
	if c.MaxDiscountAmount.Valid && discount.GreaterThan(c.MaxDiscountAmount.Decimal) {
		discount = c.MaxDiscountAmount.Decimal
	}
	if discount.GreaterThan(amount) {
		discount = amount
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// CouponLine is one priced line the coupon may apply to.
type CouponLine struct {
	CategoryId int
	Amount     decimal.Decimal
}

// CouponDiscountForLines sums the discount over eligible lines that meet the minimum purchase.
func CouponDiscountForLines(c Coupon, lines []CouponLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if !c.IsEligibleCategory(line.CategoryId) {
			continue
		}
		if c.MinPurchaseAmount.GreaterThan(line.Amount) {
			continue
		}
		total = total.Add(ComputeCouponDiscount(c, line.Amount))
	}
	return total
}

func GetCouponByCode(ctx context.Context, db *gorm.DB, code string) (*Coupon, error) {
	var coupon Coupon
	err := db.WithContext(ctx).
		Preload("EligibleCategories").
		Where("code = ?", NormalizeCouponCode(code)).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("Coupon not found")
		}
		return nil, err
	}
	return &coupon, nil
}

func GetCouponUsedCount(ctx context.Context, db *gorm.DB, couponId, userId int) (int, error) {
	var usage CouponUsage
	err := db.WithContext(ctx).
		Where("coupon_id = ? AND user_id = ?", couponId, userId).
		Limit(1).
		Find(&usage).Error
	return usage.UsedCount, err
}

// RedeemCoupon increments the user's used_count by exactly one, refusing to pass usage_limit.
func RedeemCoupon(tx *gorm.DB, coupon *Coupon, userId int) error {
	if coupon.limitReached(0) {
		return utils.NewValidationError("Coupon usage limit reached for this user")
	}

	usage := CouponUsage{CouponId: coupon.ID, UserId: userId, UsedCount: 1}
	err := tx.Create(&usage).Error
	if err == nil {
		return nil
	}
	if !IsDuplicateKeyErr(err) {
		return fmt.Errorf("insert coupon usage: %w", err)
	}

	query := tx.Model(&CouponUsage{}).Where("coupon_id = ? AND user_id = ?", coupon.ID, userId)
	if coupon.UsageLimit != nil {
		query = query.Where("used_count < ?", *coupon.UsageLimit)
	}
	res := query.Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("increment coupon usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewValidationError("Coupon usage limit reached for this user")
	}
	return nil
}

type ApplyCouponItem struct {
	CategoryId int             `json:"category_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

type ApplyCouponRequest struct {
	Code  string            `json:"code" binding:"required"`
	Items []ApplyCouponItem `json:"items" binding:"required,min=1,dive"`
}

type CouponPreviewLine struct {
	CategoryId         int             `json:"category_id"`
	Success            bool            `json:"success"`
	Message            string          `json:"message"`
	OriginalAmount     decimal.Decimal `json:"original_amount"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	TotalAfterDiscount decimal.Decimal `json:"total_after_discount"`
}

// PreviewCoupon evaluates a coupon per item without persisting anything.
func PreviewCoupon(ctx context.Context, db *gorm.DB, userId int, req ApplyCouponRequest, now time.Time) ([]CouponPreviewLine, error) {
	coupon, err := GetCouponByCode(ctx, db, req.Code)
	if err != nil {
		return nil, err
	}
	if err := coupon.CheckUsable(now); err != nil {
		return nil, err
	}
	usedCount, err := GetCouponUsedCount(ctx, db, coupon.ID, userId)
	if err != nil {
		return nil, err
	}

	lines := make([]CouponPreviewLine, 0, len(req.Items))
	for _, item := range req.Items {
		line := CouponPreviewLine{
			CategoryId:         item.CategoryId,
			OriginalAmount:     item.Amount,
			DiscountAmount:     decimal.Zero,
			TotalAfterDiscount: item.Amount,
		}
		switch {
		case !coupon.IsEligibleCategory(item.CategoryId):
			line.Message = "This product category is not eligible for the coupon"
		case coupon.MinPurchaseAmount.GreaterThan(item.Amount):
			line.Message = "Coupon minimum purchase amount not met"
		case coupon.limitReached(usedCount):
			line.Message = "Coupon usage limit reached for this user"
		default:
			discount := ComputeCouponDiscount(*coupon, item.Amount)
			line.Success = true
			line.Message = "Coupon applied successfully"
			line.DiscountAmount = discount
			line.TotalAfterDiscount = item.Amount.Sub(discount)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

type NewCoupon struct {
	Code               string              `json:"code" binding:"required"`
	Description        string              `json:"description" binding:"required"`
	DiscountType       DiscountType        `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue      decimal.Decimal     `json:"discount_value"`
	MinPurchaseAmount  decimal.Decimal     `json:"min_purchase_amount"`
	MaxDiscountAmount  decimal.NullDecimal `json:"max_discount_amount"`
	ExpirationDate     time.Time           `json:"expiration_date" binding:"required"`
	UsageLimit         *int                `json:"usage_limit" binding:"omitempty,min=1"`
	EligibleCategories []int               `json:"eligible_categories" binding:"required,min=1"`
}

func (input NewCoupon) validate() error {
	if !input.DiscountValue.IsPositive() || input.MinPurchaseAmount.IsNegative() {
		return utils.NewValidationError("Invalid request data")
	}
	if input.MaxDiscountAmount.Valid && input.MaxDiscountAmount.Decimal.IsNegative() {
		return utils.NewValidationError("Invalid request data")
	}
	if input.DiscountType == DiscountTypePercentage && input.DiscountValue.GreaterThan(decimalOneHundred) {
		return utils.NewValidationError("Invalid request data")
	}
	return nil
}

func CreateCoupon(ctx context.Context, db *gorm.DB, input *NewCoupon) (*Coupon, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	code := NormalizeCouponCode(input.Code)

	var coupon Coupon
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := utils.ResourceCountWhere[Coupon](ctx, tx, "UPPER(code) = ?", code)
		if err != nil {
			return err
		}
		if count > 0 {
			return utils.NewConflictError("Coupon code already exists")
		}

		if len(input.EligibleCategories) == 0 {
			return utils.NewValidationError("Invalid category")
		}
		if err := utils.ValidateResourcesId[Category](ctx, tx, input.EligibleCategories); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return utils.NewValidationError("Invalid category")
			}
			return err
		}
		var categories []Category
		if err := tx.Where("id IN ?", utils.UniqueSlice(input.EligibleCategories)).Find(&categories).Error; err != nil {
			return err
		}

		coupon = Coupon{
			Code:               code,
			Description:        input.Description,
			DiscountType:       input.DiscountType,
			DiscountValue:      input.DiscountValue,
			MinPurchaseAmount:  input.MinPurchaseAmount,
			MaxDiscountAmount:  input.MaxDiscountAmount,
			ExpirationDate:     input.ExpirationDate,
			UsageLimit:         input.UsageLimit,
			IsActive:           true,
			EligibleCategories: categories,
		}
		if err := tx.Omit("EligibleCategories.*").Create(&coupon).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return utils.NewConflictError("Coupon code already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func ListCoupons(ctx context.Context, db *gorm.DB, p PageRequest) (*Page[Coupon], error) {
	return FetchPage[Coupon](db.WithContext(ctx).Model(&Coupon{}), p, "id DESC",
		func(q *gorm.DB) *gorm.DB { return q.Preload("EligibleCategories") })
}

// ListActiveCoupons lists coupons a user can still apply.
func ListActiveCoupons(ctx context.Context, db *gorm.DB, p PageRequest, now time.Time) (*Page[Coupon], error) {
	query := db.WithContext(ctx).Model(&Coupon{}).Where("is_active = ? AND expiration_date >= ?", true, now)
	return FetchPage[Coupon](query, p, "expiration_date ASC",
		func(q *gorm.DB) *gorm.DB { return q.Preload("EligibleCategories") })
}

func ToggleCouponStatus(ctx context.Context, db *gorm.DB, id int) (*Coupon, error) {
	var coupon Coupon
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&coupon, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("Coupon not found")
			}
			return err
		}
		coupon.IsActive = !coupon.IsActive
		return tx.Model(&coupon).Update("is_active", coupon.IsActive).Error
	})
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func DeleteCoupon(ctx context.Context, db *gorm.DB, id int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		coupon := Coupon{ID: id}
		if err := tx.Model(&coupon).Association("EligibleCategories").Clear(); err != nil {
			return err
		}
		res := tx.Delete(&Coupon{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewNotFoundError("Coupon not found")
		}
		return tx.Where("coupon_id = ?", id).Delete(&CouponUsage{}).Error
	})
}

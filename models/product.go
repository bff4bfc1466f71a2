package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var decimalOneHundred = decimal.NewFromInt(100)

type Product struct {
	ID           int              `gorm:"primary_key" json:"id"`
	Name         string           `gorm:"size:255;not null" json:"name"`
	CategoryId   int              `gorm:"index;not null" json:"category_id"`
	Brand        string           `gorm:"size:100;index" json:"brand"`
	Discount     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"discount"`
	IsActive     bool             `gorm:"not null;default:true;index" json:"is_active"`
	QuantitySold int              `gorm:"not null;default:0" json:"quantity_sold"`
	OfferId      *int             `gorm:"index" json:"offer_id"`
	Offer        *Offer           `gorm:"foreignKey:OfferId" json:"offer,omitempty"`
	Variants     []ProductVariant `gorm:"foreignKey:ProductId" json:"variants"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	// CandidateOffers holds the product's and its category's offers for pricing.
	CandidateOffers []Offer `gorm:"-" json:"-"`
}

type ProductVariant struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ProductId    int             `gorm:"not null;uniqueIndex:uniq_product_sku,priority:1" json:"product_id"`
	Sku          string          `gorm:"size:100;not null;uniqueIndex:uniq_product_sku,priority:2" json:"sku"`
	Color        string          `gorm:"size:50" json:"color"`
	Ram          string          `gorm:"size:50" json:"ram"`
	Storage      string          `gorm:"size:50" json:"storage"`
	Price        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Stock        int             `gorm:"not null;default:0" json:"stock"`
	QuantitySold int             `gorm:"not null;default:0" json:"quantity_sold"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Product) FindVariant(sku string) (*ProductVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].Sku == sku {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// BestOffer is the unexpired offer with the largest offer_value among
// CandidateOffers and the linked Offer, or nil.
func (p Product) BestOffer(now time.Time) *Offer {
	var best *Offer
	consider := func(o *Offer) {
		if o == nil || !o.IsActiveAt(now) {
			return
		}
		if best == nil || o.OfferValue.GreaterThan(best.OfferValue) {
			best = o
		}
	}
	consider(p.Offer)
	for i := range p.CandidateOffers {
		consider(&p.CandidateOffers[i])
	}
	return best
}

// EffectiveDiscount is the larger of the product discount and its best unexpired offer.
func (p Product) EffectiveDiscount(now time.Time) decimal.Decimal {
	discount := p.Discount
	if offer := p.BestOffer(now); offer != nil && offer.OfferValue.GreaterThan(discount) {
		discount = offer.OfferValue
	}
	if discount.GreaterThan(decimalOneHundred) {
		return decimalOneHundred
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// Label renders "name ( ram, storage, color )" for order listings.
func (p Product) Label(v *ProductVariant) string {
	if v == nil {
		return p.Name
	}
	return fmt.Sprintf("%s ( %s, %s, %s )", p.Name, v.Ram, v.Storage, v.Color)
}

// LineTotal is price * qty less a percentage discount, rounded to cents.
func LineTotal(price decimal.Decimal, discountPercent decimal.Decimal, qty int) decimal.Decimal {
	gross := price.Mul(decimal.NewFromInt(int64(qty)))
	factor := decimalOneHundred.Sub(discountPercent).Div(decimalOneHundred)
	return utils.RoundMoney(gross.Mul(factor))
}

func GetProduct(ctx context.Context, db *gorm.DB, id int) (*Product, error) {
	var product Product
	err := db.WithContext(ctx).
		Preload("Variants").
		Preload("Offer").
		First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("Product not found")
		}
		return nil, err
	}
	if err := LoadCandidateOffers(ctx, db, []*Product{&product}); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIds loads products keyed by id with variants and offers.
func GetProductsByIds(ctx context.Context, db *gorm.DB, ids []int) (map[int]*Product, error) {
	var products []Product
	err := db.WithContext(ctx).
		Preload("Variants").
		Preload("Offer").
		Where("id IN ?", utils.UniqueSlice(ids)).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	result := make(map[int]*Product, len(products))
	list := make([]*Product, 0, len(products))
	for i := range products {
		result[products[i].ID] = &products[i]
		list = append(list, &products[i])
	}
	if err := LoadCandidateOffers(ctx, db, list); err != nil {
		return nil, err
	}
	return result, nil
}

type NewProductVariant struct {
	Sku     string          `json:"sku" binding:"required"`
	Color   string          `json:"color"`
	Ram     string          `json:"ram"`
	Storage string          `json:"storage"`
	Price   decimal.Decimal `json:"price" binding:"required"`
	Stock   int             `json:"stock" binding:"min=0"`
}

type NewProduct struct {
	Name       string              `json:"name" binding:"required"`
	CategoryId int                 `json:"category_id" binding:"required"`
	Brand      string              `json:"brand"`
	Discount   decimal.Decimal     `json:"discount"`
	Variants   []NewProductVariant `json:"variants" binding:"required,min=1,dive"`
}

// CreateProduct is used by seeding and tests; catalog CRUD is handled elsewhere.
func CreateProduct(ctx context.Context, db *gorm.DB, input *NewProduct) (*Product, error) {
	product := Product{
		Name:       input.Name,
		CategoryId: input.CategoryId,
		Brand:      input.Brand,
		Discount:   input.Discount,
		IsActive:   true,
	}
	for _, v := range input.Variants {
		product.Variants = append(product.Variants, ProductVariant{
			Sku:     v.Sku,
			Color:   v.Color,
			Ram:     v.Ram,
			Storage: v.Storage,
			Price:   v.Price,
			Stock:   v.Stock,
		})
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

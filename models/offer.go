package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Offer is a percentage discount attached to one product or to every product of a category.
// Product.OfferId points at the best offer that was unexpired when offers last changed;
// pricing re-picks among all candidates so an expired link never hides a live offer.
type Offer struct {
	ID         int             `gorm:"primary_key" json:"id"`
	Name       string          `gorm:"size:255;not null" json:"name"`
	OfferValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"offer_value"`
	TargetType OfferTargetType `gorm:"size:20;not null;uniqueIndex:uniq_offer_target,priority:1" json:"target_type"`
	TargetId   int             `gorm:"not null;uniqueIndex:uniq_offer_target,priority:2" json:"target_id"`
	TargetName string          `gorm:"size:255" json:"target_name"`
	EndDate    time.Time       `gorm:"index;not null" json:"end_date"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActiveAt: expired offers are ignored at pricing time.
func (o Offer) IsActiveAt(now time.Time) bool {
	return !o.EndDate.Before(now)
}

type NewOffer struct {
	Name       string          `json:"name" binding:"required"`
	Value      decimal.Decimal `json:"value" binding:"required"`
	Target     OfferTargetType `json:"target" binding:"required,oneof=product category"`
	TargetId   int             `json:"targetId" binding:"required"`
	TargetName string          `json:"targetName"`
	EndDate    time.Time       `json:"endDate" binding:"required"`
}

func CreateOffer(ctx context.Context, db *gorm.DB, input *NewOffer) (*Offer, error) {
	if input.Value.IsNegative() || input.Value.GreaterThan(decimalOneHundred) {
		return nil, utils.NewValidationError("Offer value must be between 0 and 100")
	}

	var offer Offer
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := utils.ResourceCountWhere[Offer](ctx, tx, "target_type = ? AND target_id = ?", input.Target, input.TargetId)
		if err != nil {
			return err
		}
		if existing > 0 {
			if input.Target == OfferTargetProduct {
				return utils.NewConflictError("Offer is already existing for the product")
			}
			return utils.NewConflictError("Offer is already existing for the category")
		}

		var products []Product
		switch input.Target {
		case OfferTargetProduct:
			if err := tx.Where("id = ?", input.TargetId).Find(&products).Error; err != nil {
				return err
			}
			if len(products) == 0 {
				return utils.NewNotFoundError("Product not found")
			}
		case OfferTargetCategory:
			if err := utils.ValidateResourceId[Category](ctx, tx, input.TargetId); err != nil {
				if errors.Is(err, utils.ErrorRecordNotFound) {
					return utils.NewNotFoundError("Category not found")
				}
				return err
			}
			if err := tx.Where("category_id = ?", input.TargetId).Find(&products).Error; err != nil {
				return err
			}
		}

		offer = Offer{
			Name:       input.Name,
			OfferValue: input.Value,
			TargetType: input.Target,
			TargetId:   input.TargetId,
			TargetName: input.TargetName,
			EndDate:    input.EndDate,
		}
		if err := tx.Create(&offer).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, product := range products {
			if err := relinkBestOffer(tx, product, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// DeleteOffer removes an offer and points affected products at the remaining
// product or category offer, if any.
func DeleteOffer(ctx context.Context, db *gorm.DB, id int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offer Offer
		if err := tx.First(&offer, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("Offer not found")
			}
			return err
		}
		if err := tx.Delete(&offer).Error; err != nil {
			return err
		}

		var products []Product
		switch offer.TargetType {
		case OfferTargetProduct:
			if err := tx.Where("id = ?", offer.TargetId).Find(&products).Error; err != nil {
				return err
			}
		case OfferTargetCategory:
			if err := tx.Where("category_id = ?", offer.TargetId).Find(&products).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		for _, product := range products {
			if err := relinkBestOffer(tx, product, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// offersFor selects the offers of the given products and categories.
func offersFor(tx *gorm.DB, productIds, categoryIds []int) *gorm.DB {
	return tx.Model(&Offer{}).Where("((target_type = ? AND target_id IN ?) OR (target_type = ? AND target_id IN ?))",
		OfferTargetProduct, productIds, OfferTargetCategory, categoryIds)
}

// relinkBestOffer points product at its best unexpired offer, or at none.
func relinkBestOffer(tx *gorm.DB, product Product, now time.Time) error {
	var best *int
	var offer Offer
	err := offersFor(tx, []int{product.ID}, []int{product.CategoryId}).
		Where("end_date >= ?", now).
		Order("offer_value DESC, id").
		First(&offer).Error
	if err == nil {
		best = &offer.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.Model(&Product{}).Where("id = ?", product.ID).Update("offer_id", best).Error
}

// LoadCandidateOffers fills CandidateOffers with every offer targeting each
// product or its category. Expiry is left to pricing time.
func LoadCandidateOffers(ctx context.Context, db *gorm.DB, products []*Product) error {
	if len(products) == 0 {
		return nil
	}
	productIds := make([]int, 0, len(products))
	categoryIds := make([]int, 0, len(products))
	for _, p := range products {
		productIds = append(productIds, p.ID)
		categoryIds = append(categoryIds, p.CategoryId)
	}
	var offers []Offer
	if err := offersFor(db.WithContext(ctx), productIds, utils.UniqueSlice(categoryIds)).Find(&offers).Error; err != nil {
		return err
	}
	for _, p := range products {
		p.CandidateOffers = p.CandidateOffers[:0]
		for _, o := range offers {
			if (o.TargetType == OfferTargetProduct && o.TargetId == p.ID) ||
				(o.TargetType == OfferTargetCategory && o.TargetId == p.CategoryId) {
				p.CandidateOffers = append(p.CandidateOffers, o)
			}
		}
	}
	return nil
}

func ListOffers(ctx context.Context, db *gorm.DB, p PageRequest) (*Page[Offer], error) {
	return FetchPage[Offer](db.WithContext(ctx).Model(&Offer{}), p, "id DESC")
}

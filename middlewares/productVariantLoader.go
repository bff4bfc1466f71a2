package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/storefront_backend/models"
	"gorm.io/gorm"
)

type productVariantReader struct {
	db *gorm.DB
}

func (r *productVariantReader) getVariantsByProductId(ctx context.Context, productIds []int) []*dataloader.Result[[]*models.ProductVariant] {
	var results []models.ProductVariant
	err := r.db.WithContext(ctx).Where("product_id IN ?", productIds).Order("id").Find(&results).Error
	if err != nil {
		return handleError[[]*models.ProductVariant](len(productIds), err)
	}
	return generateLoaderArrayResults(results, productIds)
}

func GetProductVariants(ctx context.Context, productId int) ([]*models.ProductVariant, error) {
	loaders := For(ctx)
	return loaders.variantsByProductLoader.Load(ctx, productId)()
}

// GetProductVariant finds one variant of a product by sku; nil when it does not exist.
func GetProductVariant(ctx context.Context, productId int, sku string) (*models.ProductVariant, error) {
	variants, err := GetProductVariants(ctx, productId)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		if v.Sku == sku {
			return v, nil
		}
	}
	return nil, nil
}

package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
)

const bestSellingLimit = 10

type BestSellingProduct struct {
	ID           int    `json:"_id"`
	Name         string `json:"name"`
	QuantitySold int    `json:"quantity_sold"`
}

type BestSellingGroup struct {
	ID        int    `json:"_id,omitempty"`
	Name      string `json:"name"`
	TotalSold int    `json:"totalSold"`
}

type BestSellingResponse struct {
	Products   []BestSellingProduct `json:"products"`
	Categories []BestSellingGroup   `json:"categories"`
	Brands     []BestSellingGroup   `json:"brands"`
}

// GetBestSelling returns the top active products, categories and brands by quantity sold.
// Results are cached in redis.
func GetBestSelling(ctx context.Context) (*BestSellingResponse, error) {
	return utils.CachedJSON(ctx, bestSellingCacheKey, bestSellingCacheTTL(), loadBestSelling)
}

func loadBestSelling(ctx context.Context) (*BestSellingResponse, error) {
	started := time.Now()
	defer logSlowReport(ctx, "best_selling", started, nil)

	db := config.GetDB().WithContext(ctx)
	result := &BestSellingResponse{
		Products:   make([]BestSellingProduct, 0),
		Categories: make([]BestSellingGroup, 0),
		Brands:     make([]BestSellingGroup, 0),
	}

	if err := db.Model(&models.Product{}).
		Select("id, name, quantity_sold").
		Where("is_active = ?", true).
		Order("quantity_sold DESC, id ASC").
		Limit(bestSellingLimit).
		Scan(&result.Products).Error; err != nil {
		return nil, err
	}

	if err := db.Table("products").
		Select("categories.id AS id, categories.title AS name, SUM(products.quantity_sold) AS total_sold").
		Joins("LEFT JOIN categories ON categories.id = products.category_id").
		Where("products.is_active = ?", true).
		Group("categories.id, categories.title").
		Order("total_sold DESC").
		Limit(bestSellingLimit).
		Scan(&result.Categories).Error; err != nil {
		return nil, err
	}

	if err := db.Table("products").
		Select("products.brand AS name, SUM(products.quantity_sold) AS total_sold").
		Where("products.is_active = ? AND products.brand <> ''", true).
		Group("products.brand").
		Order("total_sold DESC").
		Limit(bestSellingLimit).
		Scan(&result.Brands).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// seed-catalog creates a development data set: an admin, a customer with a
// funded wallet, two categories, a few phones and the SAVE10 coupon.
// Rerunning it leaves existing rows alone.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-catalog
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	adminEmail    = "admin@storefront.local"
	customerEmail = "customer@storefront.local"
	couponCode    = "SAVE10"
)

var seedProducts = []struct {
	category string
	product  models.NewProduct
}{
	{"Smartphones", models.NewProduct{
		Name:     "Pixel 9",
		Brand:    "Google",
		Discount: decimal.NewFromInt(5),
		Variants: []models.NewProductVariant{
			{Sku: "PX9-128-BLK", Color: "Black", Ram: "12GB", Storage: "128GB", Price: decimal.NewFromInt(799), Stock: 25},
			{Sku: "PX9-256-WHT", Color: "White", Ram: "12GB", Storage: "256GB", Price: decimal.NewFromInt(899), Stock: 10},
		},
	}},
	{"Smartphones", models.NewProduct{
		Name:  "Galaxy S24",
		Brand: "Samsung",
		Variants: []models.NewProductVariant{
			{Sku: "S24-256-GRY", Color: "Grey", Ram: "8GB", Storage: "256GB", Price: decimal.NewFromInt(849), Stock: 15},
		},
	}},
	{"Accessories", models.NewProduct{
		Name:  "USB-C Charger 45W",
		Brand: "Anker",
		Variants: []models.NewProductVariant{
			{Sku: "ANK-45W", Color: "White", Price: decimal.NewFromInt(39), Stock: 200},
		},
	}},
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fail("database not initialized (config.GetDB returned nil). Set DB_* env vars.")
	}
	models.MigrateTable(db)

	admin, err := ensureUser(ctx, db, &models.NewUser{FirstName: "Store", LastName: "Admin", Email: adminEmail, Role: models.UserRoleAdmin})
	if err != nil {
		fail("failed to seed admin: %v", err)
	}
	customer, err := ensureUser(ctx, db, &models.NewUser{FirstName: "Demo", LastName: "Customer", Email: customerEmail})
	if err != nil {
		fail("failed to seed customer: %v", err)
	}
	if err := ensureWalletFunds(ctx, db, customer.ID, decimal.NewFromInt(5000)); err != nil {
		fail("failed to fund customer wallet: %v", err)
	}

	categories := map[string]int{}
	for _, seed := range seedProducts {
		if _, ok := categories[seed.category]; ok {
			continue
		}
		id, err := ensureCategory(ctx, db, seed.category)
		if err != nil {
			fail("failed to seed category %q: %v", seed.category, err)
		}
		categories[seed.category] = id
	}
	for _, seed := range seedProducts {
		input := seed.product
		input.CategoryId = categories[seed.category]
		if err := ensureProduct(ctx, db, &input); err != nil {
			fail("failed to seed product %q: %v", input.Name, err)
		}
	}
	if err := ensureCoupon(ctx, db, categories["Smartphones"], categories["Accessories"]); err != nil {
		fail("failed to seed coupon: %v", err)
	}

	for _, u := range []*models.User{admin, customer} {
		token, err := utils.JwtGenerate(u.ID, string(u.Role))
		if err != nil {
			fail("failed to sign token: %v", err)
		}
		fmt.Printf("%s (id=%d, role=%s)\n  token: %s\n", u.Email, u.ID, u.Role, token)
	}
	fmt.Println("Seed complete")
}

func ensureUser(ctx context.Context, db *gorm.DB, input *models.NewUser) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", input.Email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return models.CreateUser(ctx, db, input)
}

func ensureWalletFunds(ctx context.Context, db *gorm.DB, userId int, amount decimal.Decimal) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := models.EnsureWallet(tx, userId)
		if err != nil {
			return err
		}
		if wallet.Balance.IsPositive() {
			return nil
		}
		_, err = models.CreditWallet(tx, models.WalletEntry{UserId: userId, Amount: amount, Description: "Seed balance"})
		return err
	})
}

func ensureCategory(ctx context.Context, db *gorm.DB, title string) (int, error) {
	var category models.Category
	err := db.WithContext(ctx).Where("title = ?", title).First(&category).Error
	if err == nil {
		return category.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	created, err := models.CreateCategory(ctx, db, title)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func ensureProduct(ctx context.Context, db *gorm.DB, input *models.NewProduct) error {
	count, err := utils.ResourceCountWhere[models.ProductVariant](ctx, db, "sku = ?", input.Variants[0].Sku)
	if err != nil || count > 0 {
		return err
	}
	product, err := models.CreateProduct(ctx, db, input)
	if err != nil {
		return err
	}
	fmt.Printf("Created product %q (id=%d)\n", product.Name, product.ID)
	return nil
}

func ensureCoupon(ctx context.Context, db *gorm.DB, categoryIds ...int) error {
	_, err := models.CreateCoupon(ctx, db, &models.NewCoupon{
		Code:               couponCode,
		Description:        "10% off, up to 50",
		DiscountType:       models.DiscountTypePercentage,
		DiscountValue:      decimal.NewFromInt(10),
		MinPurchaseAmount:  decimal.NewFromInt(100),
		MaxDiscountAmount:  decimal.NewNullDecimal(decimal.NewFromInt(50)),
		ExpirationDate:     time.Now().AddDate(1, 0, 0),
		EligibleCategories: categoryIds,
	})
	if utils.IsStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

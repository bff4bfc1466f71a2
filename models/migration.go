package models

import (
	"log"

	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) {
	err := db.AutoMigrate(
		&Category{}, &Coupon{}, &CouponUsage{}, &Cart{}, &CartItem{},
		&DailySalesSummary{},
		&IdempotencyKey{},
		&Offer{}, &Order{}, &OrderItem{}, &OrderEventRecord{},
		&Product{}, &ProductVariant{},
		&SalesReport{}, &SalesReportLine{}, &StockMovement{},
		&User{},
		&Wallet{}, &WalletTransaction{}, &WishlistItem{},
	)
	if err != nil {
		log.Fatal(err)
	}
	// order lines used to be unique per SKU alone
	if db.Migrator().HasIndex(&OrderItem{}, "uniq_order_variant") {
		if err := db.Migrator().DropIndex(&OrderItem{}, "uniq_order_variant"); err != nil {
			log.Fatal(err)
		}
	}
}

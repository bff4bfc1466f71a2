package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/mmdatafocus/storefront_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type orderFixture struct {
	db        *gorm.DB
	wf        *workflow.OrderWorkflow
	category  *models.Category
	product   *models.Product
	// accessory reuses the product's SKU; SKUs are only unique within a product.
	accessory *models.Product
	buyer     *models.User
	broke     *models.User
	couponKey string
}

func setupOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "storefront_test")
	t.Setenv("PHONE_REGION", "IN")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	models.MigrateTable(db)

	ctx := context.Background()
	category, err := models.CreateCategory(ctx, db, "Smartphones")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	product, err := models.CreateProduct(ctx, db, &models.NewProduct{
		Name:       "Pixel 9",
		CategoryId: category.ID,
		Variants: []models.NewProductVariant{
			{Sku: "PX9-128", Price: decimal.NewFromInt(100), Stock: 5},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	accessory, err := models.CreateProduct(ctx, db, &models.NewProduct{
		Name:       "Pixel 9 Case",
		CategoryId: category.ID,
		Variants: []models.NewProductVariant{
			{Sku: "PX9-128", Price: decimal.NewFromInt(20), Stock: 10},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	buyer, err := models.CreateUser(ctx, db, &models.NewUser{FirstName: "Asha", Email: "asha@test.local"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	broke, err := models.CreateUser(ctx, db, &models.NewUser{FirstName: "Ravi", Email: "ravi@test.local"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := models.EnsureWallet(tx, buyer.ID); err != nil {
			return err
		}
		_, err := models.CreditWallet(tx, models.WalletEntry{UserId: buyer.ID, Amount: decimal.NewFromInt(1000), Description: "Test funds"})
		return err
	}); err != nil {
		t.Fatalf("fund wallet: %v", err)
	}
	if _, err := models.CreateCoupon(ctx, db, &models.NewCoupon{
		Code:               "SAVE10",
		Description:        "10% off",
		DiscountType:       models.DiscountTypePercentage,
		DiscountValue:      decimal.NewFromInt(10),
		MinPurchaseAmount:  decimal.NewFromInt(100),
		MaxDiscountAmount:  decimal.NewNullDecimal(decimal.NewFromInt(50)),
		ExpirationDate:     time.Now().AddDate(1, 0, 0),
		EligibleCategories: []int{category.ID},
	}); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}

	return &orderFixture{
		db:        db,
		wf:        workflow.NewOrderWorkflow(db, logrus.New(), config.GetRedisLock()),
		category:  category,
		product:   product,
		accessory: accessory,
		buyer:     buyer,
		broke:     broke,
		couponKey: "SAVE10",
	}
}

func (f *orderFixture) input(qty int) *workflow.PlaceOrderInput {
	return &workflow.PlaceOrderInput{
		OrderItems:    []workflow.PlaceOrderItem{{ProductId: f.product.ID, Variant: "PX9-128", Quantity: qty}},
		PaymentMethod: models.PaymentMethodWallet,
		ShippingAddress: models.ShippingAddress{
			Address: "12 MG Road", District: "Bengaluru", State: "Karnataka", Zip: "560001", Phone: "9876543210",
		},
	}
}

// line is the product's line in single-line orders.
func (f *orderFixture) line() models.OrderLineRef {
	return models.OrderLineRef{Sku: "PX9-128"}
}

func (f *orderFixture) variant(t *testing.T) models.ProductVariant {
	t.Helper()
	return f.variantOf(t, f.product.ID)
}

func (f *orderFixture) variantOf(t *testing.T, productId int) models.ProductVariant {
	t.Helper()
	var v models.ProductVariant
	if err := f.db.Where("product_id = ? AND sku = ?", productId, "PX9-128").First(&v).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return v
}

func (f *orderFixture) walletBalance(t *testing.T, userId int) decimal.Decimal {
	t.Helper()
	var w models.Wallet
	if err := f.db.Where("user_id = ?", userId).First(&w).Error; err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	return w.Balance
}

func (f *orderFixture) assertLedgersClean(t *testing.T) {
	t.Helper()
	violations, err := workflow.RunLedgerChecks(context.Background(), f.db, logrus.New())
	if err != nil {
		t.Fatalf("RunLedgerChecks: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("ledger violations: %+v", violations)
	}
}

func TestPlaceOrder_RejectsWithoutSideEffects(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	_, err := f.wf.PlaceOrder(ctx, f.buyer.ID, f.input(6))
	if !utils.IsStatus(err, 400) || !strings.Contains(err.Error(), "Not enough stock") {
		t.Fatalf("expected a stock error, got %v", err)
	}
	_, err = f.wf.PlaceOrder(ctx, f.broke.ID, f.input(1))
	if !utils.IsStatus(err, 400) || !strings.Contains(err.Error(), "Insufficient balance") {
		t.Fatalf("expected a wallet error, got %v", err)
	}

	var orders, events int64
	f.db.Model(&models.Order{}).Count(&orders)
	f.db.Model(&models.OrderEventRecord{}).Count(&events)
	if orders != 0 || events != 0 {
		t.Fatalf("rejected orders must not persist anything: orders=%d events=%d", orders, events)
	}
	if v := f.variant(t); v.Stock != 5 || v.QuantitySold != 0 {
		t.Fatalf("stock moved on a rejected order: %+v", v)
	}
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("wallet moved on a rejected order: %s", got)
	}
}

func TestPlaceOrder_CommitsEverythingTogether(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	in := f.input(2)
	in.IsCouponApplied = true
	in.Code = strings.ToLower(f.couponKey)
	in.TotalPriceWithDiscount = decimal.NewNullDecimal(decimal.NewFromInt(180))
	in.IdempotencyKey = "checkout-1"

	res, err := f.wf.PlaceOrder(ctx, f.buyer.ID, in)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !strings.HasPrefix(res.OrderNumber, "ORD-") || res.Replayed {
		t.Fatalf("unexpected result %+v", res)
	}

	replay, err := f.wf.PlaceOrder(ctx, f.buyer.ID, in)
	if err != nil || !replay.Replayed || replay.OrderId != res.OrderId {
		t.Fatalf("expected an idempotent replay of order %d, got %+v err=%v", res.OrderId, replay, err)
	}

	var order models.Order
	if err := f.db.Preload("Items").First(&order, res.OrderId).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(200)) || !order.CouponDiscount.Equal(decimal.NewFromInt(20)) ||
		!order.TotalPriceWithDiscount.Equal(decimal.NewFromInt(180)) || order.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("unexpected order totals %+v", order)
	}
	if v := f.variant(t); v.Stock != 3 || v.QuantitySold != 2 {
		t.Fatalf("unexpected stock after order: %+v", v)
	}
	var usage models.CouponUsage
	if err := f.db.Where("user_id = ?", f.buyer.ID).First(&usage).Error; err != nil || usage.UsedCount != 1 {
		t.Fatalf("expected one coupon use, got %+v err=%v", usage, err)
	}
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(820)) {
		t.Fatalf("unexpected wallet balance %s", got)
	}
	var report models.SalesReport
	if err := f.db.Where("order_id = ?", order.ID).First(&report).Error; err != nil {
		t.Fatalf("expected a sales report row: %v", err)
	}
	var events int64
	f.db.Model(&models.OrderEventRecord{}).Where("order_id = ?", order.ID).Count(&events)
	if events != 1 {
		t.Fatalf("expected one ORDER_PLACED event, got %d", events)
	}
	f.assertLedgersClean(t)
}

func TestCancelOrderItem_IsIdempotent(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	res, err := f.wf.PlaceOrder(ctx, f.buyer.ID, f.input(2))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if err := f.wf.CancelOrderItem(ctx, f.broke.ID, res.OrderId, f.line()); !utils.IsStatus(err, 403) {
		t.Fatalf("another user must not cancel the order, got %v", err)
	}
	if err := f.wf.CancelOrderItem(ctx, f.buyer.ID, res.OrderId, f.line()); err != nil {
		t.Fatalf("CancelOrderItem: %v", err)
	}
	err = f.wf.CancelOrderItem(ctx, f.buyer.ID, res.OrderId, f.line())
	if !utils.IsStatus(err, 400) || err.Error() != "Order item is already canceled" {
		t.Fatalf("expected an already-canceled error, got %v", err)
	}

	if v := f.variant(t); v.Stock != 5 || v.QuantitySold != 0 {
		t.Fatalf("stock must be restored exactly once: %+v", v)
	}
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected a full wallet refund, got %s", got)
	}
	f.assertLedgersClean(t)
}

func TestReturnFlow_RequestOnceThenApprove(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	res, err := f.wf.PlaceOrder(ctx, f.buyer.ID, f.input(1))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	reason := &workflow.ReturnRequestInput{Reason: "Defective"}
	if err := f.wf.RequestReturn(ctx, f.buyer.ID, res.OrderId, f.line(), reason); !utils.IsStatus(err, 400) {
		t.Fatalf("an undelivered item must not be returnable, got %v", err)
	}
	for _, status := range []models.OrderItemStatus{models.OrderItemStatusShipped, models.OrderItemStatusDelivered} {
		if err := f.wf.UpdateOrderItemStatus(ctx, res.OrderId, f.line(), status); err != nil {
			t.Fatalf("UpdateOrderItemStatus %s: %v", status, err)
		}
	}
	if err := f.wf.UpdateOrderItemStatus(ctx, res.OrderId, f.line(), models.OrderItemStatusDelivered); !utils.IsStatus(err, 400) {
		t.Fatalf("a same-status update must be rejected, got %v", err)
	}

	if err := f.wf.RequestReturn(ctx, f.buyer.ID, res.OrderId, f.line(), reason); err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}
	err = f.wf.RequestReturn(ctx, f.buyer.ID, res.OrderId, f.line(), reason)
	if !utils.IsStatus(err, 400) || err.Error() != "Return already requested" {
		t.Fatalf("expected a duplicate return error, got %v", err)
	}

	if err := f.wf.RespondToReturn(ctx, res.OrderId, f.line(), true); err != nil {
		t.Fatalf("RespondToReturn: %v", err)
	}
	if err := f.wf.RespondToReturn(ctx, res.OrderId, f.line(), true); !utils.IsStatus(err, 400) {
		t.Fatalf("a return must be answered only once, got %v", err)
	}
	if v := f.variant(t); v.Stock != 5 {
		t.Fatalf("returned stock must come back once: %+v", v)
	}
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected the return to be refunded, got %s", got)
	}
	f.assertLedgersClean(t)
}

func TestRetryPayment(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	in := f.input(1)
	in.PaymentMethod = models.PaymentMethodRazorpay
	in.PaymentStatus = models.PaymentStatusFailed
	res, err := f.wf.PlaceOrder(ctx, f.broke.ID, in)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if err := f.wf.RetryPayment(ctx, f.buyer.ID, res.OrderId, models.PaymentStatusPaid); !utils.IsStatus(err, 403) {
		t.Fatalf("another user must not pay the order, got %v", err)
	}
	if err := f.wf.RetryPayment(ctx, f.broke.ID, res.OrderId, models.PaymentStatusFailed); err != nil {
		t.Fatalf("same status should be a no-op, got %v", err)
	}
	if err := f.wf.RetryPayment(ctx, f.broke.ID, res.OrderId, models.PaymentStatusPaid); err != nil {
		t.Fatalf("RetryPayment: %v", err)
	}
	err = f.wf.RetryPayment(ctx, f.broke.ID, res.OrderId, models.PaymentStatusPaid)
	if !utils.IsStatus(err, 400) || err.Error() != "Order is already paid" {
		t.Fatalf("expected an already-paid error, got %v", err)
	}

	var events int64
	f.db.Model(&models.OrderEventRecord{}).
		Where("order_id = ? AND event_type = ?", res.OrderId, models.OrderEventPaymentStatusChanged).
		Count(&events)
	if events != 1 {
		t.Fatalf("expected one payment event, got %d", events)
	}
}

func TestPlaceOrder_CouponUsageLimitHolds(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	limit := 1
	if _, err := models.CreateCoupon(ctx, f.db, &models.NewCoupon{
		Code:               "ONCE",
		Description:        "single use",
		DiscountType:       models.DiscountTypePercentage,
		DiscountValue:      decimal.NewFromInt(10),
		ExpirationDate:     time.Now().AddDate(0, 1, 0),
		UsageLimit:         &limit,
		EligibleCategories: []int{f.category.ID},
	}); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}

	in := f.input(1)
	in.IsCouponApplied = true
	in.Code = "ONCE"
	if _, err := f.wf.PlaceOrder(ctx, f.buyer.ID, in); err != nil {
		t.Fatalf("first order: %v", err)
	}
	_, err := f.wf.PlaceOrder(ctx, f.buyer.ID, in)
	if !utils.IsStatus(err, 400) || err.Error() != "Coupon usage limit reached for this user" {
		t.Fatalf("expected the usage limit to refuse the second order, got %v", err)
	}

	var usage models.CouponUsage
	if err := f.db.Joins("JOIN coupons ON coupons.id = coupon_usages.coupon_id").
		Where("coupons.code = ? AND coupon_usages.user_id = ?", "ONCE", f.buyer.ID).
		First(&usage).Error; err != nil {
		t.Fatalf("load usage: %v", err)
	}
	if usage.UsedCount != 1 {
		t.Fatalf("used_count must stay at the limit, got %d", usage.UsedCount)
	}
	var orders int64
	f.db.Model(&models.Order{}).Where("user_id = ?", f.buyer.ID).Count(&orders)
	if orders != 1 {
		t.Fatalf("expected one order, got %d", orders)
	}
	if v := f.variant(t); v.Stock != 4 {
		t.Fatalf("the refused order must not move stock: %+v", v)
	}
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(910)) {
		t.Fatalf("unexpected wallet balance %s", got)
	}
	f.assertLedgersClean(t)
}

func TestPlaceOrder_StockIsCheckedBeforeCoupon(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	if err := f.db.Model(&models.Coupon{}).Where("code = ?", f.couponKey).
		Update("expiration_date", time.Now().AddDate(0, 0, -1)).Error; err != nil {
		t.Fatalf("expire coupon: %v", err)
	}
	in := f.input(6)
	in.IsCouponApplied = true
	in.Code = f.couponKey
	_, err := f.wf.PlaceOrder(ctx, f.buyer.ID, in)
	if !utils.IsStatus(err, 400) || !strings.Contains(err.Error(), "Not enough stock") {
		t.Fatalf("expected the stock error first, got %v", err)
	}
}

func TestCancelOneLine_SharedSkuAndSalesReport(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	in := f.input(1)
	in.OrderItems = append(in.OrderItems, workflow.PlaceOrderItem{ProductId: f.accessory.ID, Variant: "PX9-128", Quantity: 1})
	res, err := f.wf.PlaceOrder(ctx, f.buyer.ID, in)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if err := f.wf.CancelOrderItem(ctx, f.buyer.ID, res.OrderId, f.line()); !utils.IsStatus(err, 400) {
		t.Fatalf("a sku shared by two lines needs a product, got %v", err)
	}
	accessoryLine := models.OrderLineRef{Sku: "PX9-128", ProductId: f.accessory.ID}
	if err := f.wf.CancelOrderItem(ctx, f.buyer.ID, res.OrderId, accessoryLine); err != nil {
		t.Fatalf("CancelOrderItem: %v", err)
	}

	var report models.SalesReport
	if err := f.db.Preload("Lines").Where("order_id = ?", res.OrderId).First(&report).Error; err != nil {
		t.Fatalf("load report: %v", err)
	}
	if !report.FinalAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("final_amount must drop by the cancelled line only, got %s", report.FinalAmount)
	}
	if report.DeliveryStatus != models.OrderItemStatusPending {
		t.Fatalf("report status should follow the open line, got %s", report.DeliveryStatus)
	}
	for _, line := range report.Lines {
		want := models.OrderItemStatusPending
		if line.ProductId == f.accessory.ID {
			want = models.OrderItemStatusCancelled
		}
		if line.DeliveryStatus != want {
			t.Fatalf("line for product %d: expected %s, got %s", line.ProductId, want, line.DeliveryStatus)
		}
	}

	if v := f.variantOf(t, f.accessory.ID); v.Stock != 10 {
		t.Fatalf("accessory stock must be restored: %+v", v)
	}
	if v := f.variant(t); v.Stock != 4 {
		t.Fatalf("the other line's stock must not move: %+v", v)
	}
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("expected only the accessory to be refunded, got %s", got)
	}
	f.assertLedgersClean(t)
}

func TestAdminCancel_RefundDependsOnPaymentMethod(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	place := func(method models.PaymentMethod, status models.PaymentStatus) int {
		t.Helper()
		in := f.input(1)
		in.PaymentMethod = method
		in.PaymentStatus = status
		res, err := f.wf.PlaceOrder(ctx, f.buyer.ID, in)
		if err != nil {
			t.Fatalf("PlaceOrder %s: %v", method, err)
		}
		return res.OrderId
	}
	cancel := func(orderId int) {
		t.Helper()
		if err := f.wf.UpdateOrderItemStatus(ctx, orderId, f.line(), models.OrderItemStatusCancelled); err != nil {
			t.Fatalf("admin cancel: %v", err)
		}
	}

	cancel(place(models.PaymentMethodCashOnDelivery, models.PaymentStatusPending))
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("cash on delivery must not be credited, got %s", got)
	}

	cancel(place(models.PaymentMethodRazorpay, models.PaymentStatusFailed))
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(1100)) {
		t.Fatalf("an admin cancel credits any non-COD order, got %s", got)
	}

	t.Setenv("UNIFIED_REFUND_POLICY", "true")
	cancel(place(models.PaymentMethodRazorpay, models.PaymentStatusFailed))
	if got := f.walletBalance(t, f.buyer.ID); !got.Equal(decimal.NewFromInt(1100)) {
		t.Fatalf("the unified policy refunds paid orders only, got %s", got)
	}
	f.assertLedgersClean(t)
}

func TestOffers_ExpiredLinkFallsBackToLiveOffer(t *testing.T) {
	f := setupOrderFixture(t)
	ctx := context.Background()

	if _, err := models.CreateOffer(ctx, f.db, &models.NewOffer{
		Name: "Launch", Value: decimal.NewFromInt(40), Target: models.OfferTargetProduct,
		TargetId: f.product.ID, EndDate: time.Now().AddDate(0, 0, -1),
	}); err != nil {
		t.Fatalf("CreateOffer product: %v", err)
	}
	categoryOffer, err := models.CreateOffer(ctx, f.db, &models.NewOffer{
		Name: "Phones week", Value: decimal.NewFromInt(15), Target: models.OfferTargetCategory,
		TargetId: f.category.ID, EndDate: time.Now().AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("CreateOffer category: %v", err)
	}

	var product models.Product
	if err := f.db.First(&product, f.product.ID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.OfferId == nil || *product.OfferId != categoryOffer.ID {
		t.Fatalf("expected the live category offer to be linked, got %v", product.OfferId)
	}

	res, err := f.wf.PlaceOrder(ctx, f.buyer.ID, f.input(1))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	var order models.Order
	if err := f.db.First(&order, res.OrderId).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(85)) {
		t.Fatalf("expected the 15%% offer to apply, got %s", order.TotalAmount)
	}
}

func TestCreateCoupon_RejectsUnknownCategory(t *testing.T) {
	f := setupOrderFixture(t)

	_, err := models.CreateCoupon(context.Background(), f.db, &models.NewCoupon{
		Code:               "PARTIAL",
		Description:        "one category does not exist",
		DiscountType:       models.DiscountTypePercentage,
		DiscountValue:      decimal.NewFromInt(5),
		ExpirationDate:     time.Now().AddDate(0, 1, 0),
		EligibleCategories: []int{f.category.ID, f.category.ID + 1000},
	})
	if !utils.IsStatus(err, 400) || err.Error() != "Invalid category" {
		t.Fatalf("expected Invalid category, got %v", err)
	}
	var coupons int64
	f.db.Model(&models.Coupon{}).Where("code = ?", "PARTIAL").Count(&coupons)
	if coupons != 0 {
		t.Fatalf("the coupon must not be stored")
	}
}

func TestCheckoutLock_SecondCheckoutIsTurnedAway(t *testing.T) {
	f := setupOrderFixture(t)

	held := make(chan error, 1)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = f.db.Transaction(func(tx *gorm.DB) error {
			err := workflow.AcquireCheckoutLock(tx, f.buyer.ID)
			held <- err
			if err != nil {
				return err
			}
			<-done
			workflow.ReleaseCheckoutLock(tx, f.buyer.ID)
			return nil
		})
	}()
	if err := <-held; err != nil {
		t.Fatalf("first lock: %v", err)
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return workflow.AcquireCheckoutLock(tx, f.buyer.ID)
	})
	close(done)
	<-finished
	if !errors.Is(err, workflow.ErrCheckoutBusy) || !utils.IsStatus(err, 409) {
		t.Fatalf("expected ErrCheckoutBusy, got %v", err)
	}
}

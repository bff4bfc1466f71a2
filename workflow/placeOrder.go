package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const placeOrderHandler = "place_order"

// totalTolerance is how far a client-echoed total may drift before the order is refused.
var totalTolerance = decimal.NewFromFloat(0.01)

type PlaceOrderItem struct {
	ProductId int    `json:"product_id" binding:"required"`
	Variant   string `json:"variant" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type PlaceOrderInput struct {
	OrderItems      []PlaceOrderItem       `json:"order_items" binding:"required,min=1,dive"`
	PaymentMethod   models.PaymentMethod   `json:"payment_method" binding:"required"`
	PaymentStatus   models.PaymentStatus   `json:"payment_status"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
	ShippingFee     decimal.Decimal        `json:"shipping_fee"`
	// Client echoes; only TotalPriceWithDiscount is checked.
	TotalAmount            decimal.NullDecimal `json:"total_amount"`
	TotalPriceWithDiscount decimal.NullDecimal `json:"total_price_with_discount"`
	CouponDiscount         decimal.NullDecimal `json:"coupon_discount"`
	IsCouponApplied        bool                `json:"is_coupon_applied"`
	Code                   string              `json:"code"`
	IdempotencyKey         string              `json:"-"`
}

type PlaceOrderResult struct {
	Success     bool   `json:"success"`
	OrderId     int    `json:"order_id"`
	OrderNumber string `json:"order_number"`
	// Replayed is set when an Idempotency-Key matched an earlier order.
	Replayed bool `json:"-"`
}

func (input *PlaceOrderInput) validate() error {
	if len(input.OrderItems) == 0 {
		return utils.NewValidationError("Order must contain at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return utils.NewValidationError("Invalid payment method")
	}
	if input.PaymentStatus != "" && !input.PaymentStatus.IsValid() {
		return utils.NewValidationError("Invalid payment status")
	}
	if input.ShippingFee.IsNegative() {
		return utils.NewValidationError("Shipping fee must not be negative")
	}
	if err := utils.ValidatePhoneNumber(input.ShippingAddress.Phone, config.PhoneRegion()); err != nil {
		return utils.NewValidationError("Invalid phone number")
	}
	seen := make(map[models.OrderLineRef]bool, len(input.OrderItems))
	for _, item := range input.OrderItems {
		if item.Quantity < 1 {
			return utils.NewValidationError("Quantity must be at least 1")
		}
		ref := models.OrderLineRef{Sku: item.Variant, ProductId: item.ProductId}
		if seen[ref] {
			return utils.NewValidationError("Duplicate variant in order: " + item.Variant)
		}
		seen[ref] = true
	}
	if input.IsCouponApplied && models.NormalizeCouponCode(input.Code) == "" {
		return utils.NewValidationError("Coupon code is required")
	}
	return nil
}

// pricedLine is one requested item resolved against the catalog.
type pricedLine struct {
	Product  *models.Product
	Variant  *models.ProductVariant
	Quantity int
	Price    decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// priceOrderLines resolves each item against products and prices it at now.
// Stock is pre-checked here so a short line fails before any coupon is looked at;
// ReserveStock still guards the actual decrement.
func priceOrderLines(items []PlaceOrderItem, products map[int]*models.Product, now time.Time) ([]pricedLine, error) {
	lines := make([]pricedLine, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductId]
		if !ok {
			return nil, utils.NewNotFoundError("Product not found")
		}
		if !product.IsActive {
			return nil, utils.NewValidationError("Product is not available")
		}
		variant, ok := product.FindVariant(item.Variant)
		if !ok {
			return nil, utils.NewNotFoundError("Variant not found: " + item.Variant)
		}
		if variant.Stock < item.Quantity {
			return nil, utils.NewValidationError("Not enough stock for variant: " + item.Variant)
		}
		discount := product.EffectiveDiscount(now)
		lines = append(lines, pricedLine{
			Product:  product,
			Variant:  variant,
			Quantity: item.Quantity,
			Price:    variant.Price,
			Discount: discount,
			Total:    models.LineTotal(variant.Price, discount, item.Quantity),
		})
	}
	return lines, nil
}

func couponLines(lines []pricedLine) []models.CouponLine {
	result := make([]models.CouponLine, 0, len(lines))
	for _, line := range lines {
		result = append(result, models.CouponLine{CategoryId: line.Product.CategoryId, Amount: line.Total})
	}
	return result
}

type orderTotals struct {
	TotalAmount            decimal.Decimal
	CouponDiscount         decimal.Decimal
	TotalPriceWithDiscount decimal.Decimal
}

func computeOrderTotals(lines []pricedLine, couponDiscount, shippingFee decimal.Decimal) orderTotals {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total)
	}
	final := total.Sub(couponDiscount).Add(shippingFee)
	if final.IsNegative() {
		final = decimal.Zero
	}
	return orderTotals{
		TotalAmount:            utils.RoundMoney(total),
		CouponDiscount:         utils.RoundMoney(couponDiscount),
		TotalPriceWithDiscount: utils.RoundMoney(final),
	}
}

// checkEchoedTotal refuses an order whose client-side total no longer matches.
func checkEchoedTotal(echoed decimal.NullDecimal, computed decimal.Decimal) error {
	if !echoed.Valid {
		return nil
	}
	if echoed.Decimal.Sub(computed).Abs().GreaterThan(totalTolerance) {
		return utils.NewValidationError("Order total has changed, please review your cart")
	}
	return nil
}

func userScope(userId int) string {
	return "user:" + strconv.Itoa(userId)
}

// PlaceOrder turns the request into an order in one transaction: stock, coupon,
// wallet, cart, sales report and the ORDER_PLACED event all commit together or not at all.
func (w *OrderWorkflow) PlaceOrder(ctx context.Context, userId int, input *PlaceOrderInput) (result *PlaceOrderResult, err error) {
	ctx, span := w.startSpan(ctx, "OrderWorkflow.PlaceOrder", attribute.Int("user_id", userId))
	defer func() { endSpan(span, err) }()

	if input == nil {
		return nil, utils.NewValidationError("Invalid request data")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	release := w.lockCheckout(ctx, userId)
	defer release()

	now := w.now()
	err = w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireCheckoutLock(tx, userId); err != nil {
			return err
		}
		defer ReleaseCheckoutLock(tx, userId)

		if input.IdempotencyKey != "" {
			idem, err := BeginIdempotency(tx, userScope(userId), placeOrderHandler, input.IdempotencyKey)
			if errors.Is(err, ErrIdempotencyInProgress) {
				return utils.NewConflictError("Order request is already being processed")
			}
			if err != nil {
				return err
			}
			if idem.Skip {
				result, err = replayedOrder(tx, userId, idem.ResultRef)
				return err
			}
		}

		created, err := w.placeOrderTx(ctx, tx, userId, input, now)
		if err != nil {
			return err
		}
		if input.IdempotencyKey != "" {
			if err := MarkIdempotencySucceeded(tx, userScope(userId), placeOrderHandler, input.IdempotencyKey, strconv.Itoa(created.ID)); err != nil {
				return err
			}
		}
		result = &PlaceOrderResult{Success: true, OrderId: created.ID, OrderNumber: created.OrderNumber}
		return nil
	})
	if err != nil {
		if _, ok := utils.AsAppError(err); !ok {
			config.LogError(w.logger(), "PlaceOrder.go", "PlaceOrder", "place order", userId, err)
		}
		return nil, err
	}
	if !result.Replayed {
		span.SetAttributes(attribute.Int("order_id", result.OrderId))
		w.logTransition(ctx, "place_order", result.OrderId, "", nil)
	}
	return result, nil
}

func replayedOrder(tx *gorm.DB, userId int, ref string) (*PlaceOrderResult, error) {
	orderId, err := strconv.Atoi(ref)
	if err != nil {
		return nil, fmt.Errorf("idempotency result_ref %q: %w", ref, err)
	}
	var order models.Order
	if err := tx.Where("id = ? AND user_id = ?", orderId, userId).First(&order).Error; err != nil {
		return nil, err
	}
	return &PlaceOrderResult{Success: true, OrderId: order.ID, OrderNumber: order.OrderNumber, Replayed: true}, nil
}

func (w *OrderWorkflow) placeOrderTx(ctx context.Context, tx *gorm.DB, userId int, input *PlaceOrderInput, now time.Time) (*models.Order, error) {
	customer, err := models.GetUser(ctx, tx, userId)
	if err != nil {
		return nil, err
	}

	productIds := make([]int, 0, len(input.OrderItems))
	for _, item := range input.OrderItems {
		productIds = append(productIds, item.ProductId)
	}
	products, err := models.GetProductsByIds(ctx, tx, productIds)
	if err != nil {
		return nil, err
	}
	lines, err := priceOrderLines(input.OrderItems, products, now)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	couponDiscount := decimal.Zero
	if input.IsCouponApplied {
		coupon, err = models.GetCouponByCode(ctx, tx, input.Code)
		if err != nil {
			return nil, err
		}
		if err := coupon.CheckUsable(now); err != nil {
			return nil, err
		}
		couponDiscount = models.CouponDiscountForLines(*coupon, couponLines(lines))
		if !couponDiscount.IsPositive() {
			return nil, utils.NewValidationError("Coupon is not applicable to this order")
		}
		if err := models.RedeemCoupon(tx, coupon, userId); err != nil {
			return nil, err
		}
	}

	totals := computeOrderTotals(lines, couponDiscount, input.ShippingFee)
	if err := checkEchoedTotal(input.TotalPriceWithDiscount, totals.TotalPriceWithDiscount); err != nil {
		return nil, err
	}

	paymentStatus := input.PaymentStatus
	if paymentStatus == "" || input.PaymentMethod == models.PaymentMethodWallet {
		paymentStatus = models.PaymentStatusPending
	}

	order := models.Order{
		OrderNumber:            w.NewOrderNumber(),
		UserId:                 userId,
		ShippingAddress:        input.ShippingAddress,
		PaymentMethod:          input.PaymentMethod,
		PaymentStatus:          paymentStatus,
		TotalAmount:            totals.TotalAmount,
		CouponDiscount:         totals.CouponDiscount,
		ShippingFee:            utils.RoundMoney(input.ShippingFee),
		TotalPriceWithDiscount: totals.TotalPriceWithDiscount,
		PlacedAt:               now,
		DeliveryBy:             now.Add(models.DeliveryLeadTime),
	}
	if coupon != nil {
		order.CouponId = &coupon.ID
	}
	itemCount := 0
	for _, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductId:  line.Product.ID,
			VariantSku: line.Variant.Sku,
			Quantity:   line.Quantity,
			Price:      line.Price,
			Discount:   line.Discount,
			TotalPrice: line.Total,
			Status:     models.OrderItemStatusPending,
		})
		itemCount += line.Quantity
	}
	if err := tx.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for _, item := range order.Items {
		if err := models.ReserveStock(tx, item.StockRef()); err != nil {
			return nil, err
		}
	}

	if err := models.RemoveProductsFromCart(tx, userId, productIds); err != nil {
		return nil, err
	}

	if order.PaymentMethod == models.PaymentMethodWallet {
		if _, err := models.DebitWallet(tx, models.WalletEntry{
			UserId:      userId,
			Amount:      order.TotalPriceWithDiscount,
			OrderId:     &order.ID,
			Description: "Payment for order " + order.OrderNumber,
		}); err != nil {
			return nil, err
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("payment_status", models.PaymentStatusPaid).Error; err != nil {
			return nil, err
		}
		order.PaymentStatus = models.PaymentStatusPaid
	}

	productNames := make(map[int]string, len(lines))
	for _, line := range lines {
		productNames[line.Product.ID] = line.Product.Name
	}
	if _, err := models.CreateSalesReport(tx, &order, customer, productNames); err != nil {
		return nil, err
	}

	if _, err := models.AppendOrderEvent(ctx, tx, models.OrderEventPlaced, order.ID, 0, userId, now, models.OrderEventPayload{
		OrderNumber:   order.OrderNumber,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		ItemCount:     itemCount,
		Amount:        order.TotalPriceWithDiscount.StringFixed(2),
	}); err != nil {
		return nil, err
	}
	return &order, nil
}

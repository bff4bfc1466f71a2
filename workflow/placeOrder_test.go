package workflow

import (
	"testing"
	"time"

	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func testCatalog() map[int]*models.Product {
	return map[int]*models.Product{
		1: {
			ID: 1, Name: "Pixel 9", CategoryId: 1, IsActive: true, Discount: decimal.NewFromInt(5),
			Variants: []models.ProductVariant{{ID: 10, ProductId: 1, Sku: "PX9-128", Price: decimal.NewFromInt(799), Stock: 5}},
		},
		2: {
			ID: 2, Name: "Charger", CategoryId: 2, IsActive: true,
			Variants: []models.ProductVariant{{ID: 20, ProductId: 2, Sku: "CHG-45", Price: decimal.NewFromInt(39), Stock: 100}},
		},
		3: {ID: 3, Name: "Retired", CategoryId: 1, IsActive: false},
	}
}

func validInput() *PlaceOrderInput {
	return &PlaceOrderInput{
		OrderItems:    []PlaceOrderItem{{ProductId: 1, Variant: "PX9-128", Quantity: 2}},
		PaymentMethod: models.PaymentMethodWallet,
		ShippingAddress: models.ShippingAddress{
			Address: "12 MG Road", District: "Bengaluru", State: "Karnataka", Zip: "560001", Phone: "9876543210",
		},
	}
}

func TestPlaceOrderInputValidate(t *testing.T) {
	t.Setenv("PHONE_REGION", "IN")

	if err := validInput().validate(); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(in *PlaceOrderInput)
		message string
	}{
		{"payment method", func(in *PlaceOrderInput) { in.PaymentMethod = "Barter" }, "Invalid payment method"},
		{"payment status", func(in *PlaceOrderInput) { in.PaymentStatus = "Unknown" }, "Invalid payment status"},
		{"shipping fee", func(in *PlaceOrderInput) { in.ShippingFee = decimal.NewFromInt(-1) }, "Shipping fee must not be negative"},
		{"phone", func(in *PlaceOrderInput) { in.ShippingAddress.Phone = "123" }, "Invalid phone number"},
		{"duplicate sku", func(in *PlaceOrderInput) {
			in.OrderItems = append(in.OrderItems, PlaceOrderItem{ProductId: 1, Variant: "PX9-128", Quantity: 1})
		}, "Duplicate variant in order: PX9-128"},
		{"coupon code", func(in *PlaceOrderInput) { in.IsCouponApplied = true; in.Code = "  " }, "Coupon code is required"},
		{"quantity", func(in *PlaceOrderInput) { in.OrderItems[0].Quantity = 0 }, "Quantity must be at least 1"},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(in)
		err := in.validate()
		if !utils.IsStatus(err, 400) || err.Error() != tc.message {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.message, err)
		}
	}
}

func TestSameSkuOnTwoProducts(t *testing.T) {
	t.Setenv("PHONE_REGION", "IN")

	catalog := map[int]*models.Product{
		1: {ID: 1, CategoryId: 1, IsActive: true,
			Variants: []models.ProductVariant{{ProductId: 1, Sku: "V1", Price: decimal.NewFromInt(10), Stock: 3}}},
		2: {ID: 2, CategoryId: 1, IsActive: true,
			Variants: []models.ProductVariant{{ProductId: 2, Sku: "V1", Price: decimal.NewFromInt(20), Stock: 3}}},
	}
	in := validInput()
	in.OrderItems = []PlaceOrderItem{
		{ProductId: 1, Variant: "V1", Quantity: 1},
		{ProductId: 2, Variant: "V1", Quantity: 1},
	}
	if err := in.validate(); err != nil {
		t.Fatalf("the same sku on two products is two lines, got %v", err)
	}
	lines, err := priceOrderLines(in.OrderItems, catalog, testNow)
	if err != nil {
		t.Fatalf("priceOrderLines: %v", err)
	}
	if lines[0].Product.ID != 1 || lines[1].Product.ID != 2 || !lines[1].Total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected lines %+v", lines)
	}
}

func TestPriceOrderLines(t *testing.T) {
	lines, err := priceOrderLines([]PlaceOrderItem{
		{ProductId: 1, Variant: "PX9-128", Quantity: 2},
		{ProductId: 2, Variant: "CHG-45", Quantity: 3},
	}, testCatalog(), testNow)
	if err != nil {
		t.Fatalf("priceOrderLines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !lines[0].Total.Equal(decimal.RequireFromString("1518.1")) || !lines[0].Discount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected first line total=%s discount=%s", lines[0].Total, lines[0].Discount)
	}
	if !lines[1].Total.Equal(decimal.NewFromInt(117)) {
		t.Fatalf("unexpected second line total %s", lines[1].Total)
	}

	cases := []struct {
		item    PlaceOrderItem
		status  int
		message string
	}{
		{PlaceOrderItem{ProductId: 99, Variant: "X", Quantity: 1}, 404, "Product not found"},
		{PlaceOrderItem{ProductId: 3, Variant: "X", Quantity: 1}, 400, "Product is not available"},
		{PlaceOrderItem{ProductId: 1, Variant: "PX9-999", Quantity: 1}, 404, "Variant not found: PX9-999"},
		{PlaceOrderItem{ProductId: 1, Variant: "PX9-128", Quantity: 6}, 400, "Not enough stock for variant: PX9-128"},
	}
	for _, tc := range cases {
		_, err := priceOrderLines([]PlaceOrderItem{tc.item}, testCatalog(), testNow)
		if !utils.IsStatus(err, tc.status) || err.Error() != tc.message {
			t.Fatalf("expected %d %q, got %v", tc.status, tc.message, err)
		}
	}
}

func TestComputeOrderTotals(t *testing.T) {
	lines, err := priceOrderLines([]PlaceOrderItem{{ProductId: 1, Variant: "PX9-128", Quantity: 2}}, testCatalog(), testNow)
	if err != nil {
		t.Fatalf("priceOrderLines: %v", err)
	}
	totals := computeOrderTotals(lines, decimal.NewFromInt(50), decimal.NewFromInt(40))
	if !totals.TotalAmount.Equal(decimal.RequireFromString("1518.1")) {
		t.Fatalf("unexpected total amount %s", totals.TotalAmount)
	}
	if !totals.TotalPriceWithDiscount.Equal(decimal.RequireFromString("1508.1")) {
		t.Fatalf("unexpected final amount %s", totals.TotalPriceWithDiscount)
	}

	clamped := computeOrderTotals(lines, decimal.NewFromInt(5000), decimal.Zero)
	if !clamped.TotalPriceWithDiscount.IsZero() {
		t.Fatalf("final amount must not go negative, got %s", clamped.TotalPriceWithDiscount)
	}
}

func TestCouponLinesUseProductCategory(t *testing.T) {
	lines, err := priceOrderLines([]PlaceOrderItem{
		{ProductId: 1, Variant: "PX9-128", Quantity: 1},
		{ProductId: 2, Variant: "CHG-45", Quantity: 1},
	}, testCatalog(), testNow)
	if err != nil {
		t.Fatalf("priceOrderLines: %v", err)
	}
	got := couponLines(lines)
	if got[0].CategoryId != 1 || got[1].CategoryId != 2 || !got[1].Amount.Equal(decimal.NewFromInt(39)) {
		t.Fatalf("unexpected coupon lines %+v", got)
	}
}

func TestCheckEchoedTotal(t *testing.T) {
	computed := decimal.RequireFromString("1508.10")
	if err := checkEchoedTotal(decimal.NullDecimal{}, computed); err != nil {
		t.Fatalf("missing echo must be accepted, got %v", err)
	}
	if err := checkEchoedTotal(decimal.NewNullDecimal(decimal.RequireFromString("1508.11")), computed); err != nil {
		t.Fatalf("a one cent drift must be accepted, got %v", err)
	}
	if err := checkEchoedTotal(decimal.NewNullDecimal(decimal.RequireFromString("1508.12")), computed); !utils.IsStatus(err, 400) {
		t.Fatalf("expected 400 for a stale total, got %v", err)
	}
}

func TestNewOrderNumber(t *testing.T) {
	a, b := NewOrderNumber(), NewOrderNumber()
	if len(a) != len("ORD-")+12 || a[:4] != "ORD-" {
		t.Fatalf("unexpected order number %q", a)
	}
	if a == b {
		t.Fatalf("order numbers must be unique, got %q twice", a)
	}
}

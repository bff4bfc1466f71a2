package models

import (
	"net/http"
	"testing"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderItemStatus
		allowed  bool
	}{
		{OrderItemStatusPending, OrderItemStatusShipped, true},
		{OrderItemStatusPending, OrderItemStatusDelivered, true},
		{OrderItemStatusPending, OrderItemStatusCancelled, true},
		{OrderItemStatusShipped, OrderItemStatusDelivered, true},
		{OrderItemStatusShipped, OrderItemStatusCancelled, true},
		{OrderItemStatusDelivered, OrderItemStatusReturned, true},
		{OrderItemStatusDelivered, OrderItemStatusCancelled, false},
		{OrderItemStatusShipped, OrderItemStatusPending, false},
		{OrderItemStatusPending, OrderItemStatusReturned, false},
		{OrderItemStatusCancelled, OrderItemStatusPending, false},
		{OrderItemStatusReturned, OrderItemStatusDelivered, false},
		{OrderItemStatusPending, OrderItemStatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Fatalf("CanTransition(%s, %s) expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestLineTotal(t *testing.T) {
	cases := []struct {
		price, discount string
		qty             int
		expected        string
	}{
		{"799", "5", 2, "1518.1"},
		{"100", "0", 3, "300"},
		{"19.99", "12.5", 1, "17.49"},
		{"50", "100", 4, "0"},
	}
	for _, tc := range cases {
		got := LineTotal(decimal.RequireFromString(tc.price), decimal.RequireFromString(tc.discount), tc.qty)
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("LineTotal(%s, %s, %d) expected %s, got %s", tc.price, tc.discount, tc.qty, tc.expected, got)
		}
	}
}

func TestEffectiveDiscount_UsesLargerUnexpiredOffer(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Product{Discount: decimal.NewFromInt(5)}
	if got := p.EffectiveDiscount(now); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected product discount 5, got %s", got)
	}

	p.Offer = &Offer{OfferValue: decimal.NewFromInt(20), EndDate: now.AddDate(0, 0, 1)}
	if got := p.EffectiveDiscount(now); !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected offer discount 20, got %s", got)
	}

	p.Offer.EndDate = now.AddDate(0, 0, -1)
	if got := p.EffectiveDiscount(now); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expired offer must be ignored, got %s", got)
	}
}

func TestEffectiveDiscount_FallsBackToLiveCandidateOffer(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := Product{
		ID: 7, CategoryId: 3, Discount: decimal.NewFromInt(5),
		Offer: &Offer{ID: 1, OfferValue: decimal.NewFromInt(40), EndDate: now.AddDate(0, 0, -1)},
		CandidateOffers: []Offer{
			{ID: 1, OfferValue: decimal.NewFromInt(40), EndDate: now.AddDate(0, 0, -1)},
			{ID: 2, OfferValue: decimal.NewFromInt(15), EndDate: now.AddDate(0, 0, 3)},
			{ID: 3, OfferValue: decimal.NewFromInt(12), EndDate: now.AddDate(0, 1, 0)},
		},
	}
	best := p.BestOffer(now)
	if best == nil || best.ID != 2 {
		t.Fatalf("expected the live 15%% offer, got %+v", best)
	}
	if got := p.EffectiveDiscount(now); !got.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected 15 once the linked offer expired, got %s", got)
	}
	if got := p.EffectiveDiscount(now.AddDate(0, 0, 5)); !got.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected 12 after the 15%% offer ends, got %s", got)
	}
	if got := p.EffectiveDiscount(now.AddDate(0, 2, 0)); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected the product discount once every offer ended, got %s", got)
	}
}

func TestReturnDeadline(t *testing.T) {
	placed := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	o := Order{PlacedAt: placed}
	if !o.IsReturnEligible(placed.AddDate(0, 0, 14), 14) {
		t.Fatalf("last day of the window must still be eligible")
	}
	if o.IsReturnEligible(placed.AddDate(0, 0, 14).Add(time.Second), 14) {
		t.Fatalf("after the window must not be eligible")
	}
}

func TestBuildSalesReport(t *testing.T) {
	order := &Order{
		ID:             7,
		UserId:         3,
		PaymentMethod:  PaymentMethodWallet,
		TotalAmount:    decimal.RequireFromString("1518.1"),
		CouponDiscount: decimal.NewFromInt(50),
		PlacedAt:       time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		Items: []OrderItem{
			{ID: 11, ProductId: 1, Quantity: 2, Price: decimal.NewFromInt(799), Discount: decimal.NewFromInt(5), Status: OrderItemStatusPending},
			{ID: 12, ProductId: 9, Quantity: 1, Price: decimal.NewFromInt(39), Status: OrderItemStatusPending},
		},
	}
	report := BuildSalesReport(order, &User{FirstName: "Demo", LastName: "Customer"}, map[int]string{1: "Pixel 9"})

	if report.CustomerName != "Demo Customer" {
		t.Fatalf("unexpected customer name %q", report.CustomerName)
	}
	if !report.FinalAmount.Equal(decimal.RequireFromString("1468.1")) {
		t.Fatalf("expected final amount 1468.1, got %s", report.FinalAmount)
	}
	if len(report.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(report.Lines))
	}
	first := report.Lines[0]
	if !first.TotalPrice.Equal(decimal.NewFromInt(1598)) || !first.Discount.Equal(decimal.RequireFromString("79.9")) {
		t.Fatalf("unexpected first line totals: total=%s discount=%s", first.TotalPrice, first.Discount)
	}
	if !first.NetAmount().Equal(decimal.RequireFromString("1518.1")) {
		t.Fatalf("unexpected net amount %s", first.NetAmount())
	}
	if report.Lines[1].ProductName != fallbackProductName {
		t.Fatalf("missing product should fall back to %q, got %q", fallbackProductName, report.Lines[1].ProductName)
	}
	if report.DeliveryStatus != OrderItemStatusPending {
		t.Fatalf("unexpected delivery status %s", report.DeliveryStatus)
	}
}

func TestSummarizeDeliveryStatus(t *testing.T) {
	lines := func(statuses ...OrderItemStatus) []SalesReportLine {
		out := make([]SalesReportLine, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, SalesReportLine{DeliveryStatus: s})
		}
		return out
	}
	cases := []struct {
		name     string
		lines    []SalesReportLine
		expected OrderItemStatus
	}{
		{"empty", nil, OrderItemStatusPending},
		{"uniform", lines(OrderItemStatusDelivered, OrderItemStatusDelivered), OrderItemStatusDelivered},
		{"open line wins over cancelled", lines(OrderItemStatusCancelled, OrderItemStatusDelivered), OrderItemStatusDelivered},
		{"least advanced open line", lines(OrderItemStatusShipped, OrderItemStatusPending), OrderItemStatusPending},
		{"all closed", lines(OrderItemStatusCancelled, OrderItemStatusReturned), OrderItemStatusReturned},
	}
	for _, tc := range cases {
		if got := SummarizeDeliveryStatus(tc.lines); got != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}

func TestPageRequest(t *testing.T) {
	p := NewPageRequest("", "")
	if p.Page != 1 || p.Limit != DefaultPageLimit {
		t.Fatalf("unexpected defaults %+v", p)
	}
	p = NewPageRequest("3", "1000")
	if p.Limit != MaxPageLimit || p.Offset() != 2*MaxPageLimit {
		t.Fatalf("unexpected clamp %+v offset=%d", p, p.Offset())
	}
	if got := TotalPages(21, 10); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}
	if got := TotalPages(0, 10); got != 0 {
		t.Fatalf("expected 0 pages, got %d", got)
	}
}

func TestFindItemSharedSkuAcrossProducts(t *testing.T) {
	order := Order{Items: []OrderItem{
		{ID: 1, ProductId: 1, VariantSku: "V1"},
		{ID: 2, ProductId: 2, VariantSku: "V1"},
		{ID: 3, ProductId: 2, VariantSku: "V2"},
	}}

	item, err := order.FindItem(OrderLineRef{Sku: "V1", ProductId: 2})
	if err != nil || item.ID != 2 {
		t.Fatalf("expected item 2, got %+v err=%v", item, err)
	}
	item, err = order.FindItem(OrderLineRef{Sku: "V2"})
	if err != nil || item.ID != 3 {
		t.Fatalf("an unambiguous sku should not need a product, got %+v err=%v", item, err)
	}
	if _, err := order.FindItem(OrderLineRef{Sku: "V1"}); !utils.IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("expected an ambiguity error, got %v", err)
	}
	if _, err := order.FindItem(OrderLineRef{Sku: "V2", ProductId: 1}); !utils.IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

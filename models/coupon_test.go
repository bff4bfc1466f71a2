package models

import (
	"testing"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
)

func save10() Coupon {
	limit := 1
	return Coupon{
		Code:               "SAVE10",
		DiscountType:       DiscountTypePercentage,
		DiscountValue:      decimal.NewFromInt(10),
		MinPurchaseAmount:  decimal.NewFromInt(100),
		MaxDiscountAmount:  decimal.NewNullDecimal(decimal.NewFromInt(50)),
		ExpirationDate:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		UsageLimit:         &limit,
		IsActive:           true,
		EligibleCategories: []Category{{ID: 1}, {ID: 3}},
	}
}

func TestComputeCouponDiscount(t *testing.T) {
	fixed := Coupon{DiscountType: DiscountTypeFixed, DiscountValue: decimal.NewFromInt(500)}
	cases := []struct {
		name     string
		coupon   Coupon
		amount   string
		expected string
	}{
		{"percentage capped by max", save10(), "1000", "50"},
		{"percentage rounds up", save10(), "333", "34"},
		{"percentage below cap", save10(), "120", "12"},
		{"fixed never exceeds amount", fixed, "300", "300"},
		{"fixed", fixed, "800", "500"},
		{"zero amount", save10(), "0", "0"},
		{"unknown type", Coupon{DiscountType: "bogus", DiscountValue: decimal.NewFromInt(5)}, "100", "0"},
	}
	for _, tc := range cases {
		got := ComputeCouponDiscount(tc.coupon, decimal.RequireFromString(tc.amount))
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}

func TestCouponDiscountForLines_SkipsIneligibleAndBelowMinimum(t *testing.T) {
	lines := []CouponLine{
		{CategoryId: 1, Amount: decimal.NewFromInt(1000)},
		{CategoryId: 2, Amount: decimal.NewFromInt(1000)},
		{CategoryId: 3, Amount: decimal.NewFromInt(50)},
		{CategoryId: 3, Amount: decimal.NewFromInt(200)},
	}
	got := CouponDiscountForLines(save10(), lines)
	if !got.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected 70, got %s", got)
	}

	// 1000 with SAVE10 leaves 950 to pay.
	single := []CouponLine{{CategoryId: 1, Amount: decimal.NewFromInt(1000)}}
	if after := decimal.NewFromInt(1000).Sub(CouponDiscountForLines(save10(), single)); !after.Equal(decimal.NewFromInt(950)) {
		t.Fatalf("expected 950 after discount, got %s", after)
	}
}

func TestCouponCheckUsable(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := save10().CheckUsable(now); err != nil {
		t.Fatalf("expected usable coupon, got %v", err)
	}

	inactive := save10()
	inactive.IsActive = false
	if err := inactive.CheckUsable(now); err == nil || err.Error() != "Coupon is not active" {
		t.Fatalf("expected inactive error, got %v", err)
	}

	expired := save10()
	expired.ExpirationDate = now.Add(-time.Hour)
	err := expired.CheckUsable(now)
	if !utils.IsStatus(err, 400) || err.Error() != "Coupon has expired" {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestCouponLimitReached(t *testing.T) {
	c := save10()
	if c.limitReached(0) {
		t.Fatalf("limit 1 should allow the first use")
	}
	if !c.limitReached(1) {
		t.Fatalf("limit 1 should stop the second use")
	}
	c.UsageLimit = nil
	if c.limitReached(1000) {
		t.Fatalf("nil usage limit means unlimited")
	}
}

func TestNormalizeCouponCode(t *testing.T) {
	if got := NormalizeCouponCode("  save10 "); got != "SAVE10" {
		t.Fatalf("expected SAVE10, got %q", got)
	}
}

package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// UnifiedRefundPolicy makes admin-initiated cancellation refund under the same rule as
// user-initiated cancellation (refundable method AND paid), instead of "anything but COD".
//
// Set via env:
// - UNIFIED_REFUND_POLICY=true
func UnifiedRefundPolicy() bool {
	return boolFromEnv("UNIFIED_REFUND_POLICY")
}

// ReturnWindowDays is how long after placement an item may be returned.
//
// Set via env:
// - RETURN_WINDOW_DAYS=14
func ReturnWindowDays() int {
	n := IntFromEnv("RETURN_WINDOW_DAYS", 14)
	if n < 0 {
		return 0
	}
	return n
}

// PhoneRegion is the default region used to parse shipping phone numbers.
func PhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_REGION")))
	if v == "" {
		return "IN"
	}
	return v
}

// ReferralRewardAmount is credited to both wallets on a verified referral.
func ReferralRewardAmount() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("REFERRAL_REWARD_AMOUNT"))
	if v == "" {
		return decimal.NewFromInt(2000)
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.NewFromInt(2000)
	}
	return d
}

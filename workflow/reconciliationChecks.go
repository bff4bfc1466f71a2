package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerViolation is one broken ledger invariant.
type LedgerViolation struct {
	Check     string `json:"check"`
	Reference string `json:"reference"`
	Detail    string `json:"detail"`
}

const (
	CheckStockMovements = "stock_movements"
	CheckCouponUsage    = "coupon_usage"
	CheckWalletBalance  = "wallet_balance"
)

type couponOveruse struct {
	CouponId   int
	UserId     int
	UsedCount  int
	UsageLimit int
}

// stockViolations compares the movement ledger against the variant counters.
// Every movement moves stock and sold by opposite amounts, and sold starts at zero.
func stockViolations(totals []models.VariantMovementTotal, soldByVariant map[int]int) []LedgerViolation {
	var violations []LedgerViolation
	seen := make(map[int]bool, len(totals))
	for _, t := range totals {
		seen[t.VariantId] = true
		if t.StockDelta != -t.SoldDelta {
			violations = append(violations, LedgerViolation{
				Check:     CheckStockMovements,
				Reference: fmt.Sprintf("variant:%d", t.VariantId),
				Detail:    fmt.Sprintf("stock delta %d does not mirror sold delta %d", t.StockDelta, t.SoldDelta),
			})
		}
		if sold, ok := soldByVariant[t.VariantId]; ok && sold != t.SoldDelta {
			violations = append(violations, LedgerViolation{
				Check:     CheckStockMovements,
				Reference: fmt.Sprintf("variant:%d", t.VariantId),
				Detail:    fmt.Sprintf("quantity_sold %d but movements sum to %d", sold, t.SoldDelta),
			})
		}
	}
	for variantId, sold := range soldByVariant {
		if !seen[variantId] && sold != 0 {
			violations = append(violations, LedgerViolation{
				Check:     CheckStockMovements,
				Reference: fmt.Sprintf("variant:%d", variantId),
				Detail:    fmt.Sprintf("quantity_sold %d without stock movements", sold),
			})
		}
	}
	return violations
}

// RunLedgerChecks verifies the stock, coupon usage and wallet invariants and
// returns every violation found.
func RunLedgerChecks(ctx context.Context, db *gorm.DB, logger *logrus.Logger) ([]LedgerViolation, error) {
	tx := db.WithContext(ctx)

	totals, err := models.GetVariantMovementTotals(tx)
	if err != nil {
		return nil, fmt.Errorf("stock movement totals: %w", err)
	}
	var variants []models.ProductVariant
	if err := tx.Select("id", "quantity_sold").Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	soldByVariant := make(map[int]int, len(variants))
	for _, v := range variants {
		soldByVariant[v.ID] = v.QuantitySold
	}
	violations := stockViolations(totals, soldByVariant)

	var overused []couponOveruse
	if err := tx.Raw(`
SELECT u.coupon_id, u.user_id, u.used_count, c.usage_limit
FROM coupon_usages u
JOIN coupons c ON c.id = u.coupon_id
WHERE c.usage_limit IS NOT NULL AND u.used_count > c.usage_limit`).Scan(&overused).Error; err != nil {
		return nil, fmt.Errorf("coupon usage check: %w", err)
	}
	for _, o := range overused {
		violations = append(violations, LedgerViolation{
			Check:     CheckCouponUsage,
			Reference: fmt.Sprintf("coupon:%d user:%d", o.CouponId, o.UserId),
			Detail:    fmt.Sprintf("used_count %d exceeds usage_limit %d", o.UsedCount, o.UsageLimit),
		})
	}

	drifts, err := models.FindWalletBalanceDrift(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("wallet balance check: %w", err)
	}
	for _, d := range drifts {
		violations = append(violations, LedgerViolation{
			Check:     CheckWalletBalance,
			Reference: fmt.Sprintf("wallet:%d user:%d", d.WalletId, d.UserId),
			Detail:    fmt.Sprintf("balance %s but transactions sum to %s", d.Balance.String(), d.TransactionSum.String()),
		})
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":      "ReconciliationChecks",
			"violations": len(violations),
		}).Info("ledger reconciliation checks completed")
	}
	return violations, nil
}

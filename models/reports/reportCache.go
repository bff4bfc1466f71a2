package reports

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/sirupsen/logrus"
)

// bestSellingCacheKey holds the best-selling aggregates.
const bestSellingCacheKey = "reports:best-selling"

func bestSellingCacheTTL() time.Duration {
	// Env: BEST_SELLING_CACHE_TTL_SECONDS (default 300s)
	ttl := 300
	if v := strings.TrimSpace(os.Getenv("BEST_SELLING_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	config.GetLogger().WithFields(logrus.Fields{
		"field":          "SlowReport",
		"report":         name,
		"ms":             d.Milliseconds(),
		"correlation_id": utils.CorrelationId(ctx),
		"extra":          extra,
	}).Warn("slow report")
}

// InvalidateBestSelling drops the cached best-selling aggregates.
func InvalidateBestSelling(ctx context.Context) {
	utils.InvalidateCache(ctx, bestSellingCacheKey)
}

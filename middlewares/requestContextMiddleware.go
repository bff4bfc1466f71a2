package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/storefront_backend/utils"
)

const (
	CorrelationIdHeader  = "X-Correlation-Id"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// RequestContextMiddleware generates a correlation id once per request and carries the
// optional Idempotency-Key header into the request context.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := strings.TrimSpace(c.GetHeader(CorrelationIdHeader))
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
			ctx = utils.SetIdempotencyKeyInContext(ctx, key)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header(CorrelationIdHeader, cid)
		c.Next()
	}
}

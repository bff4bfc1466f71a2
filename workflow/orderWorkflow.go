package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("storefront-backend")

// OrderWorkflow owns every order mutation. Build it once and share it across requests.
type OrderWorkflow struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	// Locker is optional; when nil only the database advisory lock serializes checkouts.
	Locker         *redislock.Client
	Clock          func() time.Time
	NewOrderNumber func() string
}

func NewOrderWorkflow(db *gorm.DB, logger *logrus.Logger, locker *redislock.Client) *OrderWorkflow {
	return &OrderWorkflow{
		DB:             db,
		Logger:         logger,
		Locker:         locker,
		Clock:          func() time.Time { return time.Now().UTC() },
		NewOrderNumber: NewOrderNumber,
	}
}

// NewOrderNumber returns "ORD-" followed by 12 upper-case hex characters.
func NewOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:12])
}

func (w *OrderWorkflow) now() time.Time {
	if w.Clock == nil {
		return time.Now().UTC()
	}
	return w.Clock()
}

func (w *OrderWorkflow) logger() *logrus.Logger {
	if w.Logger == nil {
		return config.GetLogger()
	}
	return w.Logger
}

func (w *OrderWorkflow) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// lockCheckout takes the best-effort redis lock for a user's checkout.
// A redis outage does not block checkout; the advisory lock inside the tx still applies.
func (w *OrderWorkflow) lockCheckout(ctx context.Context, userId int) func() {
	if w.Locker == nil {
		return func() {}
	}
	lock, err := w.Locker.Obtain(ctx, checkoutLockName(userId), 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(w.logger(), "OrderWorkflow.go", "lockCheckout", "redis lock unavailable", userId, err)
		}
		return func() {}
	}
	return func() {
		_ = lock.Release(context.Background())
	}
}

func (w *OrderWorkflow) logTransition(ctx context.Context, action string, orderId int, sku string, fields logrus.Fields) {
	entry := w.logger().WithFields(logrus.Fields{
		"field":          "OrderWorkflow",
		"action":         action,
		"order_id":       orderId,
		"sku":            sku,
		"correlation_id": utils.CorrelationId(ctx),
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Info(fmt.Sprintf("%s committed", action))
}

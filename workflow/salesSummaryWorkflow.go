package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	eventsScope              = "events"
	dailySalesSummaryHandler = "daily_sales_summary"
)

func parseEventAmount(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

// dailySalesDeltaFor maps an order event onto the summary counters.
// ok is false for events that do not move the summary.
func dailySalesDeltaFor(eventType models.OrderEventType, payload models.OrderEventPayload) (delta models.DailySalesDelta, ok bool, err error) {
	amount, err := parseEventAmount(payload.Amount)
	if err != nil {
		return delta, false, fmt.Errorf("invalid amount %q: %w", payload.Amount, err)
	}
	switch eventType {
	case models.OrderEventPlaced:
		return models.DailySalesDelta{OrderCount: 1, ItemsSold: payload.ItemCount, GrossSales: amount}, true, nil
	case models.OrderEventItemCancelled:
		return models.DailySalesDelta{ReversedAmount: amount, CancelledItems: payload.Quantity}, true, nil
	case models.OrderEventItemReturned:
		return models.DailySalesDelta{ReversedAmount: amount, ReturnedItems: payload.Quantity}, true, nil
	}
	return delta, false, nil
}

// ProcessOrderEvent projects one order event onto daily_sales_summaries exactly once.
// Refunds are booked on the day the order was placed so a rebuild gives the same rows.
func ProcessOrderEvent(ctx context.Context, db *gorm.DB, logger *logrus.Logger, msg config.OrderEventMessage) error {
	payload, err := models.DecodeOrderEventPayload(msg)
	if err != nil {
		return fmt.Errorf("decode order event %d: %w", msg.ID, err)
	}
	delta, ok, err := dailySalesDeltaFor(models.OrderEventType(msg.EventType), payload)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	messageId := strconv.Itoa(msg.ID)
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idem, err := BeginIdempotency(tx, eventsScope, dailySalesSummaryHandler, messageId)
		if err != nil {
			return err
		}
		if idem.Skip {
			return nil
		}

		day := msg.OccurredAt
		if msg.EventType != string(models.OrderEventPlaced) {
			var order models.Order
			if err := tx.Select("id", "placed_at").First(&order, msg.OrderId).Error; err != nil {
				return fmt.Errorf("load order %d: %w", msg.OrderId, err)
			}
			day = order.PlacedAt
		}
		if day.IsZero() {
			day = time.Now().UTC()
		}
		if err := models.ApplyDailySalesDelta(tx, day, delta); err != nil {
			return err
		}
		return MarkIdempotencySucceeded(tx, eventsScope, dailySalesSummaryHandler, messageId, "")
	})
	if err != nil && !errors.Is(err, ErrIdempotencyInProgress) {
		config.LogError(logger, "SalesSummaryWorkflow.go", "ProcessOrderEvent", "apply daily sales delta", msg, err)
	}
	return err
}

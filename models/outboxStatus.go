package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// OrderEventStatus is the ops view of one outbox row.
type OrderEventStatus struct {
	RecordId             int            `json:"record_id"`
	EventType            OrderEventType `json:"event_type"`
	OrderItemId          int            `json:"order_item_id"`
	PublishStatus        string         `json:"publish_status"`
	ProcessingStatus     string         `json:"processing_status"`
	PublishAttempts      int            `json:"publish_attempts"`
	ProcessAttempts      int            `json:"process_attempts"`
	NextAttemptAt        *time.Time     `json:"next_attempt_at"`
	NextProcessAttemptAt *time.Time     `json:"next_process_attempt_at"`
	LastPublishError     *string        `json:"last_publish_error"`
	LastProcessError     *string        `json:"last_process_error"`
	OccurredAt           time.Time      `json:"occurred_at"`
	PublishedAt          *time.Time     `json:"published_at"`
	ProcessedAt          *time.Time     `json:"processed_at"`
}

func toOrderEventStatus(rec OrderEventRecord) OrderEventStatus {
	processing := rec.ProcessingStatus
	if processing == "" {
		processing = OutboxProcessStatusPending
	}
	return OrderEventStatus{
		RecordId:             rec.ID,
		EventType:            rec.EventType,
		OrderItemId:          rec.OrderItemId,
		PublishStatus:        rec.PublishStatus,
		ProcessingStatus:     processing,
		PublishAttempts:      rec.PublishAttempts,
		ProcessAttempts:      rec.ProcessAttempts,
		NextAttemptAt:        rec.NextAttemptAt,
		NextProcessAttemptAt: rec.NextProcessAttemptAt,
		LastPublishError:     rec.LastPublishError,
		LastProcessError:     rec.LastProcessError,
		OccurredAt:           rec.OccurredAt,
		PublishedAt:          rec.PublishedAt,
		ProcessedAt:          rec.ProcessedAt,
	}
}

// ListOrderEventStatuses returns every outbox row of an order, oldest first.
func ListOrderEventStatuses(ctx context.Context, db *gorm.DB, orderId int) ([]OrderEventStatus, error) {
	var records []OrderEventRecord
	if err := db.WithContext(ctx).
		Where("order_id = ?", orderId).
		Order("id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	statuses := make([]OrderEventStatus, 0, len(records))
	for _, rec := range records {
		statuses = append(statuses, toOrderEventStatus(rec))
	}
	return statuses, nil
}

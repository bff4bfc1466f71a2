package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/utils"
	"gorm.io/gorm"
)

type OrderEventType string

const (
	OrderEventPlaced               OrderEventType = "ORDER_PLACED"
	OrderEventItemCancelled        OrderEventType = "ORDER_ITEM_CANCELLED"
	OrderEventItemStatusChanged    OrderEventType = "ORDER_ITEM_STATUS_CHANGED"
	OrderEventItemReturnRequested  OrderEventType = "ORDER_ITEM_RETURN_REQUESTED"
	OrderEventItemReturned         OrderEventType = "ORDER_ITEM_RETURNED"
	OrderEventPaymentStatusChanged OrderEventType = "PAYMENT_STATUS_CHANGED"
)

// OrderEventRecord is the transactional outbox row written in the same
// transaction as the order change it describes. Publishing happens after
// commit via the dispatcher.
type OrderEventRecord struct {
	ID          int            `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType   OrderEventType `gorm:"size:50;not null;index" json:"event_type"`
	OrderId     int            `gorm:"not null;index" json:"order_id"`
	OrderItemId int            `gorm:"index" json:"order_item_id"`
	UserId      int            `gorm:"index" json:"user_id"`
	OccurredAt  time.Time      `gorm:"not null;index" json:"occurred_at"`
	Payload     []byte         `gorm:"type:blob" json:"payload"`
	// Publish metadata.
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	// Processing metadata (consumer/worker).
	ProcessingStatus     string     `gorm:"size:20;index;not null;default:'PENDING'" json:"processing_status"`
	ProcessAttempts      int        `gorm:"not null;default:0" json:"process_attempts"`
	NextProcessAttemptAt *time.Time `gorm:"index" json:"next_process_attempt_at"`
	LastProcessError     *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt          *time.Time `gorm:"index" json:"processed_at"`
	CorrelationId        string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderEventPayload is the JSON body of an order event.
type OrderEventPayload struct {
	OrderNumber   string          `json:"order_number,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	PaymentStatus PaymentStatus   `json:"payment_status,omitempty"`
	FromStatus    OrderItemStatus `json:"from_status,omitempty"`
	ToStatus      OrderItemStatus `json:"to_status,omitempty"`
	Sku           string          `json:"sku,omitempty"`
	Quantity      int             `json:"quantity,omitempty"`
	ItemCount     int             `json:"item_count,omitempty"`
	Amount        string          `json:"amount,omitempty"`
	Refunded      string          `json:"refunded,omitempty"`
}

func ConvertToOrderEventMessage(record OrderEventRecord) config.OrderEventMessage {
	return config.OrderEventMessage{
		ID:            record.ID,
		EventType:     string(record.EventType),
		OrderId:       record.OrderId,
		OrderItemId:   record.OrderItemId,
		UserId:        record.UserId,
		OccurredAt:    record.OccurredAt,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}

// DecodeOrderEventPayload parses the payload carried by a message.
func DecodeOrderEventPayload(msg config.OrderEventMessage) (OrderEventPayload, error) {
	var payload OrderEventPayload
	if len(msg.Payload) == 0 {
		return payload, nil
	}
	err := json.Unmarshal(msg.Payload, &payload)
	return payload, err
}

// AppendOrderEvent writes an outbox row on tx.
func AppendOrderEvent(ctx context.Context, tx *gorm.DB, eventType OrderEventType, orderId, orderItemId, userId int, occurredAt time.Time, payload OrderEventPayload) (*OrderEventRecord, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	record := OrderEventRecord{
		EventType:        eventType,
		OrderId:          orderId,
		OrderItemId:      orderItemId,
		UserId:           userId,
		OccurredAt:       occurredAt.UTC(),
		Payload:          body,
		PublishStatus:    OutboxPublishStatusPending,
		ProcessingStatus: OutboxProcessStatusPending,
		CorrelationId:    utils.CorrelationId(ctx),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ReplayOrderEvents resets FAILED/DEAD rows so the workers pick them up again.
// It returns the number of rows reset.
func ReplayOrderEvents(ctx context.Context, db *gorm.DB, ids []int) (int64, error) {
	now := time.Now().UTC()
	q := db.WithContext(ctx).
		Model(&OrderEventRecord{}).
		Where("processing_status IN ? OR publish_status IN ?",
			[]string{OutboxProcessStatusFailed, OutboxProcessStatusDead},
			[]string{OutboxPublishStatusFailed, OutboxPublishStatusDead})
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]interface{}{
		"locked_at":               nil,
		"locked_by":               nil,
		"publish_status":          OutboxPublishStatusPending,
		"next_attempt_at":         nil,
		"processing_status":       OutboxProcessStatusPending,
		"next_process_attempt_at": &now,
		"last_process_error":      nil,
	})
	return res.RowsAffected, res.Error
}

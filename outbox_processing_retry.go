package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type outboxProcessRetryConfig struct {
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func positiveEnvInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	return n, err == nil && n > 0
}

func getOutboxProcessRetryConfig() outboxProcessRetryConfig {
	cfg := outboxProcessRetryConfig{
		maxAttempts: 10,
		baseBackoff: 5 * time.Second,
		maxBackoff:  10 * time.Minute,
	}
	if n, ok := positiveEnvInt("OUTBOX_PROCESS_MAX_ATTEMPTS"); ok {
		cfg.maxAttempts = n
	}
	if n, ok := positiveEnvInt("OUTBOX_PROCESS_BASE_BACKOFF_SECONDS"); ok {
		cfg.baseBackoff = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnvInt("OUTBOX_PROCESS_MAX_BACKOFF_SECONDS"); ok {
		cfg.maxBackoff = time.Duration(n) * time.Second
	}
	return cfg
}

// outboxProcessBackoff doubles from baseBackoff per attempt, capped at maxBackoff.
func outboxProcessBackoff(attempt int, cfg outboxProcessRetryConfig) time.Duration {
	delay := cfg.baseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.maxBackoff || delay <= 0 {
			return cfg.maxBackoff
		}
	}
	return delay
}

// nextProcessState decides where a failed event goes after its attempts-th failure.
func nextProcessState(attempts int, now time.Time, cfg outboxProcessRetryConfig) (string, *time.Time) {
	if attempts >= cfg.maxAttempts {
		return models.OutboxProcessStatusDead, nil
	}
	next := now.Add(outboxProcessBackoff(attempts, cfg))
	return models.OutboxProcessStatusFailed, &next
}

// outboxProcessTracker records the processing lifecycle of one order event on its outbox row.
type outboxProcessTracker struct {
	db     *gorm.DB
	logger *logrus.Logger
	cfg    outboxProcessRetryConfig
}

func newOutboxProcessTracker(logger *logrus.Logger) *outboxProcessTracker {
	return &outboxProcessTracker{
		db:     config.GetDB(),
		logger: logger,
		cfg:    getOutboxProcessRetryConfig(),
	}
}

func (t *outboxProcessTracker) row(ctx context.Context, id int) *gorm.DB {
	return t.db.WithContext(ctx).Model(&models.OrderEventRecord{}).Where("id = ?", id)
}

func (t *outboxProcessTracker) started(ctx context.Context, id int) {
	if id <= 0 {
		return
	}
	_ = t.row(ctx, id).
		Where("processing_status NOT IN ?", []string{models.OutboxProcessStatusDead, models.OutboxProcessStatusSucceeded}).
		Update("processing_status", models.OutboxProcessStatusProcessing).Error
}

// failed returns whether the event is now DEAD.
func (t *outboxProcessTracker) failed(ctx context.Context, m config.OrderEventMessage, cause error) bool {
	if m.ID <= 0 {
		return false
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	var rec models.OrderEventRecord
	if err := t.db.WithContext(ctx).Select("id", "process_attempts").First(&rec, m.ID).Error; err != nil {
		_ = t.row(ctx, m.ID).Updates(map[string]interface{}{
			"last_process_error": &errMsg,
			"processing_status":  models.OutboxProcessStatusFailed,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
		return false
	}

	attempts := rec.ProcessAttempts + 1
	status, nextAttemptAt := nextProcessState(attempts, time.Now().UTC(), t.cfg)
	_ = t.row(ctx, m.ID).Updates(map[string]interface{}{
		"last_process_error":      &errMsg,
		"process_attempts":        attempts,
		"next_process_attempt_at": nextAttemptAt,
		"processing_status":       status,
		"locked_at":               nil,
		"locked_by":               nil,
	}).Error

	if t.logger != nil {
		t.logger.WithFields(logrus.Fields{
			"field":             "OutboxProcessing",
			"event_type":        m.EventType,
			"order_id":          m.OrderId,
			"record_id":         m.ID,
			"processing_status": status,
			"process_attempts":  attempts,
			"correlation_id":    m.CorrelationId,
		}).Error("order event processing failed: " + errMsg)
	}
	return status == models.OutboxProcessStatusDead
}

func (t *outboxProcessTracker) succeeded(ctx context.Context, m config.OrderEventMessage) {
	if m.ID <= 0 {
		return
	}
	now := time.Now().UTC()
	_ = t.row(ctx, m.ID).
		Where("processing_status <> ?", models.OutboxProcessStatusDead).
		Updates(map[string]interface{}{
			"processing_status":       models.OutboxProcessStatusSucceeded,
			"processed_at":            &now,
			"next_process_attempt_at": nil,
			"last_process_error":      nil,
			"locked_at":               nil,
			"locked_by":               nil,
		}).Error

	if t.logger != nil {
		t.logger.WithFields(logrus.Fields{
			"field":      "OutboxProcessing",
			"event_type": m.EventType,
			"order_id":   m.OrderId,
			"record_id":  m.ID,
		}).Info("order event processed")
	}
}

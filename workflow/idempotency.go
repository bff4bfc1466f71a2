package workflow

import (
	"errors"
	"time"

	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// staleIdempotencyAfter is how long a STARTED key blocks retries before it is taken over.
const staleIdempotencyAfter = 5 * time.Minute

// IdempotencyResult is what BeginIdempotency found.
type IdempotencyResult struct {
	// Skip is true when the key already SUCCEEDED.
	Skip bool
	// ResultRef is the stored reference of the succeeded call, if any.
	ResultRef string
}

// BeginIdempotency inserts STARTED. If SUCCEEDED exists, it returns Skip=true meaning "skip safely".
func BeginIdempotency(tx *gorm.DB, scope, handlerName, messageId string) (IdempotencyResult, error) {
	key := models.IdempotencyKey{
		Scope:       scope,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return IdempotencyResult{}, nil
	} else if !models.IsDuplicateKeyErr(err) {
		return IdempotencyResult{}, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("scope = ? AND handler_name = ? AND message_id = ?", scope, handlerName, messageId).
		First(&existing).Error; err != nil {
		return IdempotencyResult{}, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return IdempotencyResult{Skip: true, ResultRef: utils.DereferencePtr(existing.ResultRef)}, nil
	case models.IdempotencyStatusStarted:
		// Another worker may be processing it; a stale row is taken over.
		if time.Since(existing.UpdatedAt) < staleIdempotencyAfter {
			return IdempotencyResult{}, ErrIdempotencyInProgress
		}
	}
	return IdempotencyResult{}, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func MarkIdempotencySucceeded(tx *gorm.DB, scope, handlerName, messageId string, resultRef string) error {
	updates := map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}
	if resultRef != "" {
		updates["result_ref"] = resultRef
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("scope = ? AND handler_name = ? AND message_id = ?", scope, handlerName, messageId).
		Updates(updates).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, scope, handlerName, messageId string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("scope = ? AND handler_name = ? AND message_id = ?", scope, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}

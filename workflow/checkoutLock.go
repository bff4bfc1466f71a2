package workflow

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mmdatafocus/storefront_backend/utils"
	"gorm.io/gorm"
)

// checkoutLockWait bounds how long a second checkout of the same user queues
// behind the first before it is turned away.
const checkoutLockWait = 10 * time.Second

// ErrCheckoutBusy is returned while another checkout of the same user holds the lock.
var ErrCheckoutBusy = utils.NewConflictError("Another checkout is in progress for this account")

func checkoutLockName(userId int) string {
	return fmt.Sprintf("checkout:%d", userId)
}

// AcquireCheckoutLock takes the per-user MySQL advisory lock. GET_LOCK belongs
// to the connection, so tx must be the transaction that places the order.
func AcquireCheckoutLock(tx *gorm.DB, userId int) error {
	var got sql.NullInt64
	err := tx.Raw("SELECT GET_LOCK(?, ?)", checkoutLockName(userId), int(checkoutLockWait/time.Second)).Scan(&got).Error
	if err != nil {
		return fmt.Errorf("checkout lock for user %d: %w", userId, err)
	}
	// 0 is a timeout; NULL means the server failed to take the lock.
	switch {
	case !got.Valid:
		return fmt.Errorf("checkout lock for user %d: GET_LOCK returned NULL", userId)
	case got.Int64 != 1:
		return ErrCheckoutBusy
	}
	return nil
}

func ReleaseCheckoutLock(tx *gorm.DB, userId int) {
	var released sql.NullInt64
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", checkoutLockName(userId)).Scan(&released).Error
}

package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReturnRequestInput struct {
	Reason  string `json:"reason" binding:"required"`
	Comment string `json:"comment"`
}

type ReturnResponseInput struct {
	Approved *bool `json:"approved" binding:"required"`
}

type UpdateStatusInput struct {
	Status models.OrderItemStatus `json:"status" binding:"required"`
}

type RetryPaymentInput struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
}

// refundsOnCancel decides whether cancelling a line credits the wallet.
// A user cancel refunds only paid orders of wallet-refundable methods; an admin cancel
// refunds anything that is not cash on delivery unless the unified policy is on.
func refundsOnCancel(order *models.Order, byAdmin, unified bool) bool {
	if byAdmin && !unified {
		return order.PaymentMethod != models.PaymentMethodCashOnDelivery
	}
	return order.PaymentMethod.IsRefundableToWallet() && order.PaymentStatus == models.PaymentStatusPaid
}

func (w *OrderWorkflow) inTransition(ctx context.Context, name string, orderId int, line models.OrderLineRef, fn func(tx *gorm.DB) error) (err error) {
	ctx, span := w.startSpan(ctx, "OrderWorkflow."+name,
		attribute.Int("order_id", orderId),
		attribute.String("line", line.String()))
	defer func() { endSpan(span, err) }()

	err = w.DB.WithContext(ctx).Transaction(fn)
	if err != nil {
		if _, ok := utils.AsAppError(err); !ok {
			config.LogError(w.logger(), "OrderTransitions.go", name, fmt.Sprintf("order %d item %s", orderId, line), nil, err)
		}
	}
	return err
}

func lockOwnedOrderItem(tx *gorm.DB, userId, orderId int, line models.OrderLineRef) (*models.Order, *models.OrderItem, error) {
	order, item, err := models.LockOrderItem(tx, orderId, line)
	if err != nil {
		return nil, nil, err
	}
	if order.UserId != userId {
		return nil, nil, utils.NewForbiddenError("Order does not belong to this user")
	}
	return order, item, nil
}

// cancelLine applies the side effects shared by user and admin cancellation.
func (w *OrderWorkflow) cancelLine(ctx context.Context, tx *gorm.DB, order *models.Order, item *models.OrderItem, refund bool) (decimal.Decimal, error) {
	from := item.Status
	if err := models.SetOrderItemStatus(tx, item, models.OrderItemStatusCancelled); err != nil {
		return decimal.Zero, err
	}
	if err := models.RestoreStock(tx, item.StockRef(), models.StockMovementCancel); err != nil {
		return decimal.Zero, err
	}
	refunded := decimal.Zero
	if refund && item.TotalPrice.IsPositive() {
		if _, err := models.CreditWallet(tx, models.WalletEntry{
			UserId:      order.UserId,
			Amount:      item.TotalPrice,
			OrderId:     &order.ID,
			Description: "Refund for cancelled item " + item.VariantSku + " of order " + order.OrderNumber,
		}); err != nil {
			return decimal.Zero, err
		}
		refunded = item.TotalPrice
	}
	if err := models.MarkSalesReportLineStatus(tx, item.ID, models.OrderItemStatusCancelled); err != nil {
		return decimal.Zero, err
	}
	_, err := models.AppendOrderEvent(ctx, tx, models.OrderEventItemCancelled, order.ID, item.ID, order.UserId, w.now(), models.OrderEventPayload{
		OrderNumber:   order.OrderNumber,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		FromStatus:    from,
		ToStatus:      models.OrderItemStatusCancelled,
		Sku:           item.VariantSku,
		Quantity:      item.Quantity,
		Amount:        item.TotalPrice.StringFixed(2),
		Refunded:      refunded.StringFixed(2),
	})
	return refunded, err
}

// CancelOrderItem is the customer cancelling one line of their own order.
func (w *OrderWorkflow) CancelOrderItem(ctx context.Context, userId, orderId int, line models.OrderLineRef) error {
	var refunded decimal.Decimal
	err := w.inTransition(ctx, "CancelOrderItem", orderId, line, func(tx *gorm.DB) error {
		order, item, err := lockOwnedOrderItem(tx, userId, orderId, line)
		if err != nil {
			return err
		}
		if item.Status == models.OrderItemStatusCancelled {
			return utils.NewValidationError("Order item is already canceled")
		}
		if !models.CanTransition(item.Status, models.OrderItemStatusCancelled) {
			return utils.NewValidationError("Order item cannot be cancelled in its current status")
		}
		refunded, err = w.cancelLine(ctx, tx, order, item, refundsOnCancel(order, false, false))
		return err
	})
	if err == nil {
		w.logTransition(ctx, "cancel_order_item", orderId, line.String(), logrus.Fields{"user_id": userId, "refunded": refunded.String()})
	}
	return err
}

// UpdateOrderItemStatus is the admin moving a line through fulfilment.
func (w *OrderWorkflow) UpdateOrderItemStatus(ctx context.Context, orderId int, line models.OrderLineRef, status models.OrderItemStatus) error {
	if !status.IsValid() {
		return utils.NewValidationError("Invalid order status")
	}
	if status == models.OrderItemStatusReturned {
		return utils.NewValidationError("Returned status can only be set by approving a return request")
	}
	err := w.inTransition(ctx, "UpdateOrderItemStatus", orderId, line, func(tx *gorm.DB) error {
		order, item, err := models.LockOrderItem(tx, orderId, line)
		if err != nil {
			return err
		}
		if item.Status == status {
			return utils.NewValidationError(fmt.Sprintf("Order item is already %s", status))
		}
		if !models.CanTransition(item.Status, status) {
			return utils.NewValidationError(fmt.Sprintf("Order item cannot move from %s to %s", item.Status, status))
		}
		if status == models.OrderItemStatusDelivered && order.PaymentStatus == models.PaymentStatusFailed {
			return utils.NewValidationError("Cannot set the status to delivered without completing the payment")
		}

		if status == models.OrderItemStatusCancelled {
			_, err := w.cancelLine(ctx, tx, order, item, refundsOnCancel(order, true, config.UnifiedRefundPolicy()))
			return err
		}

		from := item.Status
		if err := models.SetOrderItemStatus(tx, item, status); err != nil {
			return err
		}
		if err := models.MarkSalesReportLineStatus(tx, item.ID, status); err != nil {
			return err
		}
		_, err = models.AppendOrderEvent(ctx, tx, models.OrderEventItemStatusChanged, order.ID, item.ID, order.UserId, w.now(), models.OrderEventPayload{
			OrderNumber: order.OrderNumber,
			FromStatus:  from,
			ToStatus:    status,
			Sku:         item.VariantSku,
			Quantity:    item.Quantity,
		})
		return err
	})
	if err == nil {
		w.logTransition(ctx, "update_order_item_status", orderId, line.String(), logrus.Fields{"status": status})
	}
	return err
}

// RequestReturn records a customer's return request on a delivered line.
func (w *OrderWorkflow) RequestReturn(ctx context.Context, userId, orderId int, line models.OrderLineRef, input *ReturnRequestInput) error {
	if input == nil || input.Reason == "" {
		return utils.NewValidationError("Return reason is required")
	}
	err := w.inTransition(ctx, "RequestReturn", orderId, line, func(tx *gorm.DB) error {
		order, item, err := lockOwnedOrderItem(tx, userId, orderId, line)
		if err != nil {
			return err
		}
		if item.ReturnRequested {
			return utils.NewValidationError("Return already requested")
		}
		if item.Status != models.OrderItemStatusDelivered {
			return utils.NewValidationError("Only delivered items can be returned")
		}
		now := w.now()
		if !order.IsReturnEligible(now, config.ReturnWindowDays()) {
			return utils.NewValidationError("Return window has expired")
		}
		if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"return_requested":    true,
			"return_reason":       input.Reason,
			"return_comment":      input.Comment,
			"return_requested_at": &now,
		}).Error; err != nil {
			return err
		}
		_, err = models.AppendOrderEvent(ctx, tx, models.OrderEventItemReturnRequested, order.ID, item.ID, order.UserId, now, models.OrderEventPayload{
			OrderNumber: order.OrderNumber,
			Sku:         item.VariantSku,
			Quantity:    item.Quantity,
		})
		return err
	})
	if err == nil {
		w.logTransition(ctx, "request_return", orderId, line.String(), logrus.Fields{"user_id": userId})
	}
	return err
}

// RespondToReturn answers a pending return request. Approval returns the line:
// stock comes back once, the line total is credited to the wallet.
func (w *OrderWorkflow) RespondToReturn(ctx context.Context, orderId int, line models.OrderLineRef, approved bool) error {
	err := w.inTransition(ctx, "RespondToReturn", orderId, line, func(tx *gorm.DB) error {
		order, item, err := models.LockOrderItem(tx, orderId, line)
		if err != nil {
			return err
		}
		if !item.ReturnRequested {
			return utils.NewValidationError("No return request for this item")
		}
		if item.ReturnResponded {
			return utils.NewValidationError("Return request already answered")
		}
		if approved && !models.CanTransition(item.Status, models.OrderItemStatusReturned) {
			return utils.NewValidationError(fmt.Sprintf("Order item cannot move from %s to %s", item.Status, models.OrderItemStatusReturned))
		}
		if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"return_approved":  approved,
			"return_responded": true,
		}).Error; err != nil {
			return err
		}
		if !approved {
			return nil
		}

		from := item.Status
		if err := models.SetOrderItemStatus(tx, item, models.OrderItemStatusReturned); err != nil {
			return err
		}
		if err := models.RestoreStock(tx, item.StockRef(), models.StockMovementReturn); err != nil {
			return err
		}
		if item.TotalPrice.IsPositive() {
			if _, err := models.CreditWallet(tx, models.WalletEntry{
				UserId:      order.UserId,
				Amount:      item.TotalPrice,
				OrderId:     &order.ID,
				Description: "Refund for returned item " + item.VariantSku + " of order " + order.OrderNumber,
			}); err != nil {
				return err
			}
		}
		if err := models.MarkSalesReportLineStatus(tx, item.ID, models.OrderItemStatusReturned); err != nil {
			return err
		}
		_, err = models.AppendOrderEvent(ctx, tx, models.OrderEventItemReturned, order.ID, item.ID, order.UserId, w.now(), models.OrderEventPayload{
			OrderNumber:   order.OrderNumber,
			PaymentMethod: order.PaymentMethod,
			FromStatus:    from,
			ToStatus:      models.OrderItemStatusReturned,
			Sku:           item.VariantSku,
			Quantity:      item.Quantity,
			Amount:        item.TotalPrice.StringFixed(2),
			Refunded:      item.TotalPrice.StringFixed(2),
		})
		return err
	})
	if err == nil {
		w.logTransition(ctx, "respond_to_return", orderId, line.String(), logrus.Fields{"approved": approved})
	}
	return err
}

// RetryPayment lets the owner record the outcome of a repeated payment attempt.
func (w *OrderWorkflow) RetryPayment(ctx context.Context, userId, orderId int, status models.PaymentStatus) error {
	if !status.IsValid() {
		return utils.NewValidationError("Invalid payment status")
	}
	err := w.inTransition(ctx, "RetryPayment", orderId, models.OrderLineRef{}, func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("Order not found")
			}
			return err
		}
		if order.UserId != userId {
			return utils.NewForbiddenError("Order does not belong to this user")
		}
		if order.PaymentStatus == models.PaymentStatusPaid {
			return utils.NewValidationError("Order is already paid")
		}
		if order.PaymentStatus == status {
			return nil
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("payment_status", status).Error; err != nil {
			return err
		}
		_, err := models.AppendOrderEvent(ctx, tx, models.OrderEventPaymentStatusChanged, order.ID, 0, order.UserId, w.now(), models.OrderEventPayload{
			OrderNumber:   order.OrderNumber,
			PaymentMethod: order.PaymentMethod,
			PaymentStatus: status,
		})
		return err
	})
	if err == nil {
		w.logTransition(ctx, "retry_payment", orderId, "", logrus.Fields{"payment_status": status})
	}
	return err
}

package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
	"github.com/mmdatafocus/storefront_backend/workflow"
)

func (s *server) placeOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		var input workflow.PlaceOrderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if key, ok := utils.GetIdempotencyKeyFromContext(c.Request.Context()); ok {
			input.IdempotencyKey = key
		}

		result, err := s.orders().PlaceOrder(c.Request.Context(), userId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, result)
	}
}

func listMyOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		orders, err := models.ListUserOrders(ctx, config.GetDB(), userId)
		if err != nil {
			respondError(c, err)
			return
		}
		now := time.Now()
		windowDays := config.ReturnWindowDays()
		views := make([]orderView, 0, len(orders))
		for _, order := range orders {
			view, err := buildOrderView(ctx, order, now, windowDays)
			if err != nil {
				respondError(c, err)
				return
			}
			views = append(views, view)
		}
		respondData(c, http.StatusOK, views)
	}
}

func getMyOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		orderId, ok := paramId(c, "orderId")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		order, err := models.GetUserOrder(ctx, config.GetDB(), userId, orderId)
		if err != nil {
			respondError(c, err)
			return
		}
		view, err := buildOrderView(ctx, *order, time.Now(), config.ReturnWindowDays())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, view)
	}
}

func (s *server) cancelOrderItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		orderId, ok := paramId(c, "orderId")
		if !ok {
			return
		}
		line, ok := orderLineParam(c)
		if !ok {
			return
		}
		if err := s.orders().CancelOrderItem(c.Request.Context(), userId, orderId, line); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "Order item cancelled successfully")
	}
}

func (s *server) requestReturnHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		orderId, ok := paramId(c, "orderId")
		if !ok {
			return
		}
		line, ok := orderLineParam(c)
		if !ok {
			return
		}
		var input workflow.ReturnRequestInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if err := s.orders().RequestReturn(c.Request.Context(), userId, orderId, line, &input); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "Return request submitted successfully")
	}
}

func (s *server) retryPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := currentUserId(c)
		if !ok {
			return
		}
		orderId, ok := paramId(c, "orderId")
		if !ok {
			return
		}
		var input workflow.RetryPaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if err := s.orders().RetryPayment(c.Request.Context(), userId, orderId, input.PaymentStatus); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "Payment status updated successfully")
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := models.NewPageRequest(c.Query("page"), c.Query("limit"))
		page, err := models.ListOrders(c.Request.Context(), config.GetDB(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		rows, err := withCustomers(c.Request.Context(), page.Items)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, models.Page[models.Order]{
			Items:       rows,
			CurrentPage: page.CurrentPage,
			TotalPages:  page.TotalPages,
			TotalCount:  page.TotalCount,
		})
	}
}

func (s *server) updateOrderItemStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := paramId(c, "orderId")
		if !ok {
			return
		}
		line, ok := orderLineParam(c)
		if !ok {
			return
		}
		var input workflow.UpdateStatusInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if err := s.orders().UpdateOrderItemStatus(c.Request.Context(), orderId, line, input.Status); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "Order status updated successfully")
	}
}

func (s *server) respondToReturnHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId, ok := paramId(c, "orderId")
		if !ok {
			return
		}
		line, ok := orderLineParam(c)
		if !ok {
			return
		}
		var input workflow.ReturnResponseInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindingError(c, err)
			return
		}
		if err := s.orders().RespondToReturn(c.Request.Context(), orderId, line, *input.Approved); err != nil {
			respondError(c, err)
			return
		}
		if *input.Approved {
			respondMessage(c, "Return request approved")
			return
		}
		respondMessage(c, "Return request rejected")
	}
}

package main

import (
	"context"
	"time"

	"github.com/mmdatafocus/storefront_backend/middlewares"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/utils"
)

type orderItemView struct {
	models.OrderItem
	Label             string               `json:"label"`
	Category          string               `json:"category"`
	ReturnRequest     models.ReturnRequest `json:"return_request"`
	ReturnEligibility string               `json:"return_eligibility"`
}

type orderView struct {
	models.Order
	Items          []orderItemView `json:"order_items"`
	PlacedAtText   string          `json:"placed_at_text"`
	DeliveryByText string          `json:"delivery_by_text"`
}

// returnEligibilityText describes whether the buyer can still return item.
func returnEligibilityText(order models.Order, item models.OrderItem, now time.Time, windowDays int) string {
	switch {
	case item.ReturnResponded && item.ReturnApproved:
		return "Return approved"
	case item.ReturnResponded:
		return "Return rejected"
	case item.ReturnRequested:
		return "Return requested"
	case item.Status != models.OrderItemStatusDelivered:
		return "Return available after delivery"
	case order.IsReturnEligible(now, windowDays):
		return "Eligible for return until " + utils.FormatDisplayDate(order.ReturnDeadline(windowDays))
	}
	return "Return window closed"
}

// buildOrderView labels each item with its product and variant through the request loaders.
func buildOrderView(ctx context.Context, order models.Order, now time.Time, windowDays int) (orderView, error) {
	view := orderView{
		Order:          order,
		Items:          make([]orderItemView, 0, len(order.Items)),
		PlacedAtText:   utils.FormatDisplayDate(order.PlacedAt),
		DeliveryByText: utils.FormatDisplayDate(order.DeliveryBy),
	}
	ids := make([]int, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductId)
	}
	products, errs := middlewares.GetProducts(ctx, ids)
	for _, err := range errs {
		if err != nil {
			return view, err
		}
	}
	for i, item := range order.Items {
		variant, err := middlewares.GetProductVariant(ctx, item.ProductId, item.VariantSku)
		if err != nil {
			return view, err
		}
		category, err := middlewares.GetCategory(ctx, products[i].CategoryId)
		if err != nil {
			return view, err
		}
		view.Items = append(view.Items, orderItemView{
			OrderItem:         item,
			Label:             products[i].Label(variant),
			Category:          category.Title,
			ReturnRequest:     item.ReturnRequest(),
			ReturnEligibility: returnEligibilityText(order, item, now, windowDays),
		})
	}
	return view, nil
}

// withCustomers attaches each order's customer through the user loader.
func withCustomers(ctx context.Context, orders []models.Order) ([]models.Order, error) {
	for i := range orders {
		user, err := middlewares.GetUser(ctx, orders[i].UserId)
		if err != nil {
			return nil, err
		}
		orders[i].User = user
	}
	return orders, nil
}

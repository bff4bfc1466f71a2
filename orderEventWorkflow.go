package main

import (
	"context"

	"github.com/mmdatafocus/storefront_backend/config"
	"github.com/mmdatafocus/storefront_backend/models"
	"github.com/mmdatafocus/storefront_backend/models/reports"
	"github.com/mmdatafocus/storefront_backend/workflow"
	"github.com/sirupsen/logrus"
)

// ProcessMessage applies one order event to the read models and records the
// outcome on its outbox row. A nil return means the message may be acked,
// which includes events that just went DEAD.
func ProcessMessage(ctx context.Context, logger *logrus.Logger, m config.OrderEventMessage) error {
	tracker := newOutboxProcessTracker(logger)
	tracker.started(ctx, m.ID)

	if err := workflow.ProcessOrderEvent(ctx, config.GetDB(), logger, m); err != nil {
		if dead := tracker.failed(ctx, m, err); dead {
			return nil
		}
		return err
	}
	tracker.succeeded(ctx, m)
	if changesSales(m.EventType) {
		reports.InvalidateBestSelling(ctx)
	}
	return nil
}

// changesSales reports whether an event moves sold quantities.
func changesSales(eventType string) bool {
	switch models.OrderEventType(eventType) {
	case models.OrderEventPlaced, models.OrderEventItemCancelled, models.OrderEventItemReturned:
		return true
	}
	return false
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/models"
	"github.com/closetline/marketplace/internal/shipping"
	"github.com/closetline/marketplace/internal/status"
)

// Runner hosts the scheduled shipment-stage jobs. Each entry point picks up
// every order sitting in one status and pushes the whole batch one stage
// forward through the orchestrator; re-running a stage is harmless because
// already-advanced orders simply no longer match the selection.
type Runner struct {
	DB       *gorm.DB
	Shipping *shipping.Service
	Log      *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// DispatchConfirmed moves CONFIRMED orders to SHIPPED.
func (r *Runner) DispatchConfirmed(ctx context.Context) error {
	return r.advanceAll(ctx, status.Confirmed, status.Shipped)
}

// MarkInTransit moves SHIPPED orders to IN_TRANSIT.
func (r *Runner) MarkInTransit(ctx context.Context) error {
	return r.advanceAll(ctx, status.Shipped, status.InTransit)
}

// MarkReadyForPickup moves IN_TRANSIT orders to READY_FOR_PICKUP.
func (r *Runner) MarkReadyForPickup(ctx context.Context) error {
	return r.advanceAll(ctx, status.InTransit, status.ReadyForPickup)
}

// MarkDelivered moves READY_FOR_PICKUP orders to DELIVERED.
func (r *Runner) MarkDelivered(ctx context.Context) error {
	return r.advanceAll(ctx, status.ReadyForPickup, status.Delivered)
}

func (r *Runner) advanceAll(ctx context.Context, from, to status.Status) error {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).Where("status = ?", from).Find(&orders).Error; err != nil {
		return fmt.Errorf("select orders in %s: %w", from, err)
	}
	if len(orders) == 0 {
		return nil
	}

	r.logger().Info("advancing order batch", "from", from, "to", to, "count", len(orders))
	r.Shipping.ProcessOrderShipment(ctx, orders, to)
	return nil
}

// Start runs every stage job once per interval until ctx is cancelled. Used
// when the service runs standalone; deployments with an external scheduler
// call the stage methods directly instead.
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stages := []func(context.Context) error{
		r.DispatchConfirmed,
		r.MarkInTransit,
		r.MarkReadyForPickup,
		r.MarkDelivered,
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, stage := range stages {
				if err := stage(ctx); err != nil {
					r.logger().Error("stage job failed", "error", err)
				}
			}
		}
	}
}

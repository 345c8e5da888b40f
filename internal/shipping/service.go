package shipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/models"
	"github.com/closetline/marketplace/internal/status"
)

var (
	// ErrNoShipment is returned when an order has no shipment record to
	// advance. Batch callers treat it as a skip; API callers surface it.
	ErrNoShipment = errors.New("no shipment exists for this order")

	// ErrStaleStatus means another caller changed the shipment between our
	// read and the conditional write. The transition did not apply.
	ErrStaleStatus = errors.New("shipment status changed concurrently")
)

// Broadcaster delivers a status-change event to the real-time channel keyed
// by conversation. Delivery is fire-and-forget from the caller's view.
type Broadcaster interface {
	Publish(ctx context.Context, key string, event map[string]any) error
}

// Notifier sends status emails to the parties of an order. Implementations
// must be safe to fail: the service logs and swallows every error.
type Notifier interface {
	NotifyStatus(ctx context.Context, order *models.Order, shipment *models.Shipment, newStatus status.Status) error
	SendShippingLabel(ctx context.Context, order *models.Order, shipment *models.Shipment) error
}

// AdvanceOptions carries the optional tracking fields supplied together with
// a status change.
type AdvanceOptions struct {
	TrackingNumber string
	TrackingURL    string
}

// Service drives the order/shipment lifecycle. A transition is validated
// against the rules table, applied to the shipment and the order in one
// transaction (the shipment write is compare-and-set), and only then fanned
// out to the conversation, the broadcast channel and email notifications.
type Service struct {
	DB        *gorm.DB
	Rules     *status.Rules
	Broadcast Broadcaster
	Notify    Notifier
	Log       *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// CreateShipment attaches a shipment record to an order. New shipments start
// in PENDING regardless of where the order currently is.
func (s *Service) CreateShipment(ctx context.Context, orderID uint, pickupAddress, carrier string) (*models.Shipment, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}

	shipment := models.Shipment{
		OrderID:       order.ID,
		Status:        status.Pending,
		Carrier:       carrier,
		PickupAddress: pickupAddress,
	}
	if err := s.DB.WithContext(ctx).Create(&shipment).Error; err != nil {
		return nil, fmt.Errorf("create shipment for order %d: %w", orderID, err)
	}
	return &shipment, nil
}

// AdvanceStatus moves the order and its shipment to newStatus.
//
// It returns *status.InvalidTransitionError when the change is not allowed,
// ErrNoShipment when the order has no shipment record, and ErrStaleStatus
// when a concurrent caller won the transition. In every error case the
// persisted rows are left exactly as they were.
func (s *Service) AdvanceStatus(ctx context.Context, orderID uint, newStatus status.Status, opts AdvanceOptions) (*models.Shipment, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}

	var shipment models.Shipment
	err := s.DB.WithContext(ctx).Where("order_id = ?", order.ID).First(&shipment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoShipment
	}
	if err != nil {
		return nil, fmt.Errorf("load shipment for order %d: %w", order.ID, err)
	}

	if err := s.Rules.Validate(shipment.Status, newStatus); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":     newStatus,
		"updated_at": now,
	}
	if opts.TrackingNumber != "" {
		updates["tracking_number"] = opts.TrackingNumber
	}
	if opts.TrackingURL != "" {
		updates["tracking_url"] = opts.TrackingURL
	}

	// Shipment and order commit together. The shipment write is conditional
	// on the status we validated against; zero rows affected means somebody
	// else transitioned first, and the whole transaction rolls back.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Shipment{}).
			Where("id = ? AND status = ?", shipment.ID, shipment.Status).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update shipment %d: %w", shipment.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}

		if err := tx.Model(&models.Order{}).
			Where("id = ?", order.ID).
			Updates(map[string]any{"status": newStatus, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("update order %d: %w", order.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	shipment.Status = newStatus
	shipment.UpdatedAt = now
	if opts.TrackingNumber != "" {
		shipment.TrackingNumber = opts.TrackingNumber
	}
	if opts.TrackingURL != "" {
		shipment.TrackingURL = opts.TrackingURL
	}
	order.Status = newStatus
	order.UpdatedAt = now

	// Everything past this point is best-effort: the transition is already
	// persisted and must never appear to have failed.
	s.touchConversation(ctx, &order, newStatus, now)
	s.notifyStatus(ctx, &order, &shipment, newStatus)

	return &shipment, nil
}

func (s *Service) touchConversation(ctx context.Context, order *models.Order, newStatus status.Status, now time.Time) {
	var conv models.Conversation
	err := s.DB.WithContext(ctx).Where("order_id = ?", order.ID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	if err != nil {
		s.logger().Warn("conversation lookup failed", "order_id", order.ID, "error", err)
		return
	}

	if err := s.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Update("last_modified", now).Error; err != nil {
		s.logger().Warn("conversation touch failed", "conversation_id", conv.ID, "error", err)
	}

	if s.Broadcast == nil {
		return
	}
	event := map[string]any{
		"event_id":        uuid.NewString(),
		"type":            "order_status_event",
		"order_id":        order.ID,
		"status":          string(newStatus),
		"conversation_id": conv.ID,
	}
	key := strconv.FormatUint(uint64(conv.ID), 10)
	if err := s.Broadcast.Publish(ctx, key, event); err != nil {
		s.logger().Warn("status broadcast failed", "order_id", order.ID, "conversation_id", conv.ID, "error", err)
	}
}

func (s *Service) notifyStatus(ctx context.Context, order *models.Order, shipment *models.Shipment, newStatus status.Status) {
	if s.Notify == nil {
		return
	}
	if err := s.Notify.NotifyStatus(ctx, order, shipment, newStatus); err != nil {
		s.logger().Warn("status notification failed", "order_id", order.ID, "status", newStatus, "error", err)
	}
}

// ProcessOrderShipment advances every order in the batch to newStatus. A
// failing order is logged and skipped; it never aborts the rest of the batch.
// Orders that just reached SHIPPED additionally get their shipping label
// mailed to the seller.
func (s *Service) ProcessOrderShipment(ctx context.Context, orders []models.Order, newStatus status.Status) {
	for i := range orders {
		order := orders[i]

		shipment, err := s.AdvanceStatus(ctx, order.ID, newStatus, AdvanceOptions{})
		if errors.Is(err, ErrNoShipment) {
			s.logger().Debug("order has no shipment, skipping", "order_id", order.ID)
			continue
		}
		if err != nil {
			s.logger().Error("error processing order shipment", "order_id", order.ID, "status", newStatus, "error", err)
			continue
		}

		if newStatus == status.Shipped && s.Notify != nil {
			if err := s.Notify.SendShippingLabel(ctx, &order, shipment); err != nil {
				s.logger().Warn("shipping label email failed", "order_id", order.ID, "error", err)
			}
		}
	}
}

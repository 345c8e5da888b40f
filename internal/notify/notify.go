package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/models"
	"github.com/closetline/marketplace/internal/status"
)

// Mailer delivers a rendered email. Implementations are best-effort
// collaborators; callers log failures and move on.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

// EmailNotifier renders and sends the per-status order emails. Which party
// hears about a transition depends on the status: the buyer is told about
// shipping, pickup and delivery, the seller about delivery and labels.
type EmailNotifier struct {
	DB     *gorm.DB
	Mailer Mailer
	Log    *slog.Logger
}

func (n *EmailNotifier) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}

func (n *EmailNotifier) NotifyStatus(ctx context.Context, order *models.Order, shipment *models.Shipment, newStatus status.Status) error {
	switch newStatus {
	case status.Shipped:
		return n.notifyShipped(ctx, order, shipment)
	case status.ReadyForPickup:
		return n.notifyReadyForPickup(ctx, order, shipment)
	case status.Delivered:
		return n.notifyDelivered(ctx, order, shipment)
	default:
		// IN_TRANSIT, CANCELLED and RETURNED have no email today.
		return nil
	}
}

func (n *EmailNotifier) notifyShipped(ctx context.Context, order *models.Order, shipment *models.Shipment) error {
	buyer, err := n.loadUser(ctx, order.BuyerID)
	if err != nil {
		return err
	}
	body, err := renderTemplate(tmplOrderShipped, shippedEmail{
		BuyerName:      displayName(buyer),
		OrderNumber:    order.Number,
		TrackingNumber: shipment.TrackingNumber,
		TrackingURL:    shipment.TrackingURL,
		Total:          order.Total.StringFixed(2),
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Your Order #%s Has Been Shipped", order.Number)
	return n.Mailer.Send(ctx, buyer.Email, subject, body)
}

func (n *EmailNotifier) notifyReadyForPickup(ctx context.Context, order *models.Order, shipment *models.Shipment) error {
	buyer, err := n.loadUser(ctx, order.BuyerID)
	if err != nil {
		return err
	}
	body, err := renderTemplate(tmplReadyForPickup, pickupEmail{
		BuyerName:   displayName(buyer),
		OrderNumber: order.Number,
		Carrier:     shipment.Carrier,
		Total:       order.Total.StringFixed(2),
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Order #%s Ready for Pickup", order.Number)
	return n.Mailer.Send(ctx, buyer.Email, subject, body)
}

// notifyDelivered emails both parties. If one send fails the other is still
// attempted.
func (n *EmailNotifier) notifyDelivered(ctx context.Context, order *models.Order, shipment *models.Shipment) error {
	var errs []string

	seller, err := n.loadUser(ctx, order.SellerID)
	if err != nil {
		return err
	}
	buyer, err := n.loadUser(ctx, order.BuyerID)
	if err != nil {
		return err
	}

	deliveredAt := shipment.UpdatedAt.Format("02 Jan 2006 15:04")

	sellerBody, err := renderTemplate(tmplSellerDelivered, deliveredEmail{
		Name:         displayName(seller),
		OrderNumber:  order.Number,
		DeliveryDate: deliveredAt,
	})
	if err != nil {
		errs = append(errs, err.Error())
	} else if err := n.Mailer.Send(ctx, seller.Email,
		fmt.Sprintf("Order #%s Delivered Successfully", order.Number), sellerBody); err != nil {
		n.logger().Warn("seller delivery email failed", "order", order.Number, "error", err)
		errs = append(errs, err.Error())
	}

	buyerBody, err := renderTemplate(tmplBuyerDelivered, deliveredEmail{
		Name:         displayName(buyer),
		OrderNumber:  order.Number,
		DeliveryDate: deliveredAt,
	})
	if err != nil {
		errs = append(errs, err.Error())
	} else if err := n.Mailer.Send(ctx, buyer.Email,
		fmt.Sprintf("Order #%s Delivered", order.Number), buyerBody); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("delivery notification: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (n *EmailNotifier) SendShippingLabel(ctx context.Context, order *models.Order, shipment *models.Shipment) error {
	seller, err := n.loadUser(ctx, order.SellerID)
	if err != nil {
		return err
	}
	buyer, err := n.loadUser(ctx, order.BuyerID)
	if err != nil {
		return err
	}
	body, err := renderTemplate(tmplShippingLabel, labelEmail{
		SellerName:  displayName(seller),
		BuyerName:   displayName(buyer),
		OrderNumber: order.Number,
		Carrier:     shipment.Carrier,
		LabelURL:    shipment.LabelURL,
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Shipping Label Ready for Order #%s", order.Number)
	return n.Mailer.Send(ctx, seller.Email, subject, body)
}

func (n *EmailNotifier) loadUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := n.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

func displayName(u *models.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

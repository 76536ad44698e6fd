package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// Order represents the per-vendor order produced from a single checkout.
// Several orders share one gateway session when the buyer checks out a
// multi-vendor cart. The commission triple stays unset until the gateway
// reports the settled charge; once set it must satisfy
// vendor_subtotal + online_payment_commission + website_commission == total_price.
type Order struct {
	ID                      uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerUserID             uuid.UUID            `gorm:"column:buyer_user_id;type:uuid;not null"`
	VendorUserID            uuid.UUID            `gorm:"column:vendor_user_id;type:uuid;not null"`
	Status                  enums.OrderStatus    `gorm:"column:status;type:order_status_enum;not null;default:'draft'"`
	Currency                enums.Currency       `gorm:"column:currency;type:currency_enum;not null;default:'USD'"`
	Gateway                 enums.PaymentGateway `gorm:"column:gateway;type:gateway_enum;not null;default:'stripe'"`
	TotalPrice              decimal.Decimal      `gorm:"column:total_price;type:numeric;not null"`
	GatewaySessionID        *string              `gorm:"column:gateway_session_id"`
	PaymentIntentID         *string              `gorm:"column:payment_intent_id"`
	OnlinePaymentCommission decimal.NullDecimal  `gorm:"column:online_payment_commission;type:numeric"`
	WebsiteCommission       decimal.NullDecimal  `gorm:"column:website_commission;type:numeric"`
	VendorSubtotal          decimal.NullDecimal  `gorm:"column:vendor_subtotal;type:numeric"`
	PaidAt                  *time.Time           `gorm:"column:paid_at"`
	Items                   []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt               time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// CommissionComputed reports whether the charge-settled latch already fired.
func (o *Order) CommissionComputed() bool {
	return o.VendorSubtotal.Valid
}

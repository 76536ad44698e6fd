package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor holds the seller profile for a marketplace user. PayoutEligible is
// flipped on once the vendor has a verified transfer destination.
type Vendor struct {
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	StoreName        string    `gorm:"column:store_name;not null"`
	PayoutEligible   bool      `gorm:"column:payout_eligible;not null;default:false"`
	GatewayAccountID *string   `gorm:"column:gateway_account_id"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

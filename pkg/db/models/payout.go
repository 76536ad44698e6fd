package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payout records one vendor transfer covering the window
// [starting_from, until). Windows for a vendor are contiguous and
// non-overlapping; rows are never mutated after creation.
type Payout struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorUserID uuid.UUID       `gorm:"column:vendor_user_id;type:uuid;not null;index"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric;not null"`
	StartingFrom time.Time       `gorm:"column:starting_from;not null"`
	Until        time.Time       `gorm:"column:until;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

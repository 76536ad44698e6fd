package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a vendor listing. Quantity is nil when stock is untracked;
// settlement never mutates an untracked quantity.
type Product struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorUserID uuid.UUID          `gorm:"column:vendor_user_id;type:uuid;not null"`
	Title        string             `gorm:"column:title;not null"`
	Price        decimal.Decimal    `gorm:"column:price;type:numeric;not null"`
	Quantity     *int               `gorm:"column:quantity"`
	Variations   []ProductVariation `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/vendora-market/vendora-backend/pkg/db/types"
)

// OrderItem captures the snapshot of each line within an order. The unit
// price is frozen at purchase time; later product price changes never touch it.
type OrderItem struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	ProductID          uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Quantity           int               `gorm:"column:quantity;not null"`
	UnitPrice          decimal.Decimal   `gorm:"column:unit_price;type:numeric;not null"`
	VariationOptionIDs dbtypes.UUIDArray `gorm:"column:variation_option_ids;type:uuid[]"`
	// OptionKey is the sorted option-id set joined with commas; empty for
	// products bought without a variation.
	OptionKey string    `gorm:"column:option_key;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

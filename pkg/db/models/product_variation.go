package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/vendora-market/vendora-backend/pkg/db/types"
)

// ProductVariation is a purchasable combination of option choices for a
// product. OptionKey is the canonical sorted option-id set and is the only
// value used for equality lookups.
type ProductVariation struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	OptionIDs dbtypes.UUIDArray `gorm:"column:option_ids;type:uuid[];not null"`
	OptionKey string            `gorm:"column:option_key;not null;uniqueIndex:ux_product_variations_product_option_key,composite:product_id"`
	Price     decimal.Decimal   `gorm:"column:price;type:numeric;not null"`
	Quantity  *int              `gorm:"column:quantity"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

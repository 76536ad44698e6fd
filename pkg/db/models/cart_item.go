package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/vendora-market/vendora-backend/pkg/db/types"
)

// CartItem is one pending line in a buyer's cart. Anonymous carts hang off a
// session token and merge into the user's cart at login.
type CartItem struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	SessionToken  *string           `gorm:"column:session_token;index"`
	ProductID     uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Quantity      int               `gorm:"column:quantity;not null"`
	UnitPrice     decimal.Decimal   `gorm:"column:unit_price;type:numeric;not null"`
	OptionIDs     dbtypes.UUIDArray `gorm:"column:option_ids;type:uuid[]"`
	OptionKey     string            `gorm:"column:option_key;not null;default:''"`
	SavedForLater bool              `gorm:"column:saved_for_later;not null;default:false"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	"github.com/vendora-market/vendora-backend/pkg/pagination"
)

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor *string
}

// BuyerOrderFilters narrows buyer order listings.
type BuyerOrderFilters struct {
	Status *enums.OrderStatus
}

// VendorOrderFilters narrows vendor order listings.
type VendorOrderFilters struct {
	Status *enums.OrderStatus
	Since  *time.Time
}

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindBySessionID(ctx context.Context, gateway enums.PaymentGateway, sessionID string) ([]models.Order, error)
	FindBySessionIDForUpdate(ctx context.Context, gateway enums.PaymentGateway, sessionID string) ([]models.Order, error)
	FindByPaymentIntentIDForUpdate(ctx context.Context, gateway enums.PaymentGateway, paymentIntentID string) ([]models.Order, error)
	StampGatewaySession(ctx context.Context, orderIDs []uuid.UUID, sessionID string) error
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	ListBuyerOrders(ctx context.Context, buyerUserID uuid.UUID, params pagination.Params, filters BuyerOrderFilters) (*OrderList, error)
	ListVendorOrders(ctx context.Context, vendorUserID uuid.UUID, params pagination.Params, filters VendorOrderFilters) (*OrderList, error)
}

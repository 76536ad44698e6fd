package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	baserepo "github.com/vendora-market/vendora-backend/internal/repo"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindBySessionID(ctx context.Context, gateway enums.PaymentGateway, sessionID string) ([]models.Order, error) {
	return r.findBySession(ctx, gateway, sessionID, false)
}

// FindBySessionIDForUpdate locks the session's orders so concurrent webhook
// deliveries for the same session serialize.
func (r *repository) FindBySessionIDForUpdate(ctx context.Context, gateway enums.PaymentGateway, sessionID string) ([]models.Order, error) {
	return r.findBySession(ctx, gateway, sessionID, true)
}

func (r *repository) findBySession(ctx context.Context, gateway enums.PaymentGateway, sessionID string, lock bool) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway = ? AND gateway_session_id = ?", gateway, sessionID).
		Order("created_at ASC")
	if lock {
		query = baserepo.LockForUpdate(query)
	}
	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByPaymentIntentIDForUpdate locks the orders stamped with the given
// payment intent. Empty until the session-completed handler stamps it.
func (r *repository) FindByPaymentIntentIDForUpdate(ctx context.Context, gateway enums.PaymentGateway, paymentIntentID string) ([]models.Order, error) {
	var rows []models.Order
	err := baserepo.LockForUpdate(r.db.WithContext(ctx).Preload("Items")).
		Where("gateway = ? AND payment_intent_id = ?", gateway, paymentIntentID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) StampGatewaySession(ctx context.Context, orderIDs []uuid.UUID, sessionID string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ?", orderIDs).
		Update("gateway_session_id", sessionID).Error
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) ListBuyerOrders(ctx context.Context, buyerUserID uuid.UUID, params pagination.Params, filters BuyerOrderFilters) (*OrderList, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_user_id = ?", buyerUserID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return r.listPage(query, params)
}

func (r *repository) ListVendorOrders(ctx context.Context, vendorUserID uuid.UUID, params pagination.Params, filters VendorOrderFilters) (*OrderList, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("vendor_user_id = ?", vendorUserID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	return r.listPage(query, params)
}

func (r *repository) listPage(query *gorm.DB, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &OrderList{Orders: rows}
	if len(rows) > limit {
		last := rows[limit-1]
		next := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		list.Orders = rows[:limit]
		list.NextCursor = &next
	}
	return list, nil
}

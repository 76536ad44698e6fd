package payouts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	baserepo "github.com/vendora-market/vendora-backend/internal/repo"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// Repository defines persistence operations for payouts and the orders
// they cover.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LatestWindowEnd(ctx context.Context, vendorUserID uuid.UUID) (*time.Time, error)
	SumVendorSubtotal(ctx context.Context, vendorUserID uuid.UUID, from, until time.Time) (decimal.Decimal, error)
	CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	ListVendorPayouts(ctx context.Context, vendorUserID uuid.UUID, limit int) ([]models.Payout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LatestWindowEnd returns the `until` bound of the vendor's most recent
// payout, or nil when the vendor has never been paid. The row is locked
// so concurrent sweeps for the same vendor serialize on the window.
func (r *repository) LatestWindowEnd(ctx context.Context, vendorUserID uuid.UUID) (*time.Time, error) {
	var payout models.Payout
	err := baserepo.LockForUpdate(r.db.WithContext(ctx)).
		Where("vendor_user_id = ?", vendorUserID).
		Order("until DESC").
		First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	until := payout.Until
	return &until, nil
}

// SumVendorSubtotal totals the settled vendor share of paid orders
// created in [from, until). An order whose commission split lands only
// after its creation window has been swept stays out of every payout;
// the split normally arrives within minutes of checkout, well inside
// the monthly window.
func (r *repository) SumVendorSubtotal(ctx context.Context, vendorUserID uuid.UUID, from, until time.Time) (decimal.Decimal, error) {
	var total sql.NullString
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("SUM(vendor_subtotal)").
		Where("vendor_user_id = ?", vendorUserID).
		Where("status = ?", enums.OrderStatusPaid).
		Where("vendor_subtotal IS NOT NULL").
		Where("created_at >= ? AND created_at < ?", from, until).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(total.String)
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return nil, err
	}
	return payout, nil
}

func (r *repository) ListVendorPayouts(ctx context.Context, vendorUserID uuid.UUID, limit int) ([]models.Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Payout
	err := r.db.WithContext(ctx).
		Where("vendor_user_id = ?", vendorUserID).
		Order("until DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

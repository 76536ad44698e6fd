package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	baserepo "github.com/vendora-market/vendora-backend/internal/repo"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

// Owner identifies who a cart line belongs to. Exactly one of the two
// fields is set: authenticated carts key on UserID, anonymous carts on
// SessionToken.
type Owner struct {
	UserID       *uuid.UUID
	SessionToken *string
}

// Valid reports whether the owner has exactly one identity.
func (o Owner) Valid() bool {
	return (o.UserID != nil) != (o.SessionToken != nil)
}

// Repository defines persistence operations for cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context, owner Owner) ([]models.CartItem, error)
	FindLine(ctx context.Context, owner Owner, productID uuid.UUID, optionKey string) (*models.CartItem, error)
	FindLineByID(ctx context.Context, owner Owner, lineID uuid.UUID) (*models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateLine(ctx context.Context, lineID uuid.UUID, updates map[string]any) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
	DeleteForProducts(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error
	ReassignSessionLines(ctx context.Context, sessionToken string, userID uuid.UUID) error
	DeleteSessionLines(ctx context.Context, sessionToken string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context, owner Owner) ([]models.CartItem, error) {
	query, err := r.ownerScope(ctx, owner)
	if err != nil {
		return nil, err
	}
	var rows []models.CartItem
	err = query.
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindLine(ctx context.Context, owner Owner, productID uuid.UUID, optionKey string) (*models.CartItem, error) {
	query, err := r.ownerScope(ctx, owner)
	if err != nil {
		return nil, err
	}
	var item models.CartItem
	err = baserepo.LockForUpdate(query).
		Where("product_id = ? AND option_key = ? AND saved_for_later = ?", productID, optionKey, false).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindLineByID(ctx context.Context, owner Owner, lineID uuid.UUID) (*models.CartItem, error) {
	query, err := r.ownerScope(ctx, owner)
	if err != nil {
		return nil, err
	}
	var item models.CartItem
	err = query.
		Where("id = ?", lineID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) Create(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) UpdateLine(ctx context.Context, lineID uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", lineID).
		Updates(updates).Error
}

func (r *repository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", lineID).
		Delete(&models.CartItem{}).Error
}

// DeleteForProducts removes the buyer's active lines for the given products.
// Saved-for-later lines survive.
func (r *repository) DeleteForProducts(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id IN ? AND saved_for_later = ?", userID, productIDs, false).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ReassignSessionLines(ctx context.Context, sessionToken string, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("session_token = ?", sessionToken).
		Updates(map[string]any{
			"user_id":       userID,
			"session_token": nil,
		}).Error
}

func (r *repository) DeleteSessionLines(ctx context.Context, sessionToken string) error {
	return r.db.WithContext(ctx).
		Where("session_token = ?", sessionToken).
		Delete(&models.CartItem{}).Error
}

func (r *repository) ownerScope(ctx context.Context, owner Owner) (*gorm.DB, error) {
	if !owner.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner requires a user id or session token")
	}
	query := r.db.WithContext(ctx).Model(&models.CartItem{})
	if owner.UserID != nil {
		return query.Where("user_id = ?", *owner.UserID), nil
	}
	return query.Where("session_token = ?", *owner.SessionToken), nil
}

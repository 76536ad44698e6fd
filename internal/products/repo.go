package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	baserepo "github.com/vendora-market/vendora-backend/internal/repo"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

// DecrementResult reports what an inventory decrement actually did.
type DecrementResult struct {
	// Tracked is false when the matched record has no quantity, meaning
	// inventory is not tracked and nothing was written.
	Tracked bool
	// Clamped is true when the requested quantity exceeded stock and the
	// remaining quantity was floored at zero.
	Clamped bool
	// Remaining holds the quantity left after the decrement.
	Remaining int
	// VariationMatched is true when a variation row absorbed the decrement
	// instead of the base product.
	VariationMatched bool
}

// Repository defines persistence operations for products and variations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DecrementInventory(ctx context.Context, productID uuid.UUID, optionKey string, qty int) (*DecrementResult, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a products repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variations").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	return rows, err
}

// DecrementInventory subtracts qty from the variation matching optionKey,
// falling back to the base product when no variation matches. The matched
// row is locked so concurrent decrements for the same product serialize.
// Quantities never go below zero; an oversell is clamped and reported.
func (r *repository) DecrementInventory(ctx context.Context, productID uuid.UUID, optionKey string, qty int) (*DecrementResult, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	db := r.db.WithContext(ctx)

	if optionKey != "" {
		var variation models.ProductVariation
		err := baserepo.LockForUpdate(db).
			Where("product_id = ? AND option_key = ?", productID, optionKey).
			First(&variation).Error
		switch {
		case err == nil:
			return r.applyDecrement(db, &models.ProductVariation{}, variation.ID, variation.Quantity, qty, true)
		case errors.Is(err, gorm.ErrRecordNotFound):
			// fall through to the base product
		default:
			return nil, err
		}
	}

	var product models.Product
	err := baserepo.LockForUpdate(db).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return r.applyDecrement(db, &models.Product{}, product.ID, product.Quantity, qty, false)
}

func (r *repository) applyDecrement(db *gorm.DB, model any, id uuid.UUID, current *int, qty int, variation bool) (*DecrementResult, error) {
	if current == nil {
		return &DecrementResult{Tracked: false, VariationMatched: variation}, nil
	}

	remaining := *current - qty
	clamped := false
	if remaining < 0 {
		remaining = 0
		clamped = true
	}

	err := db.Model(model).
		Where("id = ?", id).
		Update("quantity", remaining).Error
	if err != nil {
		return nil, err
	}

	return &DecrementResult{
		Tracked:          true,
		Clamped:          clamped,
		Remaining:        remaining,
		VariationMatched: variation,
	}, nil
}

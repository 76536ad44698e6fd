package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	dbtypes "github.com/vendora-market/vendora-backend/pkg/db/types"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

// VendorGroup is the buyer's active cart restricted to one vendor.
type VendorGroup struct {
	VendorUserID uuid.UUID
	Items        []GroupedItem
}

// GroupedItem pairs a cart line with its resolved product.
type GroupedItem struct {
	Line    models.CartItem
	Product models.Product
}

// AddItemInput captures the data needed to add a product to the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	OptionIDs []uuid.UUID
	Quantity  int
}

// Service exposes cart operations.
type Service interface {
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, owner Owner, lineID uuid.UUID) error
	SetSavedForLater(ctx context.Context, owner Owner, lineID uuid.UUID, saved bool) error
	List(ctx context.Context, owner Owner) ([]models.CartItem, error)
	GroupedByVendor(ctx context.Context, owner Owner) ([]VendorGroup, error)
	MergeSessionCart(ctx context.Context, sessionToken string, userID uuid.UUID) error
	ClearPurchased(ctx context.Context, tx *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) error
}

type service struct {
	tx       txRunner
	repo     Repository
	products productLoader
	logg     *logger.Logger
}

// NewService builds the cart service.
func NewService(tx txRunner, repo Repository, products productLoader, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, repo: repo, products: products, logg: logg}, nil
}

// AddItem inserts a new line or, when the owner already carries the same
// product and option set, bumps the existing line's quantity instead.
func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.CartItem, error) {
	if !owner.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner requires a user id or session token")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	optionIDs := dbtypes.UUIDArray(input.OptionIDs).Normalized()
	optionKey := dbtypes.UUIDArray(input.OptionIDs).Key()
	if len(input.OptionIDs) > 0 {
		if err := validateOptionSet(product, optionKey); err != nil {
			return nil, err
		}
	}

	var result *models.CartItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindLine(ctx, owner, input.ProductID, optionKey)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := repo.UpdateLine(ctx, existing.ID, map[string]any{
				"quantity": existing.Quantity + input.Quantity,
			}); err != nil {
				return err
			}
			existing.Quantity += input.Quantity
			result = existing
			return nil
		}

		line := &models.CartItem{
			ID:           uuid.New(),
			UserID:       owner.UserID,
			SessionToken: owner.SessionToken,
			ProductID:    input.ProductID,
			OptionIDs:    optionIDs,
			OptionKey:    optionKey,
			Quantity:     input.Quantity,
		}
		created, err := repo.Create(ctx, line)
		if err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) UpdateQuantity(ctx context.Context, owner Owner, lineID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	line, err := s.repo.FindLineByID(ctx, owner, lineID)
	if err != nil {
		return err
	}
	return s.repo.UpdateLine(ctx, line.ID, map[string]any{"quantity": quantity})
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, lineID uuid.UUID) error {
	line, err := s.repo.FindLineByID(ctx, owner, lineID)
	if err != nil {
		return err
	}
	return s.repo.DeleteLine(ctx, line.ID)
}

func (s *service) SetSavedForLater(ctx context.Context, owner Owner, lineID uuid.UUID, saved bool) error {
	line, err := s.repo.FindLineByID(ctx, owner, lineID)
	if err != nil {
		return err
	}
	return s.repo.UpdateLine(ctx, line.ID, map[string]any{"saved_for_later": saved})
}

func (s *service) List(ctx context.Context, owner Owner) ([]models.CartItem, error) {
	return s.repo.List(ctx, owner)
}

// GroupedByVendor partitions the owner's active lines by the vendor that
// sells each product. Saved-for-later lines are excluded.
func (s *service) GroupedByVendor(ctx context.Context, owner Owner) ([]VendorGroup, error) {
	lines, err := s.repo.List(ctx, owner)
	if err != nil {
		return nil, err
	}

	active := make([]models.CartItem, 0, len(lines))
	productIDs := make([]uuid.UUID, 0, len(lines))
	seen := map[uuid.UUID]bool{}
	for _, line := range lines {
		if line.SavedForLater {
			continue
		}
		active = append(active, line)
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			productIDs = append(productIDs, line.ProductID)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	productMap := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	groupIndex := map[uuid.UUID]int{}
	groups := []VendorGroup{}
	for _, line := range active {
		product, ok := productMap[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart references a missing product")
		}
		idx, ok := groupIndex[product.VendorUserID]
		if !ok {
			idx = len(groups)
			groupIndex[product.VendorUserID] = idx
			groups = append(groups, VendorGroup{VendorUserID: product.VendorUserID})
		}
		groups[idx].Items = append(groups[idx].Items, GroupedItem{Line: line, Product: product})
	}
	return groups, nil
}

// MergeSessionCart folds an anonymous session cart into the user's cart at
// login. Lines for the same product and option set merge quantities.
func (s *service) MergeSessionCart(ctx context.Context, sessionToken string, userID uuid.UUID) error {
	if sessionToken == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session token required")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sessionLines, err := repo.List(ctx, Owner{SessionToken: &sessionToken})
		if err != nil {
			return err
		}
		if len(sessionLines) == 0 {
			return nil
		}

		userOwner := Owner{UserID: &userID}
		for _, line := range sessionLines {
			existing, err := repo.FindLine(ctx, userOwner, line.ProductID, line.OptionKey)
			if err != nil {
				return err
			}
			if existing == nil {
				continue
			}
			if err := repo.UpdateLine(ctx, existing.ID, map[string]any{
				"quantity": existing.Quantity + line.Quantity,
			}); err != nil {
				return err
			}
			if err := repo.DeleteLine(ctx, line.ID); err != nil {
				return err
			}
		}

		return repo.ReassignSessionLines(ctx, sessionToken, userID)
	})
}

// ClearPurchased removes the buyer's active lines for the purchased
// products. Runs inside the caller's settlement transaction.
func (s *service) ClearPurchased(ctx context.Context, tx *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) error {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	return repo.DeleteForProducts(ctx, userID, productIDs)
}

func validateOptionSet(product *models.Product, optionKey string) error {
	for _, variation := range product.Variations {
		if variation.OptionKey == optionKey {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "option set does not match any product variation")
}

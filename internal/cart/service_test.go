package cart

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/products"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

func setupCartDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  session_token TEXT,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL DEFAULT 0,
  option_ids TEXT,
  option_key TEXT NOT NULL DEFAULT '',
  saved_for_later INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  vendor_user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL,
  quantity INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_variations (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  option_ids TEXT NOT NULL,
  option_key TEXT NOT NULL,
  price NUMERIC NOT NULL,
  quantity INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type cartFixture struct {
	db  *gorm.DB
	svc Service
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()

	db := setupCartDB(t)
	svc, err := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		products.NewRepository(db),
		logger.New(logger.Options{ServiceName: "cart-test"}),
	)
	require.NoError(t, err)
	return &cartFixture{db: db, svc: svc}
}

func seedCartProduct(t *testing.T, db *gorm.DB, vendorUserID uuid.UUID, price string) models.Product {
	t.Helper()

	product := models.Product{
		ID:           uuid.New(),
		VendorUserID: vendorUserID,
		Title:        "product-" + uuid.NewString()[:8],
		Price:        decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func userOwner(userID uuid.UUID) Owner {
	return Owner{UserID: &userID}
}

func sessionOwner(token string) Owner {
	return Owner{SessionToken: &token}
}

func TestOwnerValid(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token := "sess"
	assert.True(t, Owner{UserID: &userID}.Valid())
	assert.True(t, Owner{SessionToken: &token}.Valid())
	assert.False(t, Owner{}.Valid())
	assert.False(t, Owner{UserID: &userID, SessionToken: &token}.Valid())
}

func TestAddItemCreatesLine(t *testing.T) {
	fx := newCartFixture(t)

	userID := uuid.New()
	product := seedCartProduct(t, fx.db, uuid.New(), "12.50")

	line, err := fx.svc.AddItem(context.Background(), userOwner(userID), AddItemInput{
		ProductID: product.ID,
		Quantity:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, product.ID, line.ProductID)

	var count int64
	require.NoError(t, fx.db.Model(&models.CartItem{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAddItemMergesExistingLine(t *testing.T) {
	fx := newCartFixture(t)

	userID := uuid.New()
	product := seedCartProduct(t, fx.db, uuid.New(), "9.99")
	owner := userOwner(userID)

	_, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	line, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)

	var count int64
	require.NoError(t, fx.db.Model(&models.CartItem{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAddItemRejectsUnknownOptionSet(t *testing.T) {
	fx := newCartFixture(t)

	product := seedCartProduct(t, fx.db, uuid.New(), "30")

	_, err := fx.svc.AddItem(context.Background(), userOwner(uuid.New()), AddItemInput{
		ProductID: product.ID,
		OptionIDs: []uuid.UUID{uuid.New()},
		Quantity:  1,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestAddItemUnknownProduct(t *testing.T) {
	fx := newCartFixture(t)

	_, err := fx.svc.AddItem(context.Background(), userOwner(uuid.New()), AddItemInput{
		ProductID: uuid.New(),
		Quantity:  1,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateQuantity(t *testing.T) {
	fx := newCartFixture(t)

	owner := userOwner(uuid.New())
	product := seedCartProduct(t, fx.db, uuid.New(), "10")
	line, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, fx.svc.UpdateQuantity(context.Background(), owner, line.ID, 4))

	var got models.CartItem
	require.NoError(t, fx.db.Where("id = ?", line.ID).First(&got).Error)
	assert.Equal(t, 4, got.Quantity)

	err = fx.svc.UpdateQuantity(context.Background(), owner, line.ID, 0)
	require.Error(t, err)
}

func TestUpdateQuantityForeignLine(t *testing.T) {
	fx := newCartFixture(t)

	owner := userOwner(uuid.New())
	product := seedCartProduct(t, fx.db, uuid.New(), "10")
	line, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	// Another user cannot touch the line.
	err = fx.svc.UpdateQuantity(context.Background(), userOwner(uuid.New()), line.ID, 2)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRemoveItem(t *testing.T) {
	fx := newCartFixture(t)

	owner := userOwner(uuid.New())
	product := seedCartProduct(t, fx.db, uuid.New(), "10")
	line, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, fx.svc.RemoveItem(context.Background(), owner, line.ID))

	var count int64
	require.NoError(t, fx.db.Model(&models.CartItem{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestGroupedByVendorPartitionsLines(t *testing.T) {
	fx := newCartFixture(t)

	owner := userOwner(uuid.New())
	vendorA := uuid.New()
	vendorB := uuid.New()
	productA1 := seedCartProduct(t, fx.db, vendorA, "10")
	productA2 := seedCartProduct(t, fx.db, vendorA, "15")
	productB := seedCartProduct(t, fx.db, vendorB, "20")

	for _, p := range []models.Product{productA1, productA2, productB} {
		_, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: p.ID, Quantity: 1})
		require.NoError(t, err)
	}

	groups, err := fx.svc.GroupedByVendor(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	byVendor := map[uuid.UUID]VendorGroup{}
	for _, g := range groups {
		byVendor[g.VendorUserID] = g
	}
	assert.Len(t, byVendor[vendorA].Items, 2)
	assert.Len(t, byVendor[vendorB].Items, 1)
}

func TestGroupedByVendorExcludesSavedForLater(t *testing.T) {
	fx := newCartFixture(t)

	owner := userOwner(uuid.New())
	product := seedCartProduct(t, fx.db, uuid.New(), "10")
	line, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, fx.svc.SetSavedForLater(context.Background(), owner, line.ID, true))

	groups, err := fx.svc.GroupedByVendor(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestMergeSessionCart(t *testing.T) {
	fx := newCartFixture(t)

	userID := uuid.New()
	token := "sess-" + uuid.NewString()[:8]
	shared := seedCartProduct(t, fx.db, uuid.New(), "10")
	sessionOnly := seedCartProduct(t, fx.db, uuid.New(), "20")

	_, err := fx.svc.AddItem(context.Background(), userOwner(userID), AddItemInput{ProductID: shared.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = fx.svc.AddItem(context.Background(), sessionOwner(token), AddItemInput{ProductID: shared.ID, Quantity: 3})
	require.NoError(t, err)
	_, err = fx.svc.AddItem(context.Background(), sessionOwner(token), AddItemInput{ProductID: sessionOnly.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, fx.svc.MergeSessionCart(context.Background(), token, userID))

	userLines, err := fx.svc.List(context.Background(), userOwner(userID))
	require.NoError(t, err)
	require.Len(t, userLines, 2)
	byProduct := map[uuid.UUID]models.CartItem{}
	for _, line := range userLines {
		byProduct[line.ProductID] = line
	}
	assert.Equal(t, 5, byProduct[shared.ID].Quantity)
	assert.Equal(t, 1, byProduct[sessionOnly.ID].Quantity)

	sessionLines, err := fx.svc.List(context.Background(), sessionOwner(token))
	require.NoError(t, err)
	assert.Empty(t, sessionLines)
}

func TestMergeSessionCartIdempotent(t *testing.T) {
	fx := newCartFixture(t)

	userID := uuid.New()
	token := "sess-" + uuid.NewString()[:8]
	product := seedCartProduct(t, fx.db, uuid.New(), "10")
	_, err := fx.svc.AddItem(context.Background(), sessionOwner(token), AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, fx.svc.MergeSessionCart(context.Background(), token, userID))
	require.NoError(t, fx.svc.MergeSessionCart(context.Background(), token, userID))

	userLines, err := fx.svc.List(context.Background(), userOwner(userID))
	require.NoError(t, err)
	require.Len(t, userLines, 1)
	assert.Equal(t, 2, userLines[0].Quantity)
}

func TestClearPurchasedSparesSavedForLater(t *testing.T) {
	fx := newCartFixture(t)

	userID := uuid.New()
	owner := userOwner(userID)
	purchased := seedCartProduct(t, fx.db, uuid.New(), "10")
	kept := seedCartProduct(t, fx.db, uuid.New(), "15")

	_, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: purchased.ID, Quantity: 1})
	require.NoError(t, err)
	saved, err := fx.svc.AddItem(context.Background(), owner, AddItemInput{ProductID: kept.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, fx.svc.SetSavedForLater(context.Background(), owner, saved.ID, true))

	require.NoError(t, fx.svc.ClearPurchased(context.Background(), nil, userID, []uuid.UUID{purchased.ID, kept.ID}))

	var lines []models.CartItem
	require.NoError(t, fx.db.Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, kept.ID, lines[0].ProductID)
	assert.True(t, lines[0].SavedForLater)
}

package settlement

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/internal/products"
	"github.com/vendora-market/vendora-backend/pkg/config"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
)

func setupSettlementDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_user_id TEXT NOT NULL,
  vendor_user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  currency TEXT NOT NULL DEFAULT 'USD',
  gateway TEXT NOT NULL DEFAULT 'stripe',
  total_price NUMERIC NOT NULL,
  gateway_session_id TEXT,
  payment_intent_id TEXT,
  online_payment_commission NUMERIC,
  website_commission NUMERIC,
  vendor_subtotal NUMERIC,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  variation_option_ids TEXT,
  option_key TEXT NOT NULL DEFAULT '',
  created_at DATETIME
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

type recordingCartCleaner struct {
	calls []clearCall
}

type clearCall struct {
	userID     uuid.UUID
	productIDs []uuid.UUID
}

func (c *recordingCartCleaner) ClearPurchased(ctx context.Context, tx *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) error {
	c.calls = append(c.calls, clearCall{userID: userID, productIDs: productIDs})
	return nil
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (o *recordingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

func (o *recordingOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

type recordingNotifier struct {
	paidOrders []models.Order
	payouts    []models.Payout
}

func (n *recordingNotifier) OrderPaid(ctx context.Context, order models.Order) {
	n.paidOrders = append(n.paidOrders, order)
}

func (n *recordingNotifier) PayoutCompleted(ctx context.Context, payout models.Payout) {
	n.payouts = append(n.payouts, payout)
}

type settlementFixture struct {
	db       *gorm.DB
	svc      Service
	carts    *recordingCartCleaner
	outbox   *recordingOutbox
	notifier *recordingNotifier
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()

	db := setupSettlementDB(t)
	carts := &recordingCartCleaner{}
	ob := &recordingOutbox{}
	notifier := &recordingNotifier{}

	svc, err := NewService(ServiceParams{
		Tx:          gormTxRunner{db: db},
		OrdersRepo:  orders.NewRepository(db),
		ProductRepo: products.NewRepository(db),
		Carts:       carts,
		Outbox:      ob,
		Notifier:    notifier,
		Platform:    config.PlatformConfig{FeeRate: "0.10", Currency: "USD"},
		Logger:      logger.New(logger.Options{ServiceName: "settlement-test"}),
	})
	require.NoError(t, err)

	return &settlementFixture{db: db, svc: svc, carts: carts, outbox: ob, notifier: notifier}
}

func seedOrder(t *testing.T, db *gorm.DB, order models.Order, items ...models.OrderItem) models.Order {
	t.Helper()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	require.NoError(t, db.Create(&order).Error)
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
		require.NoError(t, db.Create(&items[i]).Error)
	}
	order.Items = items
	return order
}

func seedProduct(t *testing.T, db *gorm.DB, product models.Product) models.Product {
	t.Helper()

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func intPtr(v int) *int { return &v }

func TestHandleSessionCompletedMarksOrdersPaid(t *testing.T) {
	fx := newSettlementFixture(t)

	buyer := uuid.New()
	vendor := uuid.New()
	sessionID := "cs_test_123"
	product := seedProduct(t, fx.db, models.Product{
		VendorUserID: vendor,
		Title:        "Ceramic mug",
		Price:        decimal.NewFromInt(20),
		Quantity:     intPtr(10),
	})
	order := seedOrder(t, fx.db, models.Order{
		BuyerUserID:      buyer,
		VendorUserID:     vendor,
		Status:           enums.OrderStatusDraft,
		Gateway:          enums.GatewayStripe,
		TotalPrice:       decimal.NewFromInt(60),
		GatewaySessionID: &sessionID,
	}, models.OrderItem{
		ProductID: product.ID,
		Quantity:  3,
		UnitPrice: decimal.NewFromInt(20),
	})

	completedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	intent := "pi_abc"
	err := fx.svc.HandleSessionCompleted(context.Background(), SessionCompleted{
		Gateway:         enums.GatewayStripe,
		SessionID:       sessionID,
		PaymentIntentID: &intent,
		CompletedAt:     completedAt,
	})
	require.NoError(t, err)

	var got models.Order
	require.NoError(t, fx.db.Where("id = ?", order.ID).First(&got).Error)
	assert.Equal(t, enums.OrderStatusPaid, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(completedAt))
	require.NotNil(t, got.PaymentIntentID)
	assert.Equal(t, intent, *got.PaymentIntentID)

	var gotProduct models.Product
	require.NoError(t, fx.db.Where("id = ?", product.ID).First(&gotProduct).Error)
	require.NotNil(t, gotProduct.Quantity)
	assert.Equal(t, 7, *gotProduct.Quantity)

	require.Len(t, fx.carts.calls, 1)
	assert.Equal(t, buyer, fx.carts.calls[0].userID)
	require.Len(t, fx.carts.calls[0].productIDs, 1)
	assert.Equal(t, product.ID, fx.carts.calls[0].productIDs[0])

	require.Len(t, fx.outbox.events, 1)
	assert.Equal(t, enums.EventOrderPaid, fx.outbox.events[0].EventType)

	require.Len(t, fx.notifier.paidOrders, 1)
	assert.Equal(t, order.ID, fx.notifier.paidOrders[0].ID)
}

func TestHandleSessionCompletedReplayIsNoOp(t *testing.T) {
	fx := newSettlementFixture(t)

	sessionID := "cs_replay"
	product := seedProduct(t, fx.db, models.Product{
		VendorUserID: uuid.New(),
		Title:        "Notebook",
		Price:        decimal.NewFromInt(5),
		Quantity:     intPtr(10),
	})
	seedOrder(t, fx.db, models.Order{
		BuyerUserID:      uuid.New(),
		VendorUserID:     product.VendorUserID,
		Status:           enums.OrderStatusDraft,
		Gateway:          enums.GatewayPaystack,
		TotalPrice:       decimal.NewFromInt(10),
		GatewaySessionID: &sessionID,
	}, models.OrderItem{
		ProductID: product.ID,
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(5),
	})

	event := SessionCompleted{
		Gateway:     enums.GatewayPaystack,
		SessionID:   sessionID,
		CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, fx.svc.HandleSessionCompleted(context.Background(), event))
	require.NoError(t, fx.svc.HandleSessionCompleted(context.Background(), event))

	// The second delivery must not decrement again or re-notify.
	var gotProduct models.Product
	require.NoError(t, fx.db.Where("id = ?", product.ID).First(&gotProduct).Error)
	require.NotNil(t, gotProduct.Quantity)
	assert.Equal(t, 8, *gotProduct.Quantity)
	assert.Len(t, fx.notifier.paidOrders, 1)
	assert.Len(t, fx.outbox.events, 1)
}

func TestHandleSessionCompletedUnknownSessionAcknowledged(t *testing.T) {
	fx := newSettlementFixture(t)

	err := fx.svc.HandleSessionCompleted(context.Background(), SessionCompleted{
		Gateway:   enums.GatewayStripe,
		SessionID: "cs_never_issued",
	})
	require.NoError(t, err)
	assert.Empty(t, fx.notifier.paidOrders)
}

func TestHandleSessionCompletedInventoryClampsAtZero(t *testing.T) {
	fx := newSettlementFixture(t)

	sessionID := "cs_clamp"
	product := seedProduct(t, fx.db, models.Product{
		VendorUserID: uuid.New(),
		Title:        "Limited print",
		Price:        decimal.NewFromInt(100),
		Quantity:     intPtr(2),
	})
	seedOrder(t, fx.db, models.Order{
		BuyerUserID:      uuid.New(),
		VendorUserID:     product.VendorUserID,
		Status:           enums.OrderStatusDraft,
		Gateway:          enums.GatewayStripe,
		TotalPrice:       decimal.NewFromInt(500),
		GatewaySessionID: &sessionID,
	}, models.OrderItem{
		ProductID: product.ID,
		Quantity:  5,
		UnitPrice: decimal.NewFromInt(100),
	})

	require.NoError(t, fx.svc.HandleSessionCompleted(context.Background(), SessionCompleted{
		Gateway:   enums.GatewayStripe,
		SessionID: sessionID,
	}))

	var gotProduct models.Product
	require.NoError(t, fx.db.Where("id = ?", product.ID).First(&gotProduct).Error)
	require.NotNil(t, gotProduct.Quantity)
	assert.Equal(t, 0, *gotProduct.Quantity)
}

func TestHandleSessionCompletedUntrackedInventoryUntouched(t *testing.T) {
	fx := newSettlementFixture(t)

	sessionID := "cs_untracked"
	product := seedProduct(t, fx.db, models.Product{
		VendorUserID: uuid.New(),
		Title:        "Digital download",
		Price:        decimal.NewFromInt(15),
	})
	seedOrder(t, fx.db, models.Order{
		BuyerUserID:      uuid.New(),
		VendorUserID:     product.VendorUserID,
		Status:           enums.OrderStatusDraft,
		Gateway:          enums.GatewayStripe,
		TotalPrice:       decimal.NewFromInt(15),
		GatewaySessionID: &sessionID,
	}, models.OrderItem{
		ProductID: product.ID,
		Quantity:  1,
		UnitPrice: decimal.NewFromInt(15),
	})

	require.NoError(t, fx.svc.HandleSessionCompleted(context.Background(), SessionCompleted{
		Gateway:   enums.GatewayStripe,
		SessionID: sessionID,
	}))

	var gotProduct models.Product
	require.NoError(t, fx.db.Where("id = ?", product.ID).First(&gotProduct).Error)
	assert.Nil(t, gotProduct.Quantity)
}

func TestHandleSessionCompletedVariationDecrement(t *testing.T) {
	fx := newSettlementFixture(t)

	sessionID := "cs_variation"
	product := seedProduct(t, fx.db, models.Product{
		VendorUserID: uuid.New(),
		Title:        "T-shirt",
		Price:        decimal.NewFromInt(25),
		Quantity:     intPtr(100),
	})
	optionID := uuid.New()
	variation := models.ProductVariation{
		ID:        uuid.New(),
		ProductID: product.ID,
		OptionIDs: []uuid.UUID{optionID},
		OptionKey: optionID.String(),
		Price:     decimal.NewFromInt(28),
		Quantity:  intPtr(5),
	}
	require.NoError(t, fx.db.Create(&variation).Error)

	seedOrder(t, fx.db, models.Order{
		BuyerUserID:      uuid.New(),
		VendorUserID:     product.VendorUserID,
		Status:           enums.OrderStatusDraft,
		Gateway:          enums.GatewayStripe,
		TotalPrice:       decimal.NewFromInt(56),
		GatewaySessionID: &sessionID,
	}, models.OrderItem{
		ProductID: product.ID,
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(28),
		OptionKey: variation.OptionKey,
	})

	require.NoError(t, fx.svc.HandleSessionCompleted(context.Background(), SessionCompleted{
		Gateway:   enums.GatewayStripe,
		SessionID: sessionID,
	}))

	var gotVariation models.ProductVariation
	require.NoError(t, fx.db.Where("id = ?", variation.ID).First(&gotVariation).Error)
	require.NotNil(t, gotVariation.Quantity)
	assert.Equal(t, 3, *gotVariation.Quantity)

	// The base product quantity stays put when a variation absorbs the decrement.
	var gotProduct models.Product
	require.NoError(t, fx.db.Where("id = ?", product.ID).First(&gotProduct).Error)
	require.NotNil(t, gotProduct.Quantity)
	assert.Equal(t, 100, *gotProduct.Quantity)
}

func TestHandleChargeSettledSplitsAcrossSession(t *testing.T) {
	fx := newSettlementFixture(t)

	sessionID := "cs_split"
	vendorA := uuid.New()
	vendorB := uuid.New()
	buyer := uuid.New()
	orderA := seedOrder(t, fx.db, models.Order{
		BuyerUserID:      buyer,
		VendorUserID:     vendorA,
		Status:           enums.OrderStatusPaid,
		Gateway:          enums.GatewayStripe,
		TotalPrice:       decimal.NewFromInt(1000),
		GatewaySessionID: &sessionID,
	})
	orderB := seedOrder(t, fx.db, models.Order{
		BuyerUserID:      buyer,
		VendorUserID:     vendorB,
		Status:           enums.OrderStatusPaid,
		Gateway:          enums.GatewayStripe,
		TotalPrice:       decimal.NewFromInt(500),
		GatewaySessionID: &sessionID,
	})

	err := fx.svc.HandleChargeSettled(context.Background(), ChargeSettled{
		Gateway:       enums.GatewayStripe,
		SessionID:     sessionID,
		ProcessorFee:  decimal.NewFromInt(45),
		CapturedTotal: decimal.NewFromInt(1500),
	})
	require.NoError(t, err)

	var gotA, gotB models.Order
	require.NoError(t, fx.db.Where("id = ?", orderA.ID).First(&gotA).Error)
	require.NoError(t, fx.db.Where("id = ?", orderB.ID).First(&gotB).Error)

	require.True(t, gotA.CommissionComputed())
	assert.True(t, gotA.OnlinePaymentCommission.Decimal.Equal(decimal.NewFromInt(30)), "opc A = %s", gotA.OnlinePaymentCommission.Decimal)
	assert.True(t, gotA.WebsiteCommission.Decimal.Equal(decimal.NewFromInt(97)), "web A = %s", gotA.WebsiteCommission.Decimal)
	assert.True(t, gotA.VendorSubtotal.Decimal.Equal(decimal.NewFromInt(873)), "vendor A = %s", gotA.VendorSubtotal.Decimal)

	require.True(t, gotB.CommissionComputed())
	assert.True(t, gotB.OnlinePaymentCommission.Decimal.Equal(decimal.NewFromInt(15)), "opc B = %s", gotB.OnlinePaymentCommission.Decimal)
	assert.True(t, gotB.WebsiteCommission.Decimal.Equal(decimal.RequireFromString("48.5")), "web B = %s", gotB.WebsiteCommission.Decimal)
	assert.True(t, gotB.VendorSubtotal.Decimal.Equal(decimal.RequireFromString("436.5")), "vendor B = %s", gotB.VendorSubtotal.Decimal)

	require.Len(t, fx.outbox.events, 2)
	assert.Equal(t, enums.EventOrderCommissionComputed, fx.outbox.events[0].EventType)
}

func TestHandleChargeSettledReplayLeavesSplitAlone(t *testing.T) {
	fx := newSettlementFixture(t)

	sessionID := "cs_split_replay"
	order := seedOrder(t, fx.db, models.Order{
		BuyerUserID:      uuid.New(),
		VendorUserID:     uuid.New(),
		Status:           enums.OrderStatusPaid,
		Gateway:          enums.GatewayFlutterwave,
		TotalPrice:       decimal.NewFromInt(200),
		GatewaySessionID: &sessionID,
	})

	first := ChargeSettled{
		Gateway:       enums.GatewayFlutterwave,
		SessionID:     sessionID,
		ProcessorFee:  decimal.NewFromInt(6),
		CapturedTotal: decimal.NewFromInt(200),
	}
	require.NoError(t, fx.svc.HandleChargeSettled(context.Background(), first))

	// A redelivery with different numbers must not overwrite the split.
	second := first
	second.ProcessorFee = decimal.NewFromInt(60)
	require.NoError(t, fx.svc.HandleChargeSettled(context.Background(), second))

	var got models.Order
	require.NoError(t, fx.db.Where("id = ?", order.ID).First(&got).Error)
	assert.True(t, got.OnlinePaymentCommission.Decimal.Equal(decimal.NewFromInt(6)), "opc = %s", got.OnlinePaymentCommission.Decimal)
	assert.Len(t, fx.outbox.events, 1)
}

func TestHandleChargeSettledBeforeSessionCompleted(t *testing.T) {
	fx := newSettlementFixture(t)

	// Charge events identified only by payment intent cannot match until
	// the session-completed handler stamps the intent on the orders.
	sessionID := "cs_ordering"
	order := seedOrder(t, fx.db, models.Order{
		BuyerUserID:      uuid.New(),
		VendorUserID:     uuid.New(),
		Status:           enums.OrderStatusDraft,
		Gateway:          enums.GatewayStripe,
		TotalPrice:       decimal.NewFromInt(100),
		GatewaySessionID: &sessionID,
	})

	charge := ChargeSettled{
		Gateway:         enums.GatewayStripe,
		PaymentIntentID: "pi_early",
		ProcessorFee:    decimal.NewFromInt(3),
		CapturedTotal:   decimal.NewFromInt(100),
	}
	err := fx.svc.HandleChargeSettled(context.Background(), charge)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	intent := "pi_early"
	require.NoError(t, fx.svc.HandleSessionCompleted(context.Background(), SessionCompleted{
		Gateway:         enums.GatewayStripe,
		SessionID:       sessionID,
		PaymentIntentID: &intent,
	}))

	// The gateway retry now resolves the session through the intent.
	require.NoError(t, fx.svc.HandleChargeSettled(context.Background(), charge))

	var got models.Order
	require.NoError(t, fx.db.Where("id = ?", order.ID).First(&got).Error)
	assert.True(t, got.CommissionComputed())
}

func TestHandleChargeSettledValidation(t *testing.T) {
	fx := newSettlementFixture(t)

	cases := []struct {
		name  string
		event ChargeSettled
	}{
		{
			name:  "missing identifiers",
			event: ChargeSettled{Gateway: enums.GatewayStripe, ProcessorFee: decimal.NewFromInt(1), CapturedTotal: decimal.NewFromInt(10)},
		},
		{
			name:  "negative fee",
			event: ChargeSettled{Gateway: enums.GatewayStripe, SessionID: "cs", ProcessorFee: decimal.NewFromInt(-1), CapturedTotal: decimal.NewFromInt(10)},
		},
		{
			name:  "zero captured total",
			event: ChargeSettled{Gateway: enums.GatewayStripe, SessionID: "cs", ProcessorFee: decimal.NewFromInt(1)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := fx.svc.HandleChargeSettled(context.Background(), tc.event)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestComputeCommissionSumsBackToTotal(t *testing.T) {
	t.Parallel()

	total := decimal.RequireFromString("333.33")
	captured := decimal.RequireFromString("999.99")
	fee := decimal.RequireFromString("29.37")
	rate := decimal.RequireFromString("0.10")

	split := ComputeCommission(total, captured, fee, rate)

	sum := split.OnlinePaymentCommission.Add(split.WebsiteCommission).Add(split.VendorSubtotal)
	assert.True(t, sum.Equal(total), "sum = %s, total = %s", sum, total)
	assert.True(t, split.OnlinePaymentCommission.IsPositive())
	assert.True(t, split.VendorSubtotal.GreaterThan(split.WebsiteCommission))
}

package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/notifications"
	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/internal/products"
	"github.com/vendora-market/vendora-backend/pkg/config"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartCleaner interface {
	ClearPurchased(ctx context.Context, tx *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SessionCompleted carries the gateway's session-completed event.
type SessionCompleted struct {
	Gateway         enums.PaymentGateway
	SessionID       string
	PaymentIntentID *string
	CompletedAt     time.Time
}

// ChargeSettled carries the processor's settled charge: the fee it kept
// and the total it captured for the whole session. Gateways that do not
// expose the session on the charge identify it by payment intent instead.
type ChargeSettled struct {
	Gateway         enums.PaymentGateway
	SessionID       string
	PaymentIntentID string
	ProcessorFee    decimal.Decimal
	CapturedTotal   decimal.Decimal
}

// Service applies settlement events to the session's orders. The two
// handlers are independent latches: either may arrive first, each is a
// no-op when replayed, and the combined effect is order-independent.
type Service interface {
	HandleSessionCompleted(ctx context.Context, event SessionCompleted) error
	HandleChargeSettled(ctx context.Context, event ChargeSettled) error
}

type service struct {
	tx          txRunner
	ordersRepo  orders.Repository
	productRepo products.Repository
	carts       cartCleaner
	outbox      outboxPublisher
	notifier    notifications.Notifier
	platform    config.PlatformConfig
	logg        *logger.Logger
	now         func() time.Time
}

// ServiceParams bundles the settlement service dependencies.
type ServiceParams struct {
	Tx          txRunner
	OrdersRepo  orders.Repository
	ProductRepo products.Repository
	Carts       cartCleaner
	Outbox      outboxPublisher
	Notifier    notifications.Notifier
	Platform    config.PlatformConfig
	Logger      *logger.Logger
	Now         func() time.Time
}

// NewService builds the settlement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.ProductRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart cleaner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:          params.Tx,
		ordersRepo:  params.OrdersRepo,
		productRepo: params.ProductRepo,
		carts:       params.Carts,
		outbox:      params.Outbox,
		notifier:    params.Notifier,
		platform:    params.Platform,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// HandleSessionCompleted flips every draft order on the session to paid,
// decrements inventory for the purchased items, and clears the buyer's
// cart lines for those products. Orders that are already paid are left
// untouched, so duplicate deliveries are harmless.
func (s *service) HandleSessionCompleted(ctx context.Context, event SessionCompleted) error {
	if event.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}

	var paid []models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)

		sessionOrders, err := ordersRepo.FindBySessionIDForUpdate(ctx, event.Gateway, event.SessionID)
		if err != nil {
			return err
		}
		if len(sessionOrders) == 0 {
			// A session this service never issued. Acknowledge so the
			// gateway stops redelivering, but leave a trace.
			ctx = s.logg.WithFields(ctx, map[string]any{
				"gateway":    string(event.Gateway),
				"session_id": event.SessionID,
			})
			s.logg.Warn(ctx, "session completed for unknown session")
			return nil
		}

		completedAt := event.CompletedAt
		if completedAt.IsZero() {
			completedAt = s.now()
		}

		for _, order := range sessionOrders {
			if order.Status == enums.OrderStatusPaid {
				continue
			}

			updates := map[string]any{
				"status":  enums.OrderStatusPaid,
				"paid_at": completedAt,
			}
			if event.PaymentIntentID != nil {
				updates["payment_intent_id"] = *event.PaymentIntentID
			}
			if err := ordersRepo.UpdateOrder(ctx, order.ID, updates); err != nil {
				return err
			}

			productIDs := make([]uuid.UUID, 0, len(order.Items))
			for _, item := range order.Items {
				productIDs = append(productIDs, item.ProductID)
				if err := s.decrementItem(ctx, productRepo, order.ID, item); err != nil {
					return err
				}
			}

			if err := s.carts.ClearPurchased(ctx, tx, order.BuyerUserID, productIDs); err != nil {
				return err
			}

			if err := s.emitOrderPaid(ctx, tx, order, completedAt); err != nil {
				return err
			}

			order.Status = enums.OrderStatusPaid
			order.PaidAt = &completedAt
			paid = append(paid, order)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, order := range paid {
		s.notifier.OrderPaid(ctx, order)
	}
	return nil
}

// HandleChargeSettled splits the processor fee across the session's
// orders in proportion to each order's share of the captured total, then
// takes the platform's cut of the remainder. Orders whose commission
// triple is already set are skipped, so the latch fires once per order
// regardless of delivery order or duplicates.
func (s *service) HandleChargeSettled(ctx context.Context, event ChargeSettled) error {
	if event.SessionID == "" && event.PaymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id or payment intent id required")
	}
	if event.ProcessorFee.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "processor fee cannot be negative")
	}
	if !event.CapturedTotal.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "captured total must be positive")
	}

	feeRate := s.platform.FeeRateDecimal()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)

		var sessionOrders []models.Order
		var err error
		if event.SessionID != "" {
			sessionOrders, err = ordersRepo.FindBySessionIDForUpdate(ctx, event.Gateway, event.SessionID)
		} else {
			sessionOrders, err = ordersRepo.FindByPaymentIntentIDForUpdate(ctx, event.Gateway, event.PaymentIntentID)
		}
		if err != nil {
			return err
		}
		if len(sessionOrders) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no orders found for session")
		}

		for _, order := range sessionOrders {
			if order.CommissionComputed() {
				continue
			}

			split := ComputeCommission(order.TotalPrice, event.CapturedTotal, event.ProcessorFee, feeRate)

			updates := map[string]any{
				"online_payment_commission": split.OnlinePaymentCommission,
				"website_commission":        split.WebsiteCommission,
				"vendor_subtotal":           split.VendorSubtotal,
			}
			if err := ordersRepo.UpdateOrder(ctx, order.ID, updates); err != nil {
				return err
			}

			if err := s.emitCommissionComputed(ctx, tx, order, split); err != nil {
				return err
			}
		}
		return nil
	})
}

// CommissionSplit is the three-way division of an order's total.
type CommissionSplit struct {
	OnlinePaymentCommission decimal.Decimal
	WebsiteCommission       decimal.Decimal
	VendorSubtotal          decimal.Decimal
}

// ComputeCommission divides an order's total into the processor's share,
// the platform's share, and the vendor's remainder. The processor fee is
// apportioned by the order's fraction of the captured session total, the
// platform takes feeRate of what is left, and the vendor keeps the rest,
// so the three parts always sum back to totalPrice.
func ComputeCommission(totalPrice, capturedTotal, processorFee decimal.Decimal, feeRate decimal.Decimal) CommissionSplit {
	// Multiply before dividing so terminating ratios stay exact.
	opc := totalPrice.Mul(processorFee).Div(capturedTotal)
	web := totalPrice.Sub(opc).Mul(feeRate)
	vendor := totalPrice.Sub(opc).Sub(web)
	return CommissionSplit{
		OnlinePaymentCommission: opc,
		WebsiteCommission:       web,
		VendorSubtotal:          vendor,
	}
}

func (s *service) decrementItem(ctx context.Context, repo products.Repository, orderID uuid.UUID, item models.OrderItem) error {
	result, err := repo.DecrementInventory(ctx, item.ProductID, item.OptionKey, item.Quantity)
	if err != nil {
		return err
	}
	if result.Clamped {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"order_id":   orderID.String(),
			"product_id": item.ProductID.String(),
			"option_key": item.OptionKey,
			"quantity":   item.Quantity,
		})
		s.logg.Warn(ctx, "inventory decrement clamped at zero")
	}
	return nil
}

func (s *service) emitOrderPaid(ctx context.Context, tx *gorm.DB, order models.Order, paidAt time.Time) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: orderPaidEvent{
			OrderID:      order.ID,
			BuyerUserID:  order.BuyerUserID,
			VendorUserID: order.VendorUserID,
			TotalPrice:   order.TotalPrice,
			PaidAt:       paidAt,
		},
		Version: 1,
	}
	return s.outbox.EmitIfNotExists(ctx, tx, event)
}

func (s *service) emitCommissionComputed(ctx context.Context, tx *gorm.DB, order models.Order, split CommissionSplit) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCommissionComputed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: commissionComputedEvent{
			OrderID:                 order.ID,
			VendorUserID:            order.VendorUserID,
			OnlinePaymentCommission: split.OnlinePaymentCommission,
			WebsiteCommission:       split.WebsiteCommission,
			VendorSubtotal:          split.VendorSubtotal,
		},
		Version: 1,
	}
	return s.outbox.EmitIfNotExists(ctx, tx, event)
}

type orderPaidEvent struct {
	OrderID      uuid.UUID       `json:"orderId"`
	BuyerUserID  uuid.UUID       `json:"buyerUserId"`
	VendorUserID uuid.UUID       `json:"vendorUserId"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	PaidAt       time.Time       `json:"paidAt"`
}

type commissionComputedEvent struct {
	OrderID                 uuid.UUID       `json:"orderId"`
	VendorUserID            uuid.UUID       `json:"vendorUserId"`
	OnlinePaymentCommission decimal.Decimal `json:"onlinePaymentCommission"`
	WebsiteCommission       decimal.Decimal `json:"websiteCommission"`
	VendorSubtotal          decimal.Decimal `json:"vendorSubtotal"`
}

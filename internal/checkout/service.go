package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/internal/cart"
	"github.com/vendora-market/vendora-backend/internal/orders"
	"github.com/vendora-market/vendora-backend/pkg/config"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartService interface {
	GroupedByVendor(ctx context.Context, owner cart.Owner) ([]cart.VendorGroup, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SessionRequest describes one hosted payment session covering every
// order created by a checkout.
type SessionRequest struct {
	Reference  string
	BuyerEmail string
	Amount     decimal.Decimal
	Currency   enums.Currency
	LineItems  []SessionLineItem
	SuccessURL string
	CancelURL  string
}

// SessionLineItem is one flattened cart line shown on the hosted page.
type SessionLineItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// SessionResult is the gateway's handle for the created session.
type SessionResult struct {
	SessionID   string
	RedirectURL string
}

// SessionCreator starts a hosted payment session on one gateway.
type SessionCreator interface {
	CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error)
}

// Input captures the buyer's checkout request. VendorUserID narrows the
// checkout to a single vendor's cart lines when set.
type Input struct {
	Gateway      enums.PaymentGateway
	BuyerEmail   string
	VendorUserID *uuid.UUID
	SuccessURL   string
	CancelURL    string
}

// Result returns the created orders plus the payment redirect.
type Result struct {
	Orders      []models.Order
	SessionID   string
	RedirectURL string
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, buyerUserID uuid.UUID, input Input) (*Result, error)
}

type service struct {
	tx         txRunner
	cartSvc    cartService
	ordersRepo orders.Repository
	gateways   map[enums.PaymentGateway]SessionCreator
	outbox     outboxPublisher
	platform   config.PlatformConfig
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartSvc cartService,
	ordersRepo orders.Repository,
	gateways map[enums.PaymentGateway]SessionCreator,
	publisher outboxPublisher,
	platform config.PlatformConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if len(gateways) == 0 {
		return nil, fmt.Errorf("at least one gateway required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:         tx,
		cartSvc:    cartSvc,
		ordersRepo: ordersRepo,
		gateways:   gateways,
		outbox:     publisher,
		platform:   platform,
	}, nil
}

// Execute groups the buyer's cart by vendor, creates one draft order per
// vendor with frozen prices, then opens a single payment session covering
// the combined total and stamps its id on every order. The session call
// runs inside the transaction so a gateway failure rolls the orders back.
func (s *service) Execute(ctx context.Context, buyerUserID uuid.UUID, input Input) (*Result, error) {
	if buyerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer user id required")
	}
	if !input.Gateway.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment gateway")
	}
	if strings.TrimSpace(input.BuyerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer email required")
	}
	gateway, ok := s.gateways[input.Gateway]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}

	owner := cart.Owner{UserID: &buyerUserID}
	groups, err := s.cartSvc.GroupedByVendor(ctx, owner)
	if err != nil {
		return nil, err
	}
	if input.VendorUserID != nil {
		filtered := groups[:0]
		for _, group := range groups {
			if group.VendorUserID == *input.VendorUserID {
				filtered = append(filtered, group)
			}
		}
		if len(filtered) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no cart items for the requested vendor")
		}
		groups = filtered
	}
	if len(groups) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	currency, err := s.platform.CurrencyEnum()
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)

		created := make([]models.Order, 0, len(groups))
		orderIDs := make([]uuid.UUID, 0, len(groups))
		grandTotal := decimal.Zero
		var lineItems []SessionLineItem

		for _, group := range groups {
			total := decimal.Zero
			items := make([]models.OrderItem, 0, len(group.Items))
			for _, gi := range group.Items {
				unitPrice := resolveUnitPrice(gi)
				total = total.Add(unitPrice.Mul(decimal.NewFromInt(int64(gi.Line.Quantity))))
				lineItems = append(lineItems, SessionLineItem{
					Name:      gi.Product.Title,
					Quantity:  gi.Line.Quantity,
					UnitPrice: unitPrice,
				})
				items = append(items, models.OrderItem{
					ProductID:          gi.Line.ProductID,
					Quantity:           gi.Line.Quantity,
					UnitPrice:          unitPrice,
					VariationOptionIDs: gi.Line.OptionIDs,
					OptionKey:          gi.Line.OptionKey,
				})
			}

			order := &models.Order{
				ID:           uuid.New(),
				BuyerUserID:  buyerUserID,
				VendorUserID: group.VendorUserID,
				Status:       enums.OrderStatusDraft,
				Currency:     currency,
				Gateway:      input.Gateway,
				TotalPrice:   total,
			}
			createdOrder, err := ordersRepo.CreateOrder(ctx, order)
			if err != nil {
				return err
			}
			for i := range items {
				items[i].ID = uuid.New()
				items[i].OrderID = createdOrder.ID
			}
			if err := ordersRepo.CreateOrderItems(ctx, items); err != nil {
				return err
			}
			createdOrder.Items = items

			if err := s.emitOrderCreatedEvent(ctx, tx, createdOrder); err != nil {
				return err
			}

			created = append(created, *createdOrder)
			orderIDs = append(orderIDs, createdOrder.ID)
			grandTotal = grandTotal.Add(total)
		}

		session, err := gateway.CreateSession(ctx, SessionRequest{
			Reference:  uuid.NewString(),
			BuyerEmail: input.BuyerEmail,
			Amount:     grandTotal,
			Currency:   currency,
			LineItems:  lineItems,
			SuccessURL: input.SuccessURL,
			CancelURL:  input.CancelURL,
		})
		if err != nil {
			return err
		}

		if err := ordersRepo.StampGatewaySession(ctx, orderIDs, session.SessionID); err != nil {
			return err
		}
		for i := range created {
			sessionID := session.SessionID
			created[i].GatewaySessionID = &sessionID
		}

		result = &Result{
			Orders:      created,
			SessionID:   session.SessionID,
			RedirectURL: session.RedirectURL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emitOrderCreatedEvent(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.BuyerUserID, Role: "buyer"},
		Data: orderCreatedEvent{
			OrderID:      order.ID,
			BuyerUserID:  order.BuyerUserID,
			VendorUserID: order.VendorUserID,
			TotalPrice:   order.TotalPrice,
			Gateway:      order.Gateway,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}

type orderCreatedEvent struct {
	OrderID      uuid.UUID            `json:"orderId"`
	BuyerUserID  uuid.UUID            `json:"buyerUserId"`
	VendorUserID uuid.UUID            `json:"vendorUserId"`
	TotalPrice   decimal.Decimal      `json:"totalPrice"`
	Gateway      enums.PaymentGateway `json:"gateway"`
}

// resolveUnitPrice freezes the price at checkout time: a matching
// variation with its own price wins over the base product price.
func resolveUnitPrice(gi cart.GroupedItem) decimal.Decimal {
	if gi.Line.OptionKey != "" {
		for _, variation := range gi.Product.Variations {
			if variation.OptionKey == gi.Line.OptionKey {
				return variation.Price
			}
		}
	}
	return gi.Product.Price
}

package checkout

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	stripelib "github.com/stripe/stripe-go/v84"

	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/flutterwave"
	"github.com/vendora-market/vendora-backend/pkg/paystack"
	"github.com/vendora-market/vendora-backend/pkg/stripe"
)

type stripeSessionAPI interface {
	CreateCheckoutSession(ctx context.Context, params *stripelib.CheckoutSessionCreateParams) (*stripelib.CheckoutSession, error)
}

type stripeGateway struct {
	client stripeSessionAPI
}

// NewStripeGateway adapts the Stripe client to the checkout session port.
func NewStripeGateway(client *stripe.Client) SessionCreator {
	return &stripeGateway{client: client}
}

func (g *stripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	lineItems := make([]*stripelib.CheckoutSessionCreateLineItemParams, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		lineItems = append(lineItems, &stripelib.CheckoutSessionCreateLineItemParams{
			PriceData: &stripelib.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripelib.String(currencyCode(req.Currency)),
				UnitAmount: stripelib.Int64(toMinor(item.UnitPrice)),
				ProductData: &stripelib.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripelib.String(item.Name),
				},
			},
			Quantity: stripelib.Int64(int64(item.Quantity)),
		})
	}
	if len(lineItems) == 0 {
		lineItems = append(lineItems, &stripelib.CheckoutSessionCreateLineItemParams{
			PriceData: &stripelib.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripelib.String(currencyCode(req.Currency)),
				UnitAmount: stripelib.Int64(toMinor(req.Amount)),
				ProductData: &stripelib.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripelib.String("Order total"),
				},
			},
			Quantity: stripelib.Int64(1),
		})
	}

	params := &stripelib.CheckoutSessionCreateParams{
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModePayment)),
		ClientReferenceID: stripelib.String(req.Reference),
		CustomerEmail:     stripelib.String(req.BuyerEmail),
		SuccessURL:        stripelib.String(req.SuccessURL),
		CancelURL:         stripelib.String(req.CancelURL),
		LineItems:         lineItems,
	}

	session, err := g.client.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe checkout session")
	}
	return &SessionResult{
		SessionID:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

type paystackAPI interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
}

type paystackGateway struct {
	client paystackAPI
}

// NewPaystackGateway adapts the Paystack client to the checkout session port.
func NewPaystackGateway(client *paystack.Client) SessionCreator {
	return &paystackGateway{client: client}
}

func (g *paystackGateway) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	result, err := g.client.Initialize(ctx, paystack.InitializeRequest{
		Email:       req.BuyerEmail,
		AmountMinor: minorUnits(req),
		Currency:    currencyCode(req.Currency),
		Reference:   req.Reference,
		CallbackURL: req.SuccessURL,
	})
	if err != nil {
		return nil, err
	}
	return &SessionResult{
		SessionID:   result.Reference,
		RedirectURL: result.AuthorizationURL,
	}, nil
}

type flutterwaveAPI interface {
	CreatePayment(ctx context.Context, req flutterwave.PaymentRequest) (*flutterwave.PaymentLink, error)
}

type flutterwaveGateway struct {
	client flutterwaveAPI
}

// NewFlutterwaveGateway adapts the Flutterwave client to the checkout session port.
func NewFlutterwaveGateway(client *flutterwave.Client) SessionCreator {
	return &flutterwaveGateway{client: client}
}

func (g *flutterwaveGateway) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	meta, _ := json.Marshal(map[string]string{"reference": req.Reference})
	link, err := g.client.CreatePayment(ctx, flutterwave.PaymentRequest{
		TxRef:       req.Reference,
		Amount:      req.Amount,
		Currency:    currencyCode(req.Currency),
		RedirectURL: req.SuccessURL,
		Customer:    flutterwave.Customer{Email: req.BuyerEmail},
		Meta:        meta,
	})
	if err != nil {
		return nil, err
	}
	return &SessionResult{
		SessionID:   req.Reference,
		RedirectURL: link.Link,
	}, nil
}

func currencyCode(c enums.Currency) string {
	return string(c)
}

func minorUnits(req SessionRequest) int64 {
	return toMinor(req.Amount)
}

func toMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

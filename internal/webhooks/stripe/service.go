package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/vendora-market/vendora-backend/internal/settlement"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

type balanceTransactionFetcher interface {
	RetrieveBalanceTransaction(ctx context.Context, id string) (*stripe.BalanceTransaction, error)
}

type ServiceParams struct {
	Settlement   settlement.Service
	StripeClient balanceTransactionFetcher
}

type Service struct {
	settlement settlement.Service
	stripe     balanceTransactionFetcher
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		settlement: params.Settlement,
		stripe:     params.StripeClient,
	}, nil
}

// HandleEvent routes the two settlement-relevant Stripe events. The
// session completion and the charge settlement arrive independently and
// in either order, so each maps onto its own settlement latch.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.handleSessionCompleted(ctx, event, &session)
	case stripe.EventTypeChargeSucceeded, stripe.EventTypeChargeUpdated:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode charge event")
		}
		return s.handleChargeSettled(ctx, &charge)
	default:
		return nil
	}
}

func (s *Service) handleSessionCompleted(ctx context.Context, event *stripe.Event, session *stripe.CheckoutSession) error {
	if session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}

	completed := settlement.SessionCompleted{
		Gateway:     enums.GatewayStripe,
		SessionID:   session.ID,
		CompletedAt: time.Unix(event.Created, 0).UTC(),
	}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		intentID := session.PaymentIntent.ID
		completed.PaymentIntentID = &intentID
	}
	return s.settlement.HandleSessionCompleted(ctx, completed)
}

// handleChargeSettled waits for the balance transaction: charge.succeeded
// can fire before Stripe attaches it, in which case charge.updated
// redelivers the charge with the transaction present.
func (s *Service) handleChargeSettled(ctx context.Context, charge *stripe.Charge) error {
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge has no payment intent")
	}
	if charge.BalanceTransaction == nil || charge.BalanceTransaction.ID == "" {
		return nil
	}

	balanceTx, err := s.stripe.RetrieveBalanceTransaction(ctx, charge.BalanceTransaction.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch balance transaction")
	}

	// Balance transaction amounts are in the minor currency unit.
	return s.settlement.HandleChargeSettled(ctx, settlement.ChargeSettled{
		Gateway:         enums.GatewayStripe,
		PaymentIntentID: charge.PaymentIntent.ID,
		ProcessorFee:    processorFee(balanceTx),
		CapturedTotal:   decimal.NewFromInt(balanceTx.Amount).Shift(-2),
	})
}

// processorFee extracts Stripe's own processing fee from the balance
// transaction's fee breakdown. The total Fee also includes other detail
// types, such as tax, which are not part of the processing cost. A
// transaction with no breakdown falls back to the total.
func processorFee(balanceTx *stripe.BalanceTransaction) decimal.Decimal {
	var minor int64
	found := false
	for _, detail := range balanceTx.FeeDetails {
		if detail == nil {
			continue
		}
		if detail.Type == "stripe_fee" {
			minor += detail.Amount
			found = true
		}
	}
	if !found {
		minor = balanceTx.Fee
	}
	return decimal.NewFromInt(minor).Shift(-2)
}

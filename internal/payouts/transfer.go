package payouts

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	stripelib "github.com/stripe/stripe-go/v84"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

type stripeTransferAPI interface {
	CreateTransfer(ctx context.Context, params *stripelib.TransferCreateParams) (*stripelib.Transfer, error)
}

type stripeTransferrer struct {
	client stripeTransferAPI
}

// NewStripeTransferrer pays vendors through Stripe Connect transfers.
func NewStripeTransferrer(client stripeTransferAPI) (Transferrer, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &stripeTransferrer{client: client}, nil
}

func (t *stripeTransferrer) Transfer(ctx context.Context, vendor models.Vendor, amount decimal.Decimal, currency enums.Currency) error {
	if vendor.GatewayAccountID == nil || *vendor.GatewayAccountID == "" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "vendor has no gateway account")
	}

	// Stripe transfers take the minor currency unit.
	minor := amount.Shift(2).Round(0).IntPart()
	params := &stripelib.TransferCreateParams{
		Amount:      stripelib.Int64(minor),
		Currency:    stripelib.String(string(currency)),
		Destination: stripelib.String(*vendor.GatewayAccountID),
	}
	if _, err := t.client.CreateTransfer(ctx, params); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe transfer")
	}
	return nil
}

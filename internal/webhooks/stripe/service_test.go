package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/vendora-market/vendora-backend/internal/settlement"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

type stubFetcher struct {
	balanceTx *stripe.BalanceTransaction
	err       error
	ids       []string
}

func (f *stubFetcher) RetrieveBalanceTransaction(_ context.Context, id string) (*stripe.BalanceTransaction, error) {
	f.ids = append(f.ids, id)
	if f.err != nil {
		return nil, f.err
	}
	return f.balanceTx, nil
}

type recordingSettlement struct {
	sessions []settlement.SessionCompleted
	charges  []settlement.ChargeSettled
}

func (r *recordingSettlement) HandleSessionCompleted(_ context.Context, event settlement.SessionCompleted) error {
	r.sessions = append(r.sessions, event)
	return nil
}

func (r *recordingSettlement) HandleChargeSettled(_ context.Context, event settlement.ChargeSettled) error {
	r.charges = append(r.charges, event)
	return nil
}

func newFixture(t *testing.T, fetcher *stubFetcher) (*Service, *recordingSettlement) {
	t.Helper()
	settled := &recordingSettlement{}
	svc, err := NewService(ServiceParams{Settlement: settled, StripeClient: fetcher})
	require.NoError(t, err)
	return svc, settled
}

func stripeEvent(t *testing.T, eventType stripe.EventType, created int64, raw string) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		Type:    eventType,
		Created: created,
		Data:    &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestHandleEventSessionCompleted(t *testing.T) {
	t.Parallel()

	svc, settled := newFixture(t, &stubFetcher{})

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	event := stripeEvent(t, stripe.EventTypeCheckoutSessionCompleted, created.Unix(),
		`{"id":"cs_123","payment_intent":{"id":"pi_9"}}`)
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, settled.sessions, 1)
	got := settled.sessions[0]
	assert.Equal(t, enums.GatewayStripe, got.Gateway)
	assert.Equal(t, "cs_123", got.SessionID)
	require.NotNil(t, got.PaymentIntentID)
	assert.Equal(t, "pi_9", *got.PaymentIntentID)
	assert.True(t, got.CompletedAt.Equal(created))
	assert.Empty(t, settled.charges)
}

func TestHandleEventSessionWithoutPaymentIntent(t *testing.T) {
	t.Parallel()

	svc, settled := newFixture(t, &stubFetcher{})

	event := stripeEvent(t, stripe.EventTypeCheckoutSessionCompleted, 1_760_000_000, `{"id":"cs_123"}`)
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, settled.sessions, 1)
	assert.Nil(t, settled.sessions[0].PaymentIntentID)
}

func TestHandleEventSessionMissingID(t *testing.T) {
	t.Parallel()

	svc, _ := newFixture(t, &stubFetcher{})

	event := stripeEvent(t, stripe.EventTypeCheckoutSessionCompleted, 1_760_000_000, `{}`)
	err := svc.HandleEvent(context.Background(), event)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestHandleEventChargeSucceeded(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{balanceTx: &stripe.BalanceTransaction{
		ID:     "txn_1",
		Fee:    450,
		Amount: 15000,
	}}
	svc, settled := newFixture(t, fetcher)

	event := stripeEvent(t, stripe.EventTypeChargeSucceeded, 1_760_000_000,
		`{"id":"ch_1","payment_intent":{"id":"pi_9"},"balance_transaction":{"id":"txn_1"}}`)
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	assert.Equal(t, []string{"txn_1"}, fetcher.ids)

	require.Len(t, settled.charges, 1)
	got := settled.charges[0]
	assert.Equal(t, enums.GatewayStripe, got.Gateway)
	assert.Equal(t, "pi_9", got.PaymentIntentID)
	assert.Empty(t, got.SessionID)
	assert.True(t, got.ProcessorFee.Equal(decimal.RequireFromString("4.50")))
	assert.True(t, got.CapturedTotal.Equal(decimal.RequireFromString("150.00")))
	assert.Empty(t, settled.sessions)
}

func TestHandleEventChargeFeeBreakdownKeepsProcessorFeeOnly(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{balanceTx: &stripe.BalanceTransaction{
		ID:     "txn_1",
		Fee:    550,
		Amount: 15000,
		FeeDetails: []*stripe.BalanceTransactionFeeDetail{
			{Type: "stripe_fee", Amount: 450},
			{Type: "tax", Amount: 100},
		},
	}}
	svc, settled := newFixture(t, fetcher)

	event := stripeEvent(t, stripe.EventTypeChargeSucceeded, 1_760_000_000,
		`{"id":"ch_1","payment_intent":{"id":"pi_9"},"balance_transaction":{"id":"txn_1"}}`)
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, settled.charges, 1)
	assert.True(t, settled.charges[0].ProcessorFee.Equal(decimal.RequireFromString("4.50")),
		"fee taxes must not count toward the processor fee, got %s", settled.charges[0].ProcessorFee)
	assert.True(t, settled.charges[0].CapturedTotal.Equal(decimal.RequireFromString("150.00")))
}

func TestHandleEventChargeWithoutBalanceTransaction(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	svc, settled := newFixture(t, fetcher)

	event := stripeEvent(t, stripe.EventTypeChargeSucceeded, 1_760_000_000,
		`{"id":"ch_1","payment_intent":{"id":"pi_9"}}`)
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	assert.Empty(t, fetcher.ids)
	assert.Empty(t, settled.charges)
}

func TestHandleEventChargeUpdatedCarriesBalanceTransaction(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{balanceTx: &stripe.BalanceTransaction{
		ID:     "txn_1",
		Fee:    59,
		Amount: 1999,
	}}
	svc, settled := newFixture(t, fetcher)

	event := stripeEvent(t, stripe.EventTypeChargeUpdated, 1_760_000_000,
		`{"id":"ch_1","payment_intent":{"id":"pi_9"},"balance_transaction":{"id":"txn_1"}}`)
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, settled.charges, 1)
	assert.True(t, settled.charges[0].ProcessorFee.Equal(decimal.RequireFromString("0.59")))
	assert.True(t, settled.charges[0].CapturedTotal.Equal(decimal.RequireFromString("19.99")))
}

func TestHandleEventChargeMissingPaymentIntent(t *testing.T) {
	t.Parallel()

	svc, _ := newFixture(t, &stubFetcher{})

	event := stripeEvent(t, stripe.EventTypeChargeSucceeded, 1_760_000_000, `{"id":"ch_1"}`)
	err := svc.HandleEvent(context.Background(), event)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestHandleEventBalanceTransactionFetchFailure(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: pkgerrors.New(pkgerrors.CodeDependency, "stripe unavailable")}
	svc, settled := newFixture(t, fetcher)

	event := stripeEvent(t, stripe.EventTypeChargeSucceeded, 1_760_000_000,
		`{"id":"ch_1","payment_intent":{"id":"pi_9"},"balance_transaction":{"id":"txn_1"}}`)
	err := svc.HandleEvent(context.Background(), event)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Empty(t, settled.charges)
}

func TestHandleEventIgnoresUnrelatedTypes(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{}
	svc, settled := newFixture(t, fetcher)

	event := stripeEvent(t, stripe.EventTypeInvoicePaid, 1_760_000_000, `{"id":"in_1"}`)
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	assert.Empty(t, settled.sessions)
	assert.Empty(t, settled.charges)
	assert.Empty(t, fetcher.ids)
}

func TestHandleEventNilData(t *testing.T) {
	t.Parallel()

	svc, _ := newFixture(t, &stubFetcher{})

	err := svc.HandleEvent(context.Background(), &stripe.Event{Type: stripe.EventTypeChargeSucceeded})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

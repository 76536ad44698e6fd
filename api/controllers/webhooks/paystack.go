package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/vendora-market/vendora-backend/api/responses"
	paystackwebhook "github.com/vendora-market/vendora-backend/internal/webhooks/paystack"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/metrics"
)

const gatewayPaystack = "paystack"

type PaystackWebhookService interface {
	HandleEvent(ctx context.Context, event *paystackwebhook.Event) error
}

type paystackSignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// PaystackWebhook handles Paystack charge events. The body signature is
// an HMAC of the raw payload with the secret key; the transaction
// reference doubles as the idempotency key since Paystack retries carry
// the same reference.
func PaystackWebhook(svc PaystackWebhookService, verifier paystackSignatureVerifier, guard idempotencyGuard, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paystack client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("x-paystack-signature")
		if !verifier.VerifySignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid paystack signature"))
			return
		}

		event, err := paystackwebhook.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		wm.IncReceived(gatewayPaystack, event.Event)

		if event.Data.Reference == "" {
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.Data.Reference)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			wm.IncDuplicate(gatewayPaystack, event.Event)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			_ = guard.Delete(ctx, event.Data.Reference)
			wm.IncFailed(gatewayPaystack, event.Event)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		wm.IncProcessed(gatewayPaystack, event.Event)

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("paystack event %s processed", event.Data.Reference))
		}
		responses.WriteSuccess(w, nil)
	}
}

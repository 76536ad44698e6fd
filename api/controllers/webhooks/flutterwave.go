package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/vendora-market/vendora-backend/api/responses"
	flutterwavewebhook "github.com/vendora-market/vendora-backend/internal/webhooks/flutterwave"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
	"github.com/vendora-market/vendora-backend/pkg/metrics"
)

const gatewayFlutterwave = "flutterwave"

type FlutterwaveWebhookService interface {
	HandleEvent(ctx context.Context, event *flutterwavewebhook.Event) error
}

type flutterwaveSignatureVerifier interface {
	VerifySignature(signature, secretHash string) bool
}

// FlutterwaveWebhook handles Flutterwave charge events. The verif-hash
// header is a shared secret, not a payload MAC, so the payload is always
// re-verified against the transactions API before settling.
func FlutterwaveWebhook(svc FlutterwaveWebhookService, verifier flutterwaveSignatureVerifier, secretHash string, guard idempotencyGuard, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flutterwave client unavailable"))
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

		signature := r.Header.Get("verif-hash")
		if !verifier.VerifySignature(signature, secretHash) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid flutterwave signature"))
			return
		}

		event, err := flutterwavewebhook.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		wm.IncReceived(gatewayFlutterwave, event.Event)

		eventID := event.EventID()
		if eventID == "0" {
			responses.WriteSuccess(w, nil)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			wm.IncDuplicate(gatewayFlutterwave, event.Event)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			_ = guard.Delete(ctx, eventID)
			wm.IncFailed(gatewayFlutterwave, event.Event)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		wm.IncProcessed(gatewayFlutterwave, event.Event)

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("flutterwave event %s processed", eventID))
		}
		responses.WriteSuccess(w, nil)
	}
}

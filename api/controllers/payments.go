package controllers

import (
	"net/http"

	"github.com/vendora-market/vendora-backend/api/responses"
	flutterwavewebhook "github.com/vendora-market/vendora-backend/internal/webhooks/flutterwave"
	paystackwebhook "github.com/vendora-market/vendora-backend/internal/webhooks/paystack"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

// PaystackCallback is the synchronous return leg of a Paystack checkout.
// The buyer lands here after paying; the reference is verified against
// the API and settled through the same path the webhook uses, so
// whichever arrives first wins and the other is a no-op.
func PaystackCallback(svc *paystackwebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		reference := r.URL.Query().Get("reference")
		if reference == "" {
			reference = r.URL.Query().Get("trxref")
		}
		if reference == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference required"))
			return
		}

		event := &paystackwebhook.Event{Event: "charge.success"}
		event.Data.Reference = reference
		if err := svc.HandleEvent(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"reference": reference, "status": "settled"})
	}
}

// FlutterwaveCallback is the synchronous return leg of a Flutterwave
// checkout. Cancelled payments come back with a non-completed status and
// are acknowledged without settling.
func FlutterwaveCallback(svc *flutterwavewebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status := r.URL.Query().Get("status")
		if status == "cancelled" {
			responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
			return
		}

		transactionID := r.URL.Query().Get("transaction_id")
		if transactionID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required"))
			return
		}

		if err := svc.HandleTransaction(ctx, transactionID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "settled"})
	}
}

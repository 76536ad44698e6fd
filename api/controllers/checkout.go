package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/api/responses"
	"github.com/vendora-market/vendora-backend/api/validators"
	"github.com/vendora-market/vendora-backend/internal/checkout"
	"github.com/vendora-market/vendora-backend/pkg/enums"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type checkoutRequest struct {
	Gateway    string  `json:"gateway" validate:"required"`
	Email      string  `json:"email" validate:"required,email"`
	VendorID   *string `json:"vendorId" validate:"omitempty,uuid"`
	SuccessURL string  `json:"successUrl" validate:"required,url"`
	CancelURL  string  `json:"cancelUrl" validate:"required,url"`
}

type checkoutResponse struct {
	OrderIDs    []uuid.UUID `json:"orderIds"`
	SessionID   string      `json:"sessionId"`
	RedirectURL string      `json:"redirectUrl"`
}

func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := requireUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		gateway, err := enums.ParsePaymentGateway(req.Gateway)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment gateway"))
			return
		}

		input := checkout.Input{
			Gateway:    gateway,
			BuyerEmail: req.Email,
			SuccessURL: req.SuccessURL,
			CancelURL:  req.CancelURL,
		}
		if req.VendorID != nil {
			vendorID, err := uuid.Parse(*req.VendorID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid vendor id"))
				return
			}
			input.VendorUserID = &vendorID
		}

		result, err := svc.Execute(ctx, userID, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		orderIDs := make([]uuid.UUID, 0, len(result.Orders))
		for _, order := range result.Orders {
			orderIDs = append(orderIDs, order.ID)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			OrderIDs:    orderIDs,
			SessionID:   result.SessionID,
			RedirectURL: result.RedirectURL,
		})
	}
}

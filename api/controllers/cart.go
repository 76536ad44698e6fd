package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendora-market/vendora-backend/api/middleware"
	"github.com/vendora-market/vendora-backend/api/responses"
	"github.com/vendora-market/vendora-backend/api/validators"
	"github.com/vendora-market/vendora-backend/internal/cart"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type cartLineResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProductID     uuid.UUID       `json:"productId"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	OptionIDs     []uuid.UUID     `json:"optionIds,omitempty"`
	SavedForLater bool            `json:"savedForLater"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toCartLineResponse(item models.CartItem) cartLineResponse {
	return cartLineResponse{
		ID:            item.ID,
		ProductID:     item.ProductID,
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		OptionIDs:     item.OptionIDs,
		SavedForLater: item.SavedForLater,
		CreatedAt:     item.CreatedAt,
	}
}

func toCartLineResponses(items []models.CartItem) []cartLineResponse {
	out := make([]cartLineResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toCartLineResponse(item))
	}
	return out
}

func CartList(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		owner, err := cartOwner(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items, err := svc.List(ctx, owner)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": toCartLineResponses(items)})
	}
}

type cartAddRequest struct {
	ProductID string   `json:"productId" validate:"required,uuid"`
	OptionIDs []string `json:"optionIds" validate:"omitempty,dive,uuid"`
	Quantity  int      `json:"quantity" validate:"required,gt=0"`
}

func CartAdd(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		owner, err := cartOwner(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req cartAddRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}
		optionIDs := make([]uuid.UUID, 0, len(req.OptionIDs))
		for _, raw := range req.OptionIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid option id"))
				return
			}
			optionIDs = append(optionIDs, id)
		}

		line, err := svc.AddItem(ctx, owner, cart.AddItemInput{
			ProductID: productID,
			OptionIDs: optionIDs,
			Quantity:  req.Quantity,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toCartLineResponse(*line))
	}
}

type cartUpdateRequest struct {
	Quantity      *int  `json:"quantity" validate:"omitempty,gt=0"`
	SavedForLater *bool `json:"savedForLater"`
}

func CartUpdateLine(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		owner, err := cartOwner(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		lineID, err := uuid.Parse(chi.URLParam(r, "lineId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart line id"))
			return
		}

		var req cartUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if req.Quantity == nil && req.SavedForLater == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}

		if req.Quantity != nil {
			if err := svc.UpdateQuantity(ctx, owner, lineID, *req.Quantity); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		if req.SavedForLater != nil {
			if err := svc.SetSavedForLater(ctx, owner, lineID, *req.SavedForLater); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, nil)
	}
}

func CartRemove(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		owner, err := cartOwner(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		lineID, err := uuid.Parse(chi.URLParam(r, "lineId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart line id"))
			return
		}

		if err := svc.RemoveItem(ctx, owner, lineID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// CartMerge folds the caller's anonymous session cart into their user
// cart after login.
func CartMerge(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := requireUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		token, ok := middleware.SessionTokenFrom(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart session token required"))
			return
		}

		if err := svc.MergeSessionCart(ctx, token, userID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

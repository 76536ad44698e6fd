package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendora-market/vendora-backend/api/responses"
	"github.com/vendora-market/vendora-backend/internal/payouts"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type payoutResponse struct {
	ID           uuid.UUID       `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	StartingFrom time.Time       `json:"startingFrom"`
	Until        time.Time       `json:"until"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func toPayoutResponses(rows []models.Payout) []payoutResponse {
	out := make([]payoutResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, payoutResponse{
			ID:           row.ID,
			Amount:       row.Amount,
			StartingFrom: row.StartingFrom,
			Until:        row.Until,
			CreatedAt:    row.CreatedAt,
		})
	}
	return out
}

// VendorPayoutsList returns the caller's payout history, newest first.
func VendorPayoutsList(repo payouts.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := requireUserID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}

		rows, err := repo.ListVendorPayouts(ctx, userID, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"payouts": toPayoutResponses(rows)})
	}
}

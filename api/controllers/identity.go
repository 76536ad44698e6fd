package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/api/middleware"
	"github.com/vendora-market/vendora-backend/internal/cart"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
)

// cartOwner resolves the cart owner from the request identity. An
// authenticated user id wins over an anonymous session token.
func cartOwner(ctx context.Context) (cart.Owner, error) {
	if userID, ok := middleware.UserIDFrom(ctx); ok {
		return cart.Owner{UserID: &userID}, nil
	}
	if token, ok := middleware.SessionTokenFrom(ctx); ok {
		return cart.Owner{SessionToken: &token}, nil
	}
	return cart.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
}

// requireUserID resolves the authenticated user or fails.
func requireUserID(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFrom(ctx)
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	return userID, nil
}

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/pkg/logger"
)

// Authentication terminates at the edge proxy, which forwards the
// caller's identity in these headers. Anonymous storefront carts carry a
// session token instead of a user id.
const (
	userIDHeader       = "X-User-Id"
	sessionTokenHeader = "X-Cart-Session"
)

type identityKey int

const (
	userIDKey identityKey = iota
	sessionTokenKey
)

// Identity extracts the forwarded user id and cart session token into
// the request context.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw := r.Header.Get(userIDHeader); raw != "" {
				if userID, err := uuid.Parse(raw); err == nil {
					ctx = context.WithValue(ctx, userIDKey, userID)
					if logg != nil {
						ctx = logg.WithBuyerID(ctx, userID.String())
					}
				}
			}
			if token := r.Header.Get(sessionTokenHeader); token != "" {
				ctx = context.WithValue(ctx, sessionTokenKey, token)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom returns the authenticated user's id, if any.
func UserIDFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// SessionTokenFrom returns the anonymous cart session token, if any.
func SessionTokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenKey).(string)
	return token, ok
}

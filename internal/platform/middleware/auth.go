package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"rxledger/internal/jwtauth"
	"rxledger/pkg/requestcontext"
)

// TokenValidator defines the interface for validating JWT tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwtauth.Claims, error)
}

// AuthSuccess is invoked after a token validates, with the authenticated
// context. The login recorder hooks in here.
type AuthSuccess func(r *http.Request, claims *jwtauth.Claims)

// RequireAuth rejects requests without a valid bearer token and injects the
// acting principal into the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger, onSuccess AuthSuccess) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			if actorID, err := uuid.Parse(claims.UserID); err == nil {
				ctx = requestcontext.WithActorID(ctx, actorID)
			}
			r = r.WithContext(ctx)

			if onSuccess != nil {
				onSuccess(r, claims)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dan9191/gente-bank/internal/auth"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	accountNumberKey contextKey = "accountNumber"
	traceIDKey       contextKey = "traceId"
)

// AuthMiddleware rejects requests without a valid bearer token and stores
// the token subject in the request context
func AuthMiddleware(tokens *auth.TokenIssuer, log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				RespondWithError(w, http.StatusUnauthorized, "unauthorized", "Authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				RespondWithError(w, http.StatusUnauthorized, "unauthorized", "Invalid authorization header format")
				return
			}

			claims, err := tokens.Verify(parts[1])
			if err != nil {
				log.WithField("trace_id", TraceIDFromContext(r.Context())).Debugf("Rejected token: %v", err)
				RespondWithError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountNumber(r.Context(), claims.Subject)))
		})
	}
}

// WithAccountNumber returns ctx carrying the authenticated account number
func WithAccountNumber(ctx context.Context, accountNumber string) context.Context {
	return context.WithValue(ctx, accountNumberKey, accountNumber)
}

// AccountNumberFromContext returns the authenticated account number
func AccountNumberFromContext(ctx context.Context) (string, bool) {
	n, ok := ctx.Value(accountNumberKey).(string)
	return n, ok && n != ""
}

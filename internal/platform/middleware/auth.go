package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "persona-gateway/pkg/domain"
	"persona-gateway/pkg/requestcontext"
)

// RequireAuth validates the Bearer token and injects the caller's wallet
// address into the request context. Tokens are HS256 with the bech32 address
// in the subject claim; any other algorithm is rejected outright.
func RequireAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return []byte(signingKey), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx))
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			token, err := jwt.Parse(raw, keyFunc,
				jwt.WithValidMethods([]string{"HS256"}),
				jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx))
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				writeUnauthorized(w, "Token has no subject")
				return
			}
			account, err := id.ParseAccountID(subject)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - subject is not an account address",
					"error", err,
					"request_id", requestcontext.RequestID(ctx))
				writeUnauthorized(w, "Token subject is not a valid account address")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccount(ctx, account)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description)
}

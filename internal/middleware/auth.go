package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type contextKey string

const principalKey contextKey = "principal"

// TokenParser turns a bearer token into the caller identity
type TokenParser interface {
	ParseToken(ctx context.Context, token string) (*models.Principal, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller in the request context
func AuthMiddleware(parser TokenParser, log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}

			principal, err := parser.ParseToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				if !errors.Is(err, utils.ErrUnauthorized) {
					log.WithError(err).WithField("path", r.URL.Path).Error("Failed to authenticate request")
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				log.WithError(err).WithField("path", r.URL.Path).Warn("Rejected token")
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), *principal)))
		})
	}
}

// RequireRole rejects authenticated callers without the role
func RequireRole(role models.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if principal.Role != role {
				writeError(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying the caller
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller stored by AuthMiddleware
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

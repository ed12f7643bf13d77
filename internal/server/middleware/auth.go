package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/neighborly/neighborly/internal/authz"
	"github.com/neighborly/neighborly/internal/model"
	"github.com/neighborly/neighborly/internal/service"
)

type contextKeyAuth string

const (
	// AuthUserKey is the context key for the authenticated user.
	AuthUserKey contextKeyAuth = "auth_user"

	userAttrsKey contextKeyAuth = "user_attrs"
)

// userAttrs lets the request logger see who the request was made by.
type userAttrs struct {
	set  bool
	id   int64
	role string
}

func withUserAttrs(ctx context.Context, a *userAttrs) context.Context {
	return context.WithValue(ctx, userAttrsKey, a)
}

// TokenValidator resolves a bearer token to the caller's identity.
type TokenValidator interface {
	ValidateJWT(ctx context.Context, token string) (*authz.User, error)
}

// Authenticate returns an HTTP middleware that resolves an optional JWT
// Bearer token from the Authorization header. Requests without a token pass
// through anonymously; guards decide whether that is acceptable. A token
// that is present but invalid is rejected with 401.
func Authenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "Authorization header must use the Bearer scheme", nil)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			u, err := v.ValidateJWT(r.Context(), token)
			if err != nil {
				msg := "Invalid token"
				switch {
				case errors.Is(err, service.ErrTokenExpired):
					msg = "Token expired"
				case errors.Is(err, service.ErrAccountDisabled):
					msg = "Account disabled"
				}
				writeAuthError(w, http.StatusUnauthorized, msg, nil)
				return
			}

			if a, ok := r.Context().Value(userAttrsKey).(*userAttrs); ok {
				a.set, a.id, a.role = true, u.ID, string(u.Role)
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser returns a copy of ctx carrying u as the authenticated user.
func WithUser(ctx context.Context, u *authz.User) context.Context {
	return context.WithValue(ctx, AuthUserKey, u)
}

// GetUser extracts the authenticated user from the context.
// Returns nil if no user is present (i.e., unauthenticated request).
func GetUser(ctx context.Context) *authz.User {
	if u, ok := ctx.Value(AuthUserKey).(*authz.User); ok {
		return u
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message, Context: details},
	})
}

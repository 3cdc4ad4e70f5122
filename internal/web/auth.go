package web

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// AuthUser represents an authenticated caller
type AuthUser struct {
	Name  string
	Token bool // authenticated with the API token
}

type contextKey string

const authUserKey contextKey = "authUser"

// AuthMiddleware identifies callers by API token or by a header set by an
// authenticating proxy
type AuthMiddleware struct {
	headerName string
	token      string
	logger     *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. With an empty token the
// API is open and unidentified callers are treated as anonymous users.
func NewAuthMiddleware(headerName, token string, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{headerName: headerName, token: token, logger: logger}
}

// Middleware wraps an http.Handler and injects user info into the request context
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *AuthUser

		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && m.token != "" {
			if subtle.ConstantTimeCompare([]byte(bearer), []byte(m.token)) == 1 {
				user = &AuthUser{Name: "api", Token: true}
			}
		}
		if user == nil && m.headerName != "" {
			if name := r.Header.Get(m.headerName); name != "" {
				user = &AuthUser{Name: name}
			}
		}
		if user == nil && m.token == "" {
			user = &AuthUser{Name: "anonymous"}
		}

		name := "unauthenticated"
		if user != nil {
			name = user.Name
		}
		m.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "user", name)

		ctx := context.WithValue(r.Context(), authUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUser retrieves the AuthUser from the request context
func GetUser(r *http.Request) *AuthUser {
	user, ok := r.Context().Value(authUserKey).(*AuthUser)
	if !ok {
		return nil
	}
	return user
}

// RequireAuth returns middleware that requires an identified caller
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r) == nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		next(w, r)
	}
}

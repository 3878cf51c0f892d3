// Package auth resolves caller identity. Authentication itself happens
// upstream at the gateway; this layer trusts the forwarded identity
// headers and enforces roles, plus API-key auth for admin endpoints.
package auth

import (
	"context"
	"net/http"

	"github.com/ninewheels/server/internal/apperr"
	"github.com/ninewheels/server/internal/storage"
)

// Header names set by the gateway.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
	HeaderAdminKey = "X-Admin-API-Key"
)

// Identity is the resolved caller.
type Identity struct {
	UserID string
	Role   storage.Role
}

type contextKey struct{}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the caller identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Middleware extracts the forwarded identity headers into the context.
// Requests without them proceed anonymously; RequireRole rejects later.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID != "" {
			ctx := WithIdentity(r.Context(), Identity{
				UserID: userID,
				Role:   storage.Role(r.Header.Get(HeaderUserRole)),
			})
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose caller is missing or holds none of
// the allowed roles. Admins pass every role check.
func RequireRole(roles ...storage.Role) func(http.Handler) http.Handler {
	allowed := make(map[storage.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				apperr.Write(w, apperr.CodeUnauthorized, "authentication required")
				return
			}
			if !allowed[id.Role] && id.Role != storage.RoleAdmin {
				apperr.Write(w, apperr.CodeForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminKey authenticates admin endpoints with a static API key map and
// installs the mapped actor as an admin identity.
func AdminKey(keys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderAdminKey)
			actor, ok := keys[key]
			if key == "" || !ok {
				apperr.Write(w, apperr.CodeUnauthorized, "admin API key required")
				return
			}
			ctx := WithIdentity(r.Context(), Identity{UserID: actor, Role: storage.RoleAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

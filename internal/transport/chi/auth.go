package chi

import (
	"context"
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type tenantKey struct{}

// ContextWithTenant stores the authenticated tenant ID.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext returns the authenticated tenant ID, or "" when none was resolved.
func TenantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey{}).(string)
	return id
}

// BearerAuthMiddleware resolves the tenant from the Bearer token. apiKeys maps key to tenant ID.
// If apiKeys is empty, authentication is disabled and every request runs as defaultTenant.
func BearerAuthMiddleware(apiKeys map[string]string, defaultTenant string) func(http.Handler) http.Handler {
	validKeys := make(map[string]string, len(apiKeys))
	for k, tenantID := range apiKeys {
		if k != "" && tenantID != "" {
			validKeys[k] = tenantID
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled: pass everything through
		if len(validKeys) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if defaultTenant != "" {
					r = r.WithContext(ContextWithTenant(r.Context(), defaultTenant))
				}
				next.ServeHTTP(w, r)
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exempt paths
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorResponseCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			tenantID, ok := validKeys[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrorResponseCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithTenant(r.Context(), tenantID)))
		})
	}
}

package chi

import (
	"context"
	"net/http"
	"strings"
)

// CodeUnauthorized is returned when the caller cannot be mapped to an organization.
const CodeUnauthorized = "Unauthorized"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type orgKey struct{}

// ContextWithOrg stores the caller's organization in the context.
func ContextWithOrg(ctx context.Context, org string) context.Context {
	return context.WithValue(ctx, orgKey{}, org)
}

// OrgFromContext returns the caller's organization.
func OrgFromContext(ctx context.Context) (string, bool) {
	org, ok := ctx.Value(orgKey{}).(string)
	return org, ok && org != ""
}

// BearerAuthMiddleware resolves the Bearer token to an organization and
// stores it in the request context. If apiKeys is empty, every request runs
// as defaultOrg.
func BearerAuthMiddleware(apiKeys map[string]string, defaultOrg string) func(http.Handler) http.Handler {
	orgs := make(map[string]string, len(apiKeys))
	for k, org := range apiKeys {
		if k != "" && org != "" {
			orgs[k] = org
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled: single-tenant local mode
		if len(orgs) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if defaultOrg != "" {
					r = r.WithContext(ContextWithOrg(r.Context(), defaultOrg))
				}
				next.ServeHTTP(w, r)
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			org, ok := orgs[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithOrg(r.Context(), org)))
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/transport"
	"github.com/RenerPires/cfp-energy-technical-test-backend/pkg/logger"
)

// RequirePermission admits principals holding any of perms. It must run after the auth middleware.
func RequirePermission(base *transport.BaseHandler, perms ...authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := authz.PrincipalFromContext(r.Context())
			if !ok {
				base.HandleServiceError(w, r, internal.ErrMissingToken)
				return
			}

			for _, perm := range perms {
				if authz.Can(principal, perm) {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.From(r.Context()).Warn("access denied: missing required permission",
				"principal", principal,
				"required_permissions", perms)
			base.HandleServiceError(w, r, internal.ErrPermissionDenied)
		})
	}
}

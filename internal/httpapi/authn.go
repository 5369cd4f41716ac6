package httpapi

import (
	"errors"
	"net/http"

	"hashvest.io/internal/audit"
	"hashvest.io/internal/auth"
	"hashvest.io/internal/obs"
)

// requireAudience resolves the caller for the given audience and stores the
// principal and raw token on the request context. 401 responses distinguish
// a missing credential from a presented-but-rejected one by code only; the
// rejection reason itself is never exposed.
func (a *API) requireAudience(audience auth.Audience, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, token, err := a.resolver.Resolve(r.Context(), r, audience)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrNoCredential):
				writeError(w, http.StatusUnauthorized, "authentication required", codeAuthRequired)
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrPrincipalNotFound):
				obs.ObserveVerification(string(audience), false)
				// A credential was presented and rejected; absent credentials
				// above leave no trace.
				a.auditEvent(r, audit.ActionTokenRejected, "", map[string]any{
					"path":     r.URL.Path,
					"audience": string(audience),
				})
				writeError(w, http.StatusUnauthorized, "invalid or expired token", codeInvalidToken)
			default:
				writeError(w, http.StatusInternalServerError, "authentication error", codeInternal)
			}
			return
		}
		obs.ObserveVerification(string(audience), true)
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next(w, r.WithContext(ctx))
	}
}

// requireRole gates an already-authenticated handler on a role.
func (a *API) requireRole(required auth.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required", codeAuthRequired)
			return
		}
		if !auth.Authorize(principal, required) {
			code := codeAdminRequired
			if required == auth.RoleSuperAdmin {
				code = codeSuperAdminRequired
			}
			writeError(w, http.StatusForbidden, "insufficient role", code)
			return
		}
		next(w, r)
	}
}

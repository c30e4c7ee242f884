package auth

import "net/http"

// DenyFunc writes the response for a rejected request. status is 401 or 403.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, err error)

// RequireCapability is HTTP middleware that authenticates each request with
// a, checks capability, and attaches the identity to the request context.
//
//	r.With(auth.RequireCapability(authn, caps, auth.CapManageOptions, deny)).Post("/admin-ajax", h)
func RequireCapability(a Authenticator, caps *Capabilities, capability string, deny DenyFunc) func(http.Handler) http.Handler {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, status int, _ error) {
			http.Error(w, http.StatusText(status), status)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r.Context(), r)
			if err != nil {
				deny(w, r, http.StatusUnauthorized, err)
				return
			}
			if err := caps.Require(id, capability); err != nil {
				deny(w, r, http.StatusForbidden, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

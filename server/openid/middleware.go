package openid

import (
	"net/http"
	"slices"
	"strings"
)

// Middleware accepts requests bearing an id token issued by the configured
// provider, restricted to the email whitelist when one is set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if verifier == nil {
			http.Error(w, "openid not configured", http.StatusServiceUnavailable)
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			http.Error(w, "missing id token", http.StatusUnauthorized)
			return
		}

		idToken, err := verifier.Verify(r.Context(), raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		if !allowed(idToken.Claims) {
			http.Error(w, "email not allowed", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func allowed(claims func(v any) error) bool {
	whitelist := whitelist()
	if len(whitelist) == 0 {
		return true
	}

	var c struct {
		Email string `json:"email"`
	}
	if err := claims(&c); err != nil {
		return false
	}

	return slices.Contains(whitelist, c.Email)
}

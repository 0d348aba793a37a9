package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Probes are served without a token.
var Probes = map[string]bool{"/healthz": true, "/metrics": true}

// Authenticate returns middleware that rejects requests without a valid bearer token. Paths in
// Probes pass through untouched.
func Authenticate(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Probes[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "bearer") {
				deny(w, http.StatusUnauthorized, ErrMissingToken.Error())
				return
			}
			claims, err := Parse(token, cfg)
			if err != nil {
				deny(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireScope rejects requests whose claims hold none of scopes. Requests without claims
// pass, so routes keep working when authentication is disabled.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			for _, scope := range scopes {
				if claims.HasScope(scope) {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, http.StatusForbidden, "scope "+scopes[0]+" required")
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

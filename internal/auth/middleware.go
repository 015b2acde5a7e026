package auth

import (
	"encoding/json"
	"net/http"
)

// Middleware authenticates every request and stores the principal in its
// context. Requests carrying an invalid token are rejected with 401.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := i.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Require wraps next so that only the given roles reach it. Anonymous
// callers get 401, authenticated callers with another role get 403.
func Require(next http.Handler, roles ...Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := FromContext(r.Context())
		if p.Allowed(roles...) {
			next.ServeHTTP(w, r)
			return
		}
		if p == Anonymous {
			writeError(w, http.StatusUnauthorized, ErrNoToken)
			return
		}
		writeError(w, http.StatusForbidden, ErrForbidden)
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

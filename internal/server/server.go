// Package server provides shared utilities for the HTTP surface: origin
// validation for WebSocket upgrades and baseline security headers.
package server

import "net/http"

// Origins validates request origins. An empty allowlist permits every origin,
// which is appropriate for local tooling; deployments should restrict it.
type Origins struct {
	Allowed []string
}

// Check reports whether the request's Origin header is acceptable. Requests
// without an Origin header (non-browser clients) are always accepted.
func (o Origins) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(o.Allowed) == 0 {
		return true
	}
	for _, allowed := range o.Allowed {
		if origin == allowed {
			return true
		}
	}
	return false
}

// SecurityHeaders adds baseline security headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

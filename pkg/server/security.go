package server

import (
	"net/http"
)

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME-sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// nothing here is meant to be rendered by a browser
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

		// prices change on every tick
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// Package httpserver owns the http.Server construction so timeouts are
// decided in one place.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for this project. Per-route
// deadlines come from the Timeout middleware; these are the outer bounds.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

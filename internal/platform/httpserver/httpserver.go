// Package httpserver owns the http.Server construction for the wallet's
// request/response transport.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the server behind the wallet's HTTP surface. Header and idle
// timeouts shed slow or abandoned clients; per-request deadlines come from
// the router's timeout middleware, so no overall write timeout is set here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

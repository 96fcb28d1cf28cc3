package httpserver

import (
	"net/http"
	"time"
)

// New builds the gateway's HTTP server. The verification endpoint blocks for
// the duration of a hosted proof session, so no WriteTimeout is set; slow
// header attacks are still cut off by ReadHeaderTimeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

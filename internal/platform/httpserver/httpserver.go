// Package httpserver builds the ledgerd HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with bounded header, read and write times. Handlers
// that block on the ledger must finish inside WriteTimeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       90 * time.Second,
		MaxHeaderBytes:    64 << 10,
	}
}

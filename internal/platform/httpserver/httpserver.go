// Package httpserver builds the API's *http.Server.
package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// New returns a server whose request contexts derive from base, so a
// shutdown signal reaches in-flight handlers. WriteTimeout leaves room for
// multipart uploads of several attachments. Server level errors such as TLS
// handshake failures go to logger at warn.
func New(base context.Context, addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    64 << 10,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

package core

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// Server is the TLS-terminating HTTP server.
// It owns the listening socket and wraps it with TLS exactly once, in
// NewServer, before any connection is accepted. Every accepted connection
// is handled on its own goroutine; a failed handshake or a malformed
// request only ends that connection.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
}

// ServerOptions tunes the accept loop.
type ServerOptions struct {
	// MaxConnections caps concurrently open connections. 0 means unlimited.
	MaxConnections int
}

// NewServer wraps listener with TLS using tlsConfig and prepares to serve
// handler on it. tlsConfig must carry at least one certificate.
func NewServer(listener net.Listener, tlsConfig *tls.Config, handler http.Handler, opts ServerOptions) (*Server, error) {
	if tlsConfig == nil || (len(tlsConfig.Certificates) == 0 && tlsConfig.GetCertificate == nil) {
		return nil, fmt.Errorf("tls config without certificate")
	}

	ln := listener
	if opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, opts.MaxConnections)
	}
	ln = tls.NewListener(ln, tlsConfig)

	s := &Server{listener: ln}
	s.httpServer = &http.Server{
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		// A non-nil empty map disables HTTP/2.
		TLSNextProto: map[string]func(*http.Server, *tls.Conn, http.Handler){},
		ErrorLog:     logger.StdLogger(slog.LevelDebug),
		ConnContext:  s.connContext,
	}
	return s, nil
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve starts accepting connections. It blocks until the listener fails
// or Shutdown is called; in the latter case it returns nil.
func (s *Server) Serve() error {
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active requests to
// finish until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) connContext(ctx context.Context, conn net.Conn) context.Context {
	id := uuid.NewString()
	logger.With("conn_id", id).Debug("Connection accepted", "remote_addr", conn.RemoteAddr())
	return WithConnID(ctx, id)
}

// TLSVersionName returns a human readable TLS protocol version.
func TLSVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLSv1.0"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return fmt.Sprintf("Unknown (%x)", version)
	}
}

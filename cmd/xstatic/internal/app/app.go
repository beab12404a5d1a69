package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/api"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/config"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/core"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/factory"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/static"

	k8s "k8s.io/client-go/kubernetes"
)

const shutdownTimeout = 5 * time.Second

// App is a started but not yet serving xstatic server.
type App struct {
	cfg    *config.Config
	server *core.Server
	files  *static.Handler
	health *api.HealthServer
}

// New performs every startup step that can fail: loading the certificate,
// opening the serving root and binding the listener. Nothing is served
// until Serve is called.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	for _, name := range cfg.ServedKeyFiles() {
		logger.Warn("TLS key material is inside the serving root and can be downloaded", "file", name, "root", cfg.Root)
	}

	var client k8s.Interface
	if cfg.TLSMode == config.TLSModeKubernetes {
		var err error
		client, err = factory.NewKubeClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	tlsFactory := factory.NewTLSFactory(cfg)
	provider, err := tlsFactory.Create(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS provider: %w", err)
	}
	cert, err := tlsFactory.EnsureCertificate(ctx, provider)
	if err != nil {
		return nil, err
	}

	files, handler, err := factory.NewHandlerFactory(cfg).Create()
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		files.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	server, err := core.NewServer(listener, factory.TLSConfig(cert), handler, core.ServerOptions{
		MaxConnections: cfg.MaxConnections,
	})
	if err != nil {
		listener.Close()
		files.Close()
		return nil, err
	}

	a := &App{cfg: cfg, server: server, files: files}

	if cfg.HealthAddr != "" {
		a.health = api.NewHealthServer(cfg.HealthAddr)
		if err := a.health.Start(); err != nil {
			listener.Close()
			files.Close()
			return nil, fmt.Errorf("failed to start health server on %s: %w", cfg.HealthAddr, err)
		}
	}

	return a, nil
}

// Addr returns the address of the TLS listener.
func (a *App) Addr() net.Addr {
	return a.server.Addr()
}

// HealthAddr returns the address of the health server, or nil if disabled.
func (a *App) HealthAddr() net.Addr {
	if a.health == nil {
		return nil
	}
	return a.health.Addr()
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (a *App) Serve(ctx context.Context) error {
	defer a.files.Close()

	host, port, err := net.SplitHostPort(a.Addr().String())
	if err != nil {
		host, port = a.Addr().String(), ""
	}
	logger.Info(fmt.Sprintf("Serving HTTPS on %s port %s...", host, port), "root", a.files.Dir())

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve()
	}()

	if a.health != nil {
		a.health.SetReady(true)
	}

	select {
	case err := <-errCh:
		a.stopHealth()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	if a.health != nil {
		a.health.SetReady(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(shutdownCtx)
	serveErr := <-errCh
	a.stopHealth()

	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return serveErr
}

func (a *App) stopHealth() {
	if a.health == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.health.Stop(ctx); err != nil {
		logger.Warn("Health server shutdown failed", "error", err)
	}
}

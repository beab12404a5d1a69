package factory

import (
	"net/http"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/config"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/middleware"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/static"
)

// HandlerFactory builds the request handler chain
type HandlerFactory struct {
	cfg *config.Config
}

// NewHandlerFactory creates a new handler factory
func NewHandlerFactory(cfg *config.Config) *HandlerFactory {
	return &HandlerFactory{cfg: cfg}
}

// Create opens the serving root and wraps the static handler with rate
// limiting (when configured) and access logging. The returned
// *static.Handler must be closed when the server stops.
func (f *HandlerFactory) Create() (*static.Handler, http.Handler, error) {
	files, err := static.NewHandler(f.cfg.Root)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Serving files", "root", files.Dir())

	var handler http.Handler = files
	if f.cfg.RateLimit > 0 {
		logger.Debug("Rate limiting enabled", "rps", f.cfg.RateLimit, "burst", f.cfg.RateBurst)
		handler = middleware.RateLimit(f.cfg.RateLimit, f.cfg.RateBurst, handler)
	}
	handler = middleware.AccessLog(handler)

	return files, handler, nil
}

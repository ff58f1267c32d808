package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/karlokarate/nxcatalog/internal/config"
)

// NewServer builds an *http.Server wrapping NewRouter's chi handler,
// satisfying internal/supervisor/services.HTTPServer.
func NewServer(cfg config.ServerConfig, h *Handler) *http.Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      NewRouter(h, cfg),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  2 * timeout,
	}
}

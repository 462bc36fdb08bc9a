package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/readalong/internal/api"
	"github.com/listenupapp/readalong/internal/config"
	"github.com/listenupapp/readalong/internal/library"
	"github.com/listenupapp/readalong/internal/logger"
)

// Version is reported in the OpenAPI document. Set with -ldflags.
var Version = "dev"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.ServerConfig](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	services := &api.Services{
		Library:        do.MustInvoke[*library.Library](i),
		PDF:            do.MustInvoke[*PDFServiceHandle](i).Service,
		Jobs:           do.MustInvoke[*JobStoreHandle](i).Store,
		Search:         do.MustInvoke[*SearchIndexHandle](i).SearchIndex,
		SSE:            sseHandle.Manager,
		ProcessLimiter: do.MustInvoke[*RateLimiterHandle](i).KeyedRateLimiter,
	}

	handler := api.NewServer(services, Version, log.Component("api"))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}

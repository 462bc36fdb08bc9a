// Package di provides dependency injection configuration for the readalong server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/readalong/internal/config"
	"github.com/listenupapp/readalong/internal/di/providers"
	"github.com/listenupapp/readalong/internal/library"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/processor"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideLibrary)
	do.Provide(injector, providers.ProvideJobStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Downstream services
	do.Provide(injector, providers.ProvidePDFService)
	do.Provide(injector, providers.ProvideProcessLimiter)

	// Workers
	do.Provide(injector, providers.ProvideEventProcessor)
	do.Provide(injector, providers.ProvideFileWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.ServerConfig](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*library.Library](injector)
	_ = do.MustInvoke[*providers.JobStoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.PDFServiceHandle](injector)
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*processor.EventProcessor](injector)

	// Index what is already on disk before watching for changes.
	providers.RunInitialReindex(injector)

	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}

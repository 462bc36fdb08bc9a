// Package providers contains dependency injection providers for the readalong server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/readalong/internal/config"
	"github.com/listenupapp/readalong/internal/logger"
)

// ProvideConfig provides the server configuration from flags, environment and .env.
func ProvideConfig(i do.Injector) (*config.ServerConfig, error) {
	return config.LoadServerConfig(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.ServerConfig](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting readalong server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"audiobooks_path", cfg.Library.AudiobooksPath,
		"pdf_service", cfg.PDFService.URL,
		"data_path", cfg.Data.Path,
	)

	return log, nil
}

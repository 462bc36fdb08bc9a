package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/listenupapp/readalong/internal/config"
	"github.com/listenupapp/readalong/internal/library"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/sse"
	"github.com/listenupapp/readalong/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// ProvideLibrary provides the on-disk library, creating its directories.
func ProvideLibrary(i do.Injector) (*library.Library, error) {
	cfg := do.MustInvoke[*config.ServerConfig](i)
	log := do.MustInvoke[*logger.Logger](i)

	lib := library.New(library.Config{
		AudiobooksPath: cfg.Library.AudiobooksPath,
		ObsidianPath:   cfg.Library.ObsidianPath,
		StandalonePath: cfg.Library.StandalonePath,
		PDFInputPath:   cfg.Library.PDFInputPath,
		PDFCachePath:   cfg.Library.PDFCachePath,
	}, log.Component("library"))
	if err := lib.EnsureDirs(); err != nil {
		return nil, err
	}

	log.Info("Library ready",
		"audiobooks", cfg.Library.AudiobooksPath,
		"obsidian", cfg.Library.ObsidianPath,
		"pdf_input", cfg.Library.PDFInputPath,
	)
	return lib, nil
}

// JobStoreHandle wraps the job database with shutdown capability.
type JobStoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *JobStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideJobStore provides the SQLite job database.
func ProvideJobStore(i do.Injector) (*JobStoreHandle, error) {
	cfg := do.MustInvoke[*config.ServerConfig](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.Path, "jobs.db")
	db, err := sqlite.Open(dbPath, log.Component("jobs"))
	if err != nil {
		return nil, err
	}

	log.Info("Job database initialized", "path", dbPath)
	return &JobStoreHandle{Store: db}, nil
}

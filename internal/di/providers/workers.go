package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/readalong/internal/config"
	"github.com/listenupapp/readalong/internal/library"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/processor"
	"github.com/listenupapp/readalong/internal/watcher"
)

// FileWatcherHandle wraps the file watcher with shutdown capability.
// Watcher is nil when watching is disabled.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	h.cancel()
	if h.Watcher == nil {
		return nil
	}
	return h.Watcher.Stop()
}

// ProvideFileWatcher provides the watcher that feeds manifest and citation
// changes to the event processor.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.ServerConfig](i)
	log := do.MustInvoke[*logger.Logger](i)
	eventProcessor := do.MustInvoke[*processor.EventProcessor](i)

	ctx, cancel := context.WithCancel(context.Background())
	if !cfg.Library.Watch {
		log.Info("File watching disabled")
		return &FileWatcherHandle{cancel: cancel}, nil
	}

	w, err := watcher.New(log.Component("watcher"), watcher.Options{
		IncludePatterns: []string{library.ManifestFile, "*_citation_ready.json"},
	})
	if err != nil {
		cancel()
		return nil, err
	}

	for _, dir := range []string{cfg.Library.AudiobooksPath, cfg.Library.PDFCachePath} {
		if err := w.Watch(dir); err != nil {
			cancel()
			_ = w.Stop()
			return nil, err
		}
		log.Info("Watching directory", "path", dir)
	}

	// Start in background
	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("File watcher error", "error", err)
		}
	}()

	// Process events in background
	go eventProcessor.Run(ctx, w)

	log.Info("File watcher started")

	return &FileWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}

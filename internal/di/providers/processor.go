package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/readalong/internal/library"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/processor"
)

// ProvideEventProcessor provides the manifest event processor.
func ProvideEventProcessor(i do.Injector) (*processor.EventProcessor, error) {
	lib := do.MustInvoke[*library.Library](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	jobsHandle := do.MustInvoke[*JobStoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return processor.NewEventProcessor(processor.Options{
		Library: lib,
		Index:   indexHandle.SearchIndex,
		Jobs:    jobsHandle.Store,
		Events:  sseHandle.Manager,
		Logger:  log.Component("processor"),
	}), nil
}

// RunInitialReindex indexes every audiobook already on disk.
// Should be called after all dependencies are wired.
func RunInitialReindex(i do.Injector) {
	ep := do.MustInvoke[*processor.EventProcessor](i)
	log := do.MustInvoke[*logger.Logger](i)

	start := time.Now()
	n, err := ep.ReindexAll(context.Background())
	if err != nil {
		log.Warn("Initial reindex incomplete", "books", n, "error", err)
		return
	}
	log.Info("Initial reindex completed", "books", n, "duration", time.Since(start))
}

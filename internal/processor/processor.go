package processor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/library"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/search"
	"github.com/listenupapp/readalong/internal/sse"
	"github.com/listenupapp/readalong/internal/watcher"
)

// Library reads audiobooks from disk.
type Library interface {
	Audiobooks(ctx context.Context) ([]domain.AudiobookSummary, error)
	Manifest(bookID string) (*domain.Manifest, error)
	CitationData(bookID string) (*library.CitationData, error)
}

// Indexer stores chunk text for search.
type Indexer interface {
	IndexDocuments(docs []*search.ChunkDocument) error
	DeleteBook(bookID string) (int, error)
}

// JobCompleter marks processing jobs done once their audiobook is complete.
type JobCompleter interface {
	CompleteJobsForBook(ctx context.Context, bookID string) (int64, error)
}

// Broadcaster delivers events to connected clients.
type Broadcaster interface {
	Emit(event sse.Event)
}

// EventSource yields settled file events.
type EventSource interface {
	Events() <-chan watcher.Event
	Errors() <-chan error
}

// Options wires the processor. Index, Jobs and Events may be nil.
type Options struct {
	Library Library
	Index   Indexer
	Jobs    JobCompleter
	Events  Broadcaster
	Logger  *slog.Logger
}

// bookState is what the processor last saw of a book.
type bookState struct {
	ready    int
	complete bool
}

// EventProcessor keeps the search index, job table and SSE clients in step
// with the manifests the processing service writes.
//
// Every change to a book re-reads its manifest in full, so handling the same
// event twice is harmless. Per-book locks serialize work on one book.
type EventProcessor struct {
	library Library
	index   Indexer
	jobs    JobCompleter
	events  Broadcaster
	logger  *slog.Logger

	bookLocks *SyncMap[string, *sync.Mutex]
	books     *SyncMap[string, bookState]
}

// NewEventProcessor creates a new EventProcessor instance.
func NewEventProcessor(opts Options) *EventProcessor {
	return &EventProcessor{
		library:   opts.Library,
		index:     opts.Index,
		jobs:      opts.Jobs,
		events:    opts.Events,
		logger:    logger.OrDiscard(opts.Logger),
		bookLocks: NewSyncMap[string, *sync.Mutex](),
		books:     NewSyncMap[string, bookState](),
	}
}

// Run processes events from src until ctx is canceled. Failures are logged
// and do not stop the loop.
func (ep *EventProcessor) Run(ctx context.Context, src EventSource) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-src.Events():
			if !ok {
				return
			}
			if err := ep.ProcessEvent(ctx, event); err != nil {
				ep.logger.Warn("failed to process file event",
					"path", event.Path,
					"type", event.Type.String(),
					"error", err,
				)
			}
		case err, ok := <-src.Errors():
			if !ok {
				return
			}
			ep.logger.Warn("file watcher error", "error", err)
		}
	}
}

// ProcessEvent applies one file event.
func (ep *EventProcessor) ProcessEvent(ctx context.Context, event watcher.Event) error {
	fileType, bookID := classifyFile(event.Path)
	if fileType == FileTypeIgnored {
		return nil
	}

	ep.logger.Debug("processing event",
		"type", event.Type.String(),
		"file_type", fileType.String(),
		"book_id", bookID,
	)

	lock := ep.getBookLock(bookID)
	lock.Lock()
	defer lock.Unlock()

	if event.Type == watcher.EventRemoved && fileType == FileTypeManifest {
		return ep.removeBook(bookID)
	}
	// A removed citation cache falls back to manifest snippets.
	return ep.reindex(ctx, bookID)
}

// Reindex refreshes one book from its manifest.
func (ep *EventProcessor) Reindex(ctx context.Context, bookID string) error {
	lock := ep.getBookLock(bookID)
	lock.Lock()
	defer lock.Unlock()
	return ep.reindex(ctx, bookID)
}

// ReindexAll refreshes every audiobook in the library and returns how many
// were indexed. Failing books are reported together.
func (ep *EventProcessor) ReindexAll(ctx context.Context) (int, error) {
	books, err := ep.library.Audiobooks(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	indexed := 0
	for _, b := range books {
		if ctx.Err() != nil {
			return indexed, ctx.Err()
		}
		if err := ep.Reindex(ctx, b.BookID); err != nil {
			errs = append(errs, err)
			continue
		}
		indexed++
	}

	ep.logger.Info("library indexed", "books", indexed, "failed", len(errs))
	return indexed, errors.Join(errs...)
}

// reindex must be called with the book lock held.
func (ep *EventProcessor) reindex(ctx context.Context, bookID string) error {
	m, err := ep.library.Manifest(bookID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			// Citation cache written before the first manifest.
			ep.logger.Debug("no manifest yet", "book_id", bookID)
			return nil
		}
		return err
	}
	if err := m.Validate(); err != nil {
		return errors.Wrapf(err, errors.CodeValidation, "manifest of %s", m.BookID)
	}

	var texts map[int]string
	if data, err := ep.library.CitationData(m.BookID); err == nil {
		texts = data.ChunkTexts()
	}

	if ep.index != nil {
		if err := ep.index.IndexDocuments(search.DocumentsFromManifest(m, texts)); err != nil {
			return errors.Wrapf(err, errors.CodeInternal, "index %s", m.BookID)
		}
	}

	prev, known := ep.books.Load(m.BookID)
	ep.books.Store(m.BookID, bookState{ready: len(m.ReadyChunks), complete: m.IsComplete})

	summary := library.Summarize(m.BookID, m)
	newChunks := len(m.ReadyChunks) - prev.ready

	if !known || newChunks > 0 {
		ep.logger.Info("audiobook updated",
			"book_id", m.BookID,
			"ready", len(m.ReadyChunks),
			"total", m.TotalChunks,
		)
		ep.emit(sse.NewAudiobookUpdatedEvent(m, summary, max(newChunks, 0)))
	}

	if m.IsComplete && !prev.complete {
		if ep.jobs != nil {
			n, err := ep.jobs.CompleteJobsForBook(ctx, m.BookID)
			if err != nil {
				ep.logger.Warn("failed to complete jobs", "book_id", m.BookID, "error", err)
			} else if n > 0 {
				ep.logger.Info("jobs completed", "book_id", m.BookID, "count", n)
			}
		}
		ep.emit(sse.NewAudiobookCompletedEvent(m, summary))
	}
	return nil
}

// removeBook must be called with the book lock held.
func (ep *EventProcessor) removeBook(bookID string) error {
	if ep.index != nil {
		n, err := ep.index.DeleteBook(bookID)
		if err != nil {
			return errors.Wrapf(err, errors.CodeInternal, "remove %s from index", bookID)
		}
		ep.logger.Info("audiobook removed", "book_id", bookID, "documents", n)
	}
	ep.books.Delete(bookID)
	ep.emit(sse.NewAudiobookRemovedEvent(bookID))
	return nil
}

func (ep *EventProcessor) emit(event sse.Event) {
	if ep.events != nil {
		ep.events.Emit(event)
	}
}

// getBookLock gets or creates the mutex for a book.
func (ep *EventProcessor) getBookLock(bookID string) *sync.Mutex {
	if lock, ok := ep.bookLocks.Load(bookID); ok {
		return lock
	}
	actual, _ := ep.bookLocks.LoadOrStore(bookID, &sync.Mutex{})
	return actual
}

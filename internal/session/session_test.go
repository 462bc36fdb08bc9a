package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/document"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/engine"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
	"github.com/listenupapp/readalong/internal/testutil"
)

// fakeAPI serves manifests, chunks and documents from memory.
type fakeAPI struct {
	mu        sync.Mutex
	manifests map[string][]*domain.Manifest
	calls     map[string]int
	gates     map[string]chan struct{}
	pdf       []byte
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		manifests: map[string][]*domain.Manifest{},
		calls:     map[string]int{},
		gates:     map[string]chan struct{}{},
		pdf:       testutil.BlankPDF([2]float64{600, 800}, [2]float64{600, 800}, [2]float64{600, 800}),
	}
}

// serve makes successive Status calls for bookID return each manifest in
// turn, repeating the last one.
func (a *fakeAPI) serve(bookID string, ms ...*domain.Manifest) {
	a.mu.Lock()
	a.manifests[bookID] = ms
	a.mu.Unlock()
}

func (a *fakeAPI) gate(bookID string) chan struct{} {
	ch := make(chan struct{})
	a.mu.Lock()
	a.gates[bookID] = ch
	a.mu.Unlock()
	return ch
}

func (a *fakeAPI) Status(ctx context.Context, bookID string) (*domain.Manifest, error) {
	a.mu.Lock()
	gate := a.gates[bookID]
	delete(a.gates, bookID)
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	ms, ok := a.manifests[bookID]
	if !ok {
		return nil, errors.NotFoundf("Audiobook '%s' not found", bookID)
	}
	i := min(a.calls[bookID], len(ms)-1)
	a.calls[bookID]++
	return ms[i], nil
}

func (a *fakeAPI) Open(_ context.Context, url string) (io.ReadCloser, error) {
	if !strings.Contains(url, ".wav") {
		return nil, errors.NotFoundf("%s", url)
	}
	return io.NopCloser(bytes.NewReader(testutil.WAV(10))), nil
}

func (a *fakeAPI) ChunkURL(bookID, filename string) (string, error) {
	return fmt.Sprintf("/api/audiobook/%s/play/%s", bookID, filename), nil
}

func (a *fakeAPI) AudioURL(filename, source string) (string, error) {
	return "/api/audio/" + filename + "?source=" + source, nil
}

func (a *fakeAPI) FetchPDF(context.Context, string) ([]byte, error) {
	return a.pdf, nil
}

func (a *fakeAPI) Citation(_ context.Context, bookID string, t float64) (*domain.Citation, error) {
	return &domain.Citation{Citation: fmt.Sprintf("%s@%.1f", bookID, t)}, nil
}

func (a *fakeAPI) Search(_ context.Context, bookID, query string, _ int) ([]domain.SearchHit, error) {
	return []domain.SearchHit{{BookID: bookID, Snippet: query, StartTime: 25}}, nil
}

type memPrefs struct {
	mu    sync.Mutex
	saved map[string]*domain.BookPreferences
	last  string
}

func newMemPrefs() *memPrefs {
	return &memPrefs{saved: map[string]*domain.BookPreferences{}}
}

func (p *memPrefs) LoadBookPreferences(_ context.Context, bookID string, defaults *domain.BookPreferences) (*domain.BookPreferences, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.saved[bookID]; ok {
		cp := *v
		return &cp, nil
	}
	cp := *defaults
	return &cp, nil
}

func (p *memPrefs) UpsertBookPreferences(_ context.Context, prefs *domain.BookPreferences) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *prefs
	p.saved[prefs.BookID] = &cp
	return nil
}

func (p *memPrefs) SetLastBook(_ context.Context, bookID string) error {
	p.mu.Lock()
	p.last = bookID
	p.mu.Unlock()
	return nil
}

func newTestSession(t *testing.T, api *fakeAPI, prefs Preferences) *Session {
	t.Helper()
	s, err := New(api, prefs, Options{
		Engine:            engine.KindPlain,
		Mode:              domain.ModeSequenced,
		ClickToSeek:       true,
		Container:         document.Viewport{Width: 600, Height: 800},
		PollInterval:      time.Millisecond,
		PollMaxIterations: 200,
		ClockOptions:      []engine.ClockOption{engine.WithTick(time.Hour)},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Destroy(context.Background()) })
	return s
}

func TestSession_OpenBeforeInitialize(t *testing.T) {
	s, err := New(newFakeAPI(), nil, Options{}, nil)
	require.NoError(t, err)
	err = s.OpenBook(context.Background(), "book")
	assert.True(t, errors.Is(err, errors.ErrNotInitialized))
}

func TestSession_OpenBookRestoresPreferences(t *testing.T) {
	api := newFakeAPI()
	m := testutil.Manifest("book", 4, 4, 10)
	m.Metadata.SourceFilename = "book.pdf"
	api.serve("book", m)

	prefs := newMemPrefs()
	prefs.saved["book"] = &domain.BookPreferences{BookID: "book", PlaybackRate: 1.5, Volume: 0.3, ChunkIndex: 2, Position: 4}

	s := newTestSession(t, api, prefs)
	require.NoError(t, s.OpenBook(context.Background(), "book"))
	s.Document().Wait()

	st := s.Controller().State()
	assert.Equal(t, 2, st.ChunkIndex)
	assert.InDelta(t, 24.0, st.BookTime, 0.01)
	assert.InDelta(t, 1.5, s.Engine().Rate(), 0.0001)
	assert.InDelta(t, 0.3, s.Engine().Volume(), 0.0001)
	assert.Equal(t, "book", prefs.last)

	view := s.Document().View()
	assert.Equal(t, 3, view.TotalPages)
	assert.Equal(t, 2, view.CurrentPage, "page follows the resume position")
}

func TestSession_OpenBookKeepsConfiguredTransport(t *testing.T) {
	for _, tc := range []struct {
		name  string
		prefs Preferences
	}{
		{"empty store", newMemPrefs()},
		{"no store", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			api.serve("book", testutil.Manifest("book", 2, 2, 10))

			s, err := New(api, tc.prefs, Options{
				Engine:       engine.KindPlain,
				Rate:         1.5,
				Volume:       0.3,
				PollInterval: time.Hour,
				ClockOptions: []engine.ClockOption{engine.WithTick(time.Hour)},
			}, nil)
			require.NoError(t, err)
			ctx := context.Background()
			require.NoError(t, s.Initialize(ctx))
			t.Cleanup(func() { _ = s.Destroy(ctx) })

			require.NoError(t, s.OpenBook(ctx, "book"))

			st := s.Controller().State()
			assert.InDelta(t, 1.5, st.PlaybackRate, 0.0001)
			assert.InDelta(t, 0.3, st.Volume, 0.0001)
			assert.InDelta(t, 1.5, s.Engine().Rate(), 0.0001)
			assert.InDelta(t, 0.3, s.Engine().Volume(), 0.0001)
		})
	}
}

func TestSession_FailedOpenKeepsPreviousBook(t *testing.T) {
	api := newFakeAPI()
	api.serve("book", testutil.Manifest("book", 3, 3, 10))
	prefs := newMemPrefs()
	s := newTestSession(t, api, prefs)
	ctx := context.Background()

	require.NoError(t, s.OpenBook(ctx, "book"))
	require.NoError(t, s.Controller().LoadChunk(ctx, 1))

	err := s.OpenBook(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, "book", s.BookID())
	require.NotNil(t, s.Manifest())
	assert.Equal(t, "book", s.Manifest().BookID)

	require.NoError(t, s.SavePreferences(ctx))
	assert.NotContains(t, prefs.saved, "missing")
	require.Contains(t, prefs.saved, "book")
	assert.Equal(t, 1, prefs.saved["book"].ChunkIndex)
}

func TestSession_StaleManifestDiscarded(t *testing.T) {
	api := newFakeAPI()
	api.serve("slow", testutil.Manifest("slow", 2, 2, 10))
	api.serve("fast", testutil.Manifest("fast", 3, 3, 10))
	release := api.gate("slow")

	s := newTestSession(t, api, nil)

	done := make(chan error, 1)
	go func() { done <- s.OpenBook(context.Background(), "slow") }()
	require.Eventually(t, func() bool { return s.BookID() == "slow" }, time.Second, time.Millisecond)

	require.NoError(t, s.OpenBook(context.Background(), "fast"))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, "fast", s.BookID())
	assert.Equal(t, "fast", s.Manifest().BookID)
	assert.Len(t, s.Controller().Chunks(), 3)
}

func TestSession_PollingGrowsManifest(t *testing.T) {
	api := newFakeAPI()
	api.serve("book",
		testutil.Manifest("book", 1, 3, 10),
		testutil.Manifest("book", 2, 3, 10),
		testutil.Manifest("book", 3, 3, 10),
	)

	s := newTestSession(t, api, nil)
	require.NoError(t, s.OpenBook(context.Background(), "book"))

	require.Eventually(t, func() bool {
		m := s.Manifest()
		return m != nil && m.IsComplete
	}, 2*time.Second, time.Millisecond)
	assert.Len(t, s.Controller().Chunks(), 3)
	require.Eventually(t, func() bool { return !s.currentPoller().Running() }, time.Second, time.Millisecond)
}

func TestSession_ClickToSeek(t *testing.T) {
	api := newFakeAPI()
	api.serve("book", testutil.Manifest("book", 6, 6, 10))
	s := newTestSession(t, api, nil)
	ctx := context.Background()
	require.NoError(t, s.OpenBook(ctx, "book"))

	require.NoError(t, s.Document().GoToPage(3))
	start, err := s.Document().Click(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, start, 0.0001)
	assert.Equal(t, 4, s.Controller().State().ChunkIndex)
}

func TestSession_CitationAndSearch(t *testing.T) {
	api := newFakeAPI()
	api.serve("book", testutil.Manifest("book", 4, 4, 10))
	s := newTestSession(t, api, nil)
	ctx := context.Background()

	_, err := s.Citation(ctx)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	require.NoError(t, s.OpenBook(ctx, "book"))
	c, err := s.Citation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "book@0.0", c.Citation)

	hits, err := s.Search(ctx, "whale", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.NoError(t, s.JumpTo(ctx, hits[0]))
	assert.Equal(t, 2, s.Controller().State().ChunkIndex)
}

func TestSession_DestroySavesAndReleases(t *testing.T) {
	api := newFakeAPI()
	api.serve("book", testutil.Manifest("book", 2, 4, 10))
	prefs := newMemPrefs()

	s, err := New(api, prefs, Options{
		Engine:       engine.KindWaveform,
		PollInterval: time.Hour,
		ClockOptions: []engine.ClockOption{engine.WithTick(time.Hour)},
	}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.OpenBook(ctx, "book"))
	_, _ = s.Controller().SetRate(0.75)
	require.True(t, s.currentPoller().Running())

	require.NoError(t, s.Destroy(ctx))

	assert.False(t, s.currentPoller().Running())
	for _, ch := range events.EngineChannels() {
		assert.Zero(t, s.Dispatcher().Len(ch), ch)
	}
	assert.True(t, errors.Is(s.Engine().Play(ctx), errors.ErrNotInitialized))
	require.Contains(t, prefs.saved, "book")
	assert.InDelta(t, 0.75, prefs.saved["book"].PlaybackRate, 0.0001)

	assert.True(t, errors.Is(s.OpenBook(ctx, "book"), errors.ErrValidation))
	require.NoError(t, s.Destroy(ctx))
}

func TestSession_OpenFile(t *testing.T) {
	api := newFakeAPI()
	s := newTestSession(t, api, nil)

	require.NoError(t, s.OpenFile(context.Background(), domain.SourceObsidian, "note.wav", false))
	st := s.Controller().State()
	assert.Equal(t, "/api/audio/note.wav?source=obsidian", st.Source)
	assert.InDelta(t, 10.0, st.Duration, 0.01)
	assert.Empty(t, s.BookID())
}

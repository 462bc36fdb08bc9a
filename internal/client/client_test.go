package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/testutil"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestClient_Status(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/audiobook/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "My_Book", r.PathValue("id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"book_id": "My_Book",
			"metadata": {"title": "My Book", "author": "A. Writer"},
			"total_chunks": 4,
			"ready_chunks": [
				{"chunk_id": 0, "filename": "chunk_0000_p1.wav", "page": 1, "start_time": 0, "duration_seconds": 5.5, "text_snippet": "It was..."},
				{"chunk_id": 1, "filename": "chunk_0001_p2.wav", "page": 2, "start_time": 5.5, "duration_seconds": 4}
			],
			"progress_percentage": 50,
			"is_complete": false
		}`)
	})
	c := newTestClient(t, mux)

	m, err := c.Status(context.Background(), "My_Book")
	require.NoError(t, err)

	assert.Equal(t, "My Book", m.Metadata.Title)
	require.Len(t, m.ReadyChunks, 2)
	assert.InDelta(t, 5.5, m.ReadyChunks[0].Duration, 0.0001)
	assert.Equal(t, 2, m.ReadyChunks[1].Page)
	assert.NoError(t, m.Validate())
}

func TestClient_TransportErrorCarriesDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail": "Audiobook 'nope' not found"}`)
	}))

	_, err := c.Status(context.Background(), "nope")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusNotFound, terr.Status)
	assert.Equal(t, "Audiobook 'nope' not found", terr.Message())
	assert.True(t, errors.Is(err, errors.ErrTransport))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.False(t, errors.Is(err, errors.ErrValidation))
}

func TestClient_ProcessPDF(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/process_pdf", r.URL.Path)
		assert.Equal(t, "book.pdf", r.URL.Query().Get("filename"))
		_, _ = io.WriteString(w, `{"status": "processing_started", "filename": "book.pdf"}`)
	}))

	res, err := c.ProcessPDF(context.Background(), "book.pdf")
	require.NoError(t, err)
	assert.Equal(t, "processing_started", res.Status)

	_, err = c.ProcessPDF(context.Background(), "book.txt")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestClient_ChunkURLSanitizes(t *testing.T) {
	c, err := New(Config{BaseURL: "http://audio.local:8000/base"})
	require.NoError(t, err)

	u, err := c.ChunkURL("My_Book", "../../chunk_0001.wav")
	require.NoError(t, err)
	assert.Equal(t, "http://audio.local:8000/base/api/audiobook/My_Book/play/....chunk_0001.wav", u)

	_, err = c.ChunkURL("My_Book", "chunk.mp3")
	assert.Error(t, err)

	u, err = c.AudioURL("talk.wav", "obsidian")
	require.NoError(t, err)
	assert.Equal(t, "http://audio.local:8000/base/api/audio/talk.wav?source=obsidian", u)
}

func TestClient_OpenStreamsChunk(t *testing.T) {
	wav := testutil.WAV(1)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/audiobook/b/play/c.wav", r.URL.Path)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	}))

	u, err := c.ChunkURL("b", "c.wav")
	require.NoError(t, err)
	rc, err := c.Open(context.Background(), u)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, wav, got)
}

func TestClient_Listings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/audio_sources", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"sources": ["audiobooks", "obsidian", "standalone"]}`)
	})
	mux.HandleFunc("GET /api/list_audio", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("source") != "obsidian" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail": "Invalid audio source specified."}`)
			return
		}
		_, _ = io.WriteString(w, `{"files": [{"name": "note.wav", "size_bytes": 1024, "type": "file"}], "source": "obsidian"}`)
	})
	mux.HandleFunc("GET /api/available_pdfs", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"available_pdfs": [{"filename": "a.pdf", "size_bytes": 2048, "size_mb": 0.0}]}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	sources, err := c.AudioSources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 3)

	files, err := c.ListAudio(ctx, "obsidian")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(1024), files[0].SizeBytes)

	_, err = c.ListAudio(ctx, "bogus")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	pdfs, err := c.AvailablePDFs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", pdfs[0].Filename)
}

func TestDetailFrom(t *testing.T) {
	assert.Equal(t, "boom", detailFrom([]byte(`{"detail":"boom"}`)))
	assert.Equal(t, "plain text", detailFrom([]byte("plain text\n")))
	assert.Equal(t, "bad input", detailFrom([]byte(`{"title":"Bad Request","message":"bad input"}`)))
}

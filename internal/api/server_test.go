package api

import (
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/library"
	"github.com/listenupapp/readalong/internal/pdfservice"
	"github.com/listenupapp/readalong/internal/search"
	"github.com/listenupapp/readalong/internal/sse"
	"github.com/listenupapp/readalong/internal/store/sqlite"
	"github.com/listenupapp/readalong/internal/testutil"
)

// testServer wraps Server with test utilities.
type testServer struct {
	*Server
	api  humatest.TestAPI
	dirs library.Config
}

// setupTestServer builds a server over temporary directories with a job
// database, a search index and an SSE manager. configure may adjust the
// services before routes are registered.
func setupTestServer(t *testing.T, configure ...func(*Services)) *testServer {
	t.Helper()
	root := t.TempDir()

	dirs := library.Config{
		AudiobooksPath: filepath.Join(root, "outputs", "audiobooks"),
		ObsidianPath:   filepath.Join(root, "obsidian_audio"),
		StandalonePath: filepath.Join(root, "outputs"),
		PDFInputPath:   filepath.Join(root, "pdf_input"),
		PDFCachePath:   filepath.Join(root, "pdf_cache"),
	}
	lib := library.New(dirs, nil)
	require.NoError(t, lib.EnsureDirs())

	jobs, err := sqlite.Open(filepath.Join(root, "jobs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobs.Close() })

	index, err := search.NewSearchIndex(search.Options{DataPath: filepath.Join(root, "search")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	services := &Services{
		Library: lib,
		Jobs:    jobs,
		Search:  index,
		SSE:     sse.NewManager(nil),
	}
	for _, fn := range configure {
		fn(services)
	}

	s := NewServer(services, "test", nil)
	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
		dirs:   dirs,
	}
}

// withPDFService points the server at a fake processing service.
func withPDFService(t *testing.T, url string) func(*Services) {
	t.Helper()
	return func(s *Services) {
		svc, err := pdfservice.New(pdfservice.Config{URL: url})
		require.NoError(t, err)
		s.PDF = svc
	}
}

// fakePDFService mimics the processing service. Documents named broken.pdf
// are rejected with a 422.
func fakePDFService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /docs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/v1/process/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.PathValue("name") == "broken.pdf" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":"Document is encrypted"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"processing_started","filename":"` + r.PathValue("name") + `"}`))
	})
	mux.HandleFunc("GET /api/v1/document/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != "remote.pdf" {
			http.Error(w, `{"detail":"Document not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("ETag", `"remote-1"`)
		w.Header().Set("X-Internal", "secret")
		_, _ = w.Write(testutil.BlankPDF())
	})
	mux.HandleFunc("GET /api/v1/citation/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.MarshalWrite(w, domain.Citation{
			Citation:     "Remote Author - " + r.PathValue("id") + ", p.4, ¶2, sent.1",
			Timestamp:    "0:" + r.URL.Query().Get("timestamp"),
			Page:         4,
			Block:        2,
			SentenceText: "From the service.",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// deadURL returns the address of a server that is no longer listening.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func (ts *testServer) writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func (ts *testServer) writeManifest(t *testing.T, m *domain.Manifest) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	ts.writeFile(t, filepath.Join(ts.dirs.AudiobooksPath, m.BookID, library.ManifestFile), data)
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

type errorBody struct {
	Detail string `json:"detail"`
}

func detail(t *testing.T, body []byte) string {
	t.Helper()
	return decode[errorBody](t, body).Detail
}

func TestHealthCheck_Healthy(t *testing.T) {
	ts := setupTestServer(t, withPDFService(t, fakePDFService(t).URL))

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 4)
	assert.Equal(t, "no connected clients", health.Components["sse"].Message)
	assert.Equal(t, "0 chunks indexed", health.Components["search"].Message)
}

func TestHealthCheck_DegradedWithoutPDFService(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "degraded", health.Components["pdf_service"].Status)
}

func TestHealthCheck_DegradedWhenPDFServiceDown(t *testing.T) {
	ts := setupTestServer(t, withPDFService(t, deadURL(t)))

	health := decode[HealthResponse](t, ts.api.Get("/health").Body.Bytes())
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, msgPDFServiceUnavailable, health.Components["pdf_service"].Message)
}

func TestFormatSSEStatus(t *testing.T) {
	assert.Equal(t, "no connected clients", formatSSEStatus(0))
	assert.Equal(t, "1 connected client", formatSSEStatus(1))
	assert.Equal(t, "3 connected clients", formatSSEStatus(3))
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/audiobooks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

package api

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/testutil"
)

func TestListAudioSources(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/audio_sources")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"sources":["audiobooks","obsidian","standalone"]}`, resp.Body.String())
}

func TestListAudio(t *testing.T) {
	ts := setupTestServer(t)
	ts.writeFile(t, filepath.Join(ts.dirs.ObsidianPath, "note.wav"), testutil.WAV(1.5))
	ts.writeFile(t, filepath.Join(ts.dirs.ObsidianPath, "note.mp3"), []byte("not listed"))

	resp := ts.api.Get("/api/list_audio?source=obsidian")
	require.Equal(t, http.StatusOK, resp.Code)

	out := decode[struct {
		Files  []domain.AudioFile `json:"files"`
		Source string             `json:"source"`
	}](t, resp.Body.Bytes())
	assert.Equal(t, "obsidian", out.Source)
	require.Len(t, out.Files, 1)
	assert.Equal(t, "note.wav", out.Files[0].Name)
	assert.InDelta(t, 1.5, out.Files[0].DurationSeconds, 0.01)
}

func TestListAudio_DefaultsToAudiobooks(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/list_audio")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"source":"audiobooks"`)
}

func TestListAudio_InvalidSource(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/list_audio?source=podcasts")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Invalid audio source specified. Valid sources: [audiobooks, obsidian, standalone]",
		detail(t, resp.Body.Bytes()))
}

func TestListAudiobooks(t *testing.T) {
	ts := setupTestServer(t)
	ts.writeManifest(t, testutil.Manifest("Sea", 2, 4, 10))
	ts.writeManifest(t, testutil.Manifest("Land", 3, 3, 10))

	resp := ts.api.Get("/api/audiobooks")
	require.Equal(t, http.StatusOK, resp.Code)

	out := decode[struct {
		Audiobooks []domain.AudiobookSummary `json:"audiobooks"`
	}](t, resp.Body.Bytes())
	require.Len(t, out.Audiobooks, 2)

	byID := map[string]domain.AudiobookSummary{}
	for _, b := range out.Audiobooks {
		byID[b.BookID] = b
	}
	assert.Equal(t, 2, byID["Sea"].ReadyChunks)
	assert.False(t, byID["Sea"].IsComplete)
	assert.True(t, byID["Land"].IsComplete)
}

func TestGetAudiobookStatus(t *testing.T) {
	ts := setupTestServer(t)
	ts.writeManifest(t, testutil.Manifest("Sea", 1, 4, 10))

	resp := ts.api.Get("/api/audiobook/Sea/status")
	require.Equal(t, http.StatusOK, resp.Code)

	m := decode[domain.Manifest](t, resp.Body.Bytes())
	assert.Equal(t, "Sea", m.BookID)
	assert.Len(t, m.ReadyChunks, 1)
	assert.Equal(t, 25.0, m.ProgressPercentage)
}

func TestGetAudiobookStatus_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/audiobook/Nope/status")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Audiobook 'Nope' not found", detail(t, resp.Body.Bytes()))
}

func TestListAvailablePDFs(t *testing.T) {
	ts := setupTestServer(t)
	ts.writeFile(t, filepath.Join(ts.dirs.PDFInputPath, "paper.pdf"), testutil.BlankPDF([2]float64{612, 792}))

	resp := ts.api.Get("/api/available_pdfs")
	require.Equal(t, http.StatusOK, resp.Code)

	out := decode[struct {
		AvailablePDFs []domain.PDFInfo `json:"available_pdfs"`
	}](t, resp.Body.Bytes())
	require.Len(t, out.AvailablePDFs, 1)
	assert.Equal(t, "paper.pdf", out.AvailablePDFs[0].Filename)
	assert.Equal(t, 1, out.AvailablePDFs[0].Pages)
}

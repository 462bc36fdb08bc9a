package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/listenupapp/readalong/internal/client"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/http/response"
)

// handleStreamAudio serves a WAV file from an audio source.
// GET /api/audio/{filename}?source=
func (s *Server) handleStreamAudio(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	path, err := s.services.Library.AudioPath(source, chi.URLParam(r, "filename"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.serveFile(w, r, path, "audio/wav")
}

// handleStreamChunk serves one chunk of an audiobook.
// GET /api/audiobook/{id}/play/{chunk}
func (s *Server) handleStreamChunk(w http.ResponseWriter, r *http.Request) {
	path, err := s.services.Library.ChunkPath(chi.URLParam(r, "id"), chi.URLParam(r, "chunk"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	s.serveFile(w, r, path, "audio/wav")
}

// handleStreamPDF serves a source document from disk, or proxies it from the
// processing service when it is not stored locally.
// GET /api/pdf/{filename}
func (s *Server) handleStreamPDF(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	path, err := s.services.Library.PDFPath(filename)
	if err == nil {
		s.serveFile(w, r, path, "application/pdf")
		return
	}
	if !errors.Is(err, errors.ErrNotFound) || s.services.PDF == nil {
		response.HandleError(w, err, s.logger)
		return
	}

	doc, err := s.services.PDF.Document(r.Context(), filename)
	if err != nil {
		var te *client.TransportError
		if errors.As(err, &te) && te.Status == 0 {
			s.logger.Error("PDF service request failed", "filename", filename, "error", err)
			response.InternalError(w, msgPDFServiceUnavailable, s.logger)
			return
		}
		response.HandleError(w, err, s.logger)
		return
	}
	defer doc.Body.Close() //nolint:errcheck // proxied body

	for k, v := range doc.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, doc.Body); err != nil {
		s.logger.Debug("PDF proxy copy interrupted", "filename", filename, "error", err)
	}
}

// serveFile streams a file with range support.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path, contentType string) {
	f, err := os.Open(path) //#nosec G304 -- path was resolved inside a configured directory
	if err != nil {
		response.NotFound(w, "File not found", s.logger)
		return
	}
	defer f.Close() //nolint:errcheck // read-only

	fi, err := f.Stat()
	if err != nil {
		response.InternalError(w, "Failed to read file", s.logger)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", CacheOneHour)
	w.Header().Set("Accept-Ranges", "bytes")
	if contentType == "application/pdf" {
		w.Header().Set("Content-Disposition", "inline; filename=\""+filepath.Base(path)+"\"")
	}

	// ServeContent answers Range, If-Range and If-Modified-Since.
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

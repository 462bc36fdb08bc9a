package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/sanitize"
)

// AudioSources lists the names of the audio sources.
func (c *Client) AudioSources(ctx context.Context) ([]string, error) {
	var out struct {
		Sources []string `json:"sources"`
	}
	if err := c.getJSON(ctx, "/api/audio_sources", nil, &out); err != nil {
		return nil, err
	}
	return out.Sources, nil
}

// ListAudio lists the files of an audio source.
func (c *Client) ListAudio(ctx context.Context, source string) ([]domain.AudioFile, error) {
	var out struct {
		Files  []domain.AudioFile `json:"files"`
		Source string             `json:"source"`
	}
	q := url.Values{"source": {source}}
	if err := c.getJSON(ctx, "/api/list_audio", q, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// AudioURL returns the stream URL of a file in an audio source.
func (c *Client) AudioURL(filename, source string) (string, error) {
	name, err := sanitize.Segment(filename)
	if err != nil {
		return "", err
	}
	return c.resolve("/api/audio/"+name, url.Values{"source": {source}})
}

// Audiobooks lists the audiobooks and their processing status.
func (c *Client) Audiobooks(ctx context.Context) ([]domain.AudiobookSummary, error) {
	var out struct {
		Audiobooks []domain.AudiobookSummary `json:"audiobooks"`
	}
	if err := c.getJSON(ctx, "/api/audiobooks", nil, &out); err != nil {
		return nil, err
	}
	return out.Audiobooks, nil
}

// Status fetches the manifest of a book.
func (c *Client) Status(ctx context.Context, bookID string) (*domain.Manifest, error) {
	id, err := sanitize.Segment(bookID)
	if err != nil {
		return nil, err
	}
	var m domain.Manifest
	if err := c.getJSON(ctx, "/api/audiobook/"+id+"/status", nil, &m); err != nil {
		return nil, err
	}
	if m.BookID == "" {
		m.BookID = id
	}
	return &m, nil
}

// ChunkURL returns the stream URL of a chunk.
func (c *Client) ChunkURL(bookID, filename string) (string, error) {
	id, err := sanitize.Segment(bookID)
	if err != nil {
		return "", err
	}
	name, err := sanitize.Filename(filename, ".wav")
	if err != nil {
		return "", err
	}
	return c.resolve("/api/audiobook/"+id+"/play/"+name, nil)
}

// PDFURL returns the URL of a source document.
func (c *Client) PDFURL(filename string) (string, error) {
	name, err := sanitize.Filename(filename, ".pdf")
	if err != nil {
		return "", err
	}
	return c.resolve("/api/pdf/"+name, nil)
}

// FetchPDF downloads a source document.
func (c *Client) FetchPDF(ctx context.Context, filename string) ([]byte, error) {
	ref, err := c.PDFURL(filename)
	if err != nil {
		return nil, err
	}
	rc, err := c.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeTransport, "read %s", filename)
	}
	return data, nil
}

// AvailablePDFs lists documents that can be processed.
func (c *Client) AvailablePDFs(ctx context.Context) ([]domain.PDFInfo, error) {
	var out struct {
		AvailablePDFs []domain.PDFInfo `json:"available_pdfs"`
	}
	if err := c.getJSON(ctx, "/api/available_pdfs", nil, &out); err != nil {
		return nil, err
	}
	return out.AvailablePDFs, nil
}

// ProcessPDF asks the server to start converting a document to audio.
func (c *Client) ProcessPDF(ctx context.Context, filename string) (*domain.ProcessResult, error) {
	name, err := sanitize.Filename(filename, ".pdf")
	if err != nil {
		return nil, err
	}
	var out domain.ProcessResult
	q := url.Values{"filename": {name}}
	if err := c.sendJSON(ctx, http.MethodPost, "/api/process_pdf", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Citation returns the sentence read at book time t.
func (c *Client) Citation(ctx context.Context, bookID string, t float64) (*domain.Citation, error) {
	id, err := sanitize.Segment(bookID)
	if err != nil {
		return nil, err
	}
	var out domain.Citation
	q := url.Values{"timestamp": {strconv.FormatFloat(t, 'f', -1, 64)}}
	if err := c.getJSON(ctx, "/api/audiobook/"+id+"/citation", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search finds chunks of a book whose text matches query.
func (c *Client) Search(ctx context.Context, bookID, query string, limit int) ([]domain.SearchHit, error) {
	id, err := sanitize.Segment(bookID)
	if err != nil {
		return nil, err
	}
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Hits []domain.SearchHit `json:"hits"`
	}
	if err := c.getJSON(ctx, "/api/audiobook/"+id+"/search", q, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

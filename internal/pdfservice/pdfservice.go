// Package pdfservice talks to the external PDF processing service that turns
// documents into audiobook chunks, serves processed documents and answers
// citation lookups.
package pdfservice

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/listenupapp/readalong/internal/client"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/logger"
	"github.com/listenupapp/readalong/internal/sanitize"
)

// PassthroughHeaders are the document response headers forwarded to callers.
var PassthroughHeaders = []string{
	"Content-Type",
	"Content-Disposition",
	"Content-Length",
	"ETag",
	"Accept-Ranges",
	"Last-Modified",
	"Cache-Control",
}

// Config configures the service client.
type Config struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Service is a client for the PDF processing service.
type Service struct {
	api    *client.Client
	logger *slog.Logger
}

// Document is a streamed document with the headers worth forwarding.
type Document struct {
	Body   io.ReadCloser
	Header http.Header
}

// New creates a service client.
func New(cfg Config) (*Service, error) {
	api, err := client.New(client.Config{
		BaseURL:    cfg.URL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Service{api: api, logger: logger.OrDiscard(cfg.Logger)}, nil
}

// URL returns the service root.
func (s *Service) URL() string {
	return s.api.BaseURL()
}

// Ping checks that the service answers.
func (s *Service) Ping(ctx context.Context) error {
	resp, err := s.api.Do(ctx, http.MethodGet, "docs", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Process asks the service to run the pipeline for an input document.
func (s *Service) Process(ctx context.Context, filename string) (*domain.ProcessResult, error) {
	name, err := sanitize.Filename(filename, ".pdf")
	if err != nil {
		return nil, errors.Validation("Must be a PDF file")
	}

	var out domain.ProcessResult
	if err := s.api.SendJSON(ctx, http.MethodPost, "api/v1/process/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		out.Status = domain.ProcessingStarted
	}
	if out.Filename == "" {
		out.Filename = name
	}
	s.logger.Info("processing requested", "filename", name, "status", out.Status)
	return &out, nil
}

// Document opens a processed document. The caller closes Body.
func (s *Service) Document(ctx context.Context, filename string) (*Document, error) {
	name, err := sanitize.Filename(filename, ".pdf")
	if err != nil {
		return nil, errors.Validation("Must be a PDF file")
	}

	resp, err := s.api.Do(ctx, http.MethodGet, "api/v1/document/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(PassthroughHeaders))
	for _, k := range PassthroughHeaders {
		if v := resp.Header.Get(k); v != "" {
			header.Set(k, v)
		}
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/pdf")
	}
	return &Document{Body: resp.Body, Header: header}, nil
}

// Citation asks the service for the citation at timestamp t of a book.
func (s *Service) Citation(ctx context.Context, bookID string, t float64) (*domain.Citation, error) {
	id, err := sanitize.BookID(bookID)
	if err != nil {
		return nil, err
	}

	var out domain.Citation
	q := url.Values{"timestamp": {strconv.FormatFloat(t, 'f', -1, 64)}}
	if err := s.api.SendJSON(ctx, http.MethodGet, "api/v1/citation/"+url.PathEscape(id), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

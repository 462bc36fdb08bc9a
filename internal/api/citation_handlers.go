package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readalong/internal/client"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
)

func (s *Server) registerCitationRoutes() {
	register(s.api, huma.Operation{
		OperationID: "getCitation",
		Method:      http.MethodGet,
		Path:        "/api/audiobook/{id}/citation",
		Summary:     "Cite the sentence at a timestamp",
		Description: "Locates the page, block and sentence read at the given book time",
		Tags:        []string{"Audiobooks"},
	}, s.handleGetCitation)
}

// CitationInput identifies a book and a time within it.
type CitationInput struct {
	ID        string  `path:"id"`
	Timestamp float64 `query:"timestamp" required:"true" minimum:"0" doc:"Seconds from the start of the book"`
}

// CitationOutput is the located sentence.
type CitationOutput struct {
	Body *domain.Citation
}

// handleGetCitation answers from the local citation cache and asks the
// processing service only when the cache has no data for the book.
func (s *Server) handleGetCitation(ctx context.Context, input *CitationInput) (*CitationOutput, error) {
	c, err := s.services.Library.Citation(input.ID, input.Timestamp)
	if err == nil {
		return &CitationOutput{Body: c}, nil
	}
	if _, dataErr := s.services.Library.CitationData(input.ID); dataErr == nil || s.services.PDF == nil {
		// The cache exists but has no sentence there, or there is nowhere else to ask.
		return nil, err
	}

	c, err = s.services.PDF.Citation(ctx, input.ID, input.Timestamp)
	if err != nil {
		var te *client.TransportError
		if errors.As(err, &te) && te.Status != 0 {
			return nil, err
		}
		s.logger.Error("citation lookup failed", "book_id", input.ID, "error", err)
		return nil, errors.Wrap(err, errors.CodeInternal, msgCitationUnavailable)
	}
	return &CitationOutput{Body: c}, nil
}

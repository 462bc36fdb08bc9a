package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/sanitize"
	"github.com/listenupapp/readalong/internal/search"
)

func (s *Server) registerSearchRoutes() {
	register(s.api, huma.Operation{
		OperationID: "searchBook",
		Method:      http.MethodGet,
		Path:        "/api/audiobook/{id}/search",
		Summary:     "Search one audiobook",
		Description: "Finds the chunks of a book whose text matches the query",
		Tags:        []string{"Search"},
	}, s.handleSearchBook)

	register(s.api, huma.Operation{
		OperationID: "searchLibrary",
		Method:      http.MethodGet,
		Path:        "/api/search",
		Summary:     "Search all audiobooks",
		Tags:        []string{"Search"},
	}, s.handleSearchLibrary)
}

// SearchPage pages search results.
type SearchPage struct {
	Q      string `query:"q" required:"true" minLength:"1" doc:"Search query"`
	Limit  int    `query:"limit" default:"20" minimum:"1" maximum:"100"`
	Offset int    `query:"offset" default:"0" minimum:"0"`
}

// SearchBookInput searches one book.
type SearchBookInput struct {
	ID string `path:"id"`
	SearchPage
}

// SearchLibraryInput searches every book, optionally narrowed to one.
type SearchLibraryInput struct {
	BookID string `query:"book_id" doc:"Restrict results to one audiobook"`
	SearchPage
}

// SearchOutput is a page of matching chunks.
type SearchOutput struct {
	Body *search.SearchResult
}

func (s *Server) handleSearchBook(ctx context.Context, input *SearchBookInput) (*SearchOutput, error) {
	// 404 for unknown books rather than an empty result.
	m, err := s.services.Library.Manifest(input.ID)
	if err != nil {
		return nil, err
	}
	return s.search(ctx, m.BookID, input.SearchPage)
}

func (s *Server) handleSearchLibrary(ctx context.Context, input *SearchLibraryInput) (*SearchOutput, error) {
	bookID := ""
	if input.BookID != "" {
		id, err := sanitize.BookID(input.BookID)
		if err != nil {
			return nil, err
		}
		bookID = id
	}
	return s.search(ctx, bookID, input.SearchPage)
}

func (s *Server) search(ctx context.Context, bookID string, page SearchPage) (*SearchOutput, error) {
	if s.services.Search == nil {
		return nil, errors.Unavailable(msgSearchUnavailable)
	}
	res, err := s.services.Search.Search(ctx, search.SearchParams{
		Query:  page.Q,
		BookID: bookID,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: res}, nil
}

package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/listenupapp/readalong/internal/domain"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// SearchParams configures a search query.
type SearchParams struct {
	Query  string // User's search query
	BookID string // Restrict to one book (empty = all books)
	Limit  int
	Offset int
}

// SearchResult is a page of matching chunks, best match first.
type SearchResult struct {
	Query  string             `json:"query"`
	Total  uint64             `json:"total"`
	TookMs int64              `json:"took_ms"`
	Hits   []domain.SearchHit `json:"hits"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), limit, max(params.Offset, 0), false)
	req.SortBy([]string{"-_score", "book_id", "start_time"})
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("text")
	req.Fields = []string{"book_id", "chunk_id", "filename", "page", "start_time", "text"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]domain.SearchHit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		h := domain.SearchHit{Score: hit.Score}
		if v, ok := hit.Fields["book_id"].(string); ok {
			h.BookID = v
		}
		if v, ok := hit.Fields["chunk_id"].(float64); ok {
			h.ChunkID = int(v)
		}
		if v, ok := hit.Fields["filename"].(string); ok {
			h.Filename = v
		}
		if v, ok := hit.Fields["page"].(float64); ok {
			h.Page = int(v)
		}
		if v, ok := hit.Fields["start_time"].(float64); ok {
			h.StartTime = v
		}
		if frags := hit.Fragments["text"]; len(frags) > 0 {
			h.Snippet = frags[0]
		} else if v, ok := hit.Fields["text"].(string); ok {
			h.Snippet = v
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// buildSearchQuery matches the query against chunk text first, then book title
// and author, optionally restricted to one book.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		phrase := bleve.NewMatchPhraseQuery(q)
		phrase.SetField("text")
		phrase.SetBoost(3.0)

		text := bleve.NewMatchQuery(q)
		text.SetField("text")
		text.SetBoost(1.5)

		title := bleve.NewMatchQuery(q)
		title.SetField("title")
		title.SetBoost(0.5)

		author := bleve.NewMatchQuery(q)
		author.SetField("author")
		author.SetBoost(0.5)

		queries = append(queries, bleve.NewDisjunctionQuery(phrase, text, title, author))
	}

	if params.BookID != "" {
		bq := bleve.NewTermQuery(params.BookID)
		bq.SetField("book_id")
		queries = append(queries, bq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

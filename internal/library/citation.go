package library

import (
	"encoding/json/v2"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/sanitize"
)

const (
	citationSuffix   = "_citation_ready.json"
	maxSentenceChars = 100
)

// CitationSentence is one sentence of a citation-ready chunk.
type CitationSentence struct {
	GlobalIndex     int    `json:"global_index"`
	SentenceInBlock int    `json:"sentence_in_block"`
	Text            string `json:"text"`
}

// CitationChunk is a chunk of the citation cache with its full text and sentences.
type CitationChunk struct {
	ChunkID    int                `json:"chunk_id"`
	Text       string             `json:"text"`
	Page       int                `json:"page"`
	BlockIndex int                `json:"block_index"`
	Sentences  []CitationSentence `json:"sentences"`
	StartTime  float64            `json:"start_time"`
	Duration   float64            `json:"duration_seconds"`
	EndTime    float64            `json:"end_time"`
}

// CitationData is the citation-ready cache written by the processing pipeline.
type CitationData struct {
	Metadata domain.BookMetadata `json:"metadata"`
	BookID   string              `json:"book_id"`
	Chunks   []CitationChunk     `json:"chunks"`
}

// CitationData loads the citation cache of a book. An exact file name match is
// preferred; otherwise the first cache whose name contains the book id is used.
func (l *Library) CitationData(bookID string) (*CitationData, error) {
	safe, err := sanitize.BookID(bookID)
	if err != nil {
		return nil, errors.NotFound("Citation data not available")
	}

	path := filepath.Join(l.cfg.PDFCachePath, safe+citationSuffix)
	if _, err := os.Stat(path); err != nil {
		matches, _ := filepath.Glob(filepath.Join(l.cfg.PDFCachePath, "*"+safe+"*"+citationSuffix))
		if len(matches) == 0 {
			return nil, errors.NotFound("Citation data not available")
		}
		path = matches[0]
	}

	f, err := os.Open(path) //#nosec G304 -- path is inside the configured cache directory
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "open citation data")
	}
	defer f.Close() //nolint:errcheck // read-only

	var data CitationData
	if err := json.UnmarshalRead(f, &data); err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "decode %s", filepath.Base(path))
	}
	return &data, nil
}

// Citation locates the sentence being read at timestamp t seconds into the book.
func (l *Library) Citation(bookID string, t float64) (*domain.Citation, error) {
	data, err := l.CitationData(bookID)
	if err != nil {
		return nil, err
	}
	if c := data.At(t); c != nil {
		return c, nil
	}
	return nil, errors.NotFoundf("No citation found for timestamp %g", t)
}

// At returns the citation for t, or nil when no chunk spans it. The sentence is
// estimated from how far t is into its chunk.
func (d *CitationData) At(t float64) *domain.Citation {
	for _, ch := range d.Chunks {
		if t < ch.StartTime || t >= ch.EndTime || len(ch.Sentences) == 0 {
			continue
		}

		ratio := 0.0
		if ch.Duration > 0 {
			ratio = (t - ch.StartTime) / ch.Duration
		}
		idx := min(int(ratio*float64(len(ch.Sentences))), len(ch.Sentences)-1)
		sentence := ch.Sentences[idx]

		author := d.Metadata.Author
		if author == "" {
			author = "Unknown"
		}
		title := d.Metadata.Title
		if title == "" {
			title = "Unknown Title"
		}

		text := sentence.Text
		if len(text) > maxSentenceChars {
			text = text[:maxSentenceChars] + "..."
		}

		n := sentence.SentenceInBlock + 1
		return &domain.Citation{
			Citation:        fmt.Sprintf("%s - %s, p.%d, ¶%d, sent.%d", author, title, ch.Page, ch.BlockIndex, n),
			Timestamp:       formatTimestamp(t),
			Page:            ch.Page,
			Block:           ch.BlockIndex,
			SentenceInBlock: n,
			SentenceText:    text,
		}
	}
	return nil
}

// ChunkTexts maps chunk ids to their full text.
func (d *CitationData) ChunkTexts() map[int]string {
	texts := make(map[int]string, len(d.Chunks))
	for _, ch := range d.Chunks {
		texts[ch.ChunkID] = strings.TrimSpace(ch.Text)
	}
	return texts
}

func formatTimestamp(t float64) string {
	secs := int(t)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

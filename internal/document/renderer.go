package document

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// TextRenderer is the headless renderer: it writes one line per rendered page.
type TextRenderer struct {
	mu  sync.Mutex
	w   io.Writer
	doc Document
}

// NewTextRenderer writes render descriptors to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

// SetDocument sets the document whose sizes are reported.
func (r *TextRenderer) SetDocument(doc Document) {
	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
}

// Render writes "page N/T @ S.SSx (WxHpt)".
func (r *TextRenderer) Render(ctx context.Context, page int, scale float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc == nil {
		_, err := fmt.Fprintf(r.w, "page %d @ %.2fx\n", page, scale)
		return err
	}
	w, h, err := r.doc.PageSize(page)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.w, "page %d/%d @ %.2fx (%.0fx%.0fpt)\n", page, r.doc.PageCount(), scale, w*scale, h*scale)
	return err
}

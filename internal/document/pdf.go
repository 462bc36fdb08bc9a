package document

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/listenupapp/readalong/internal/errors"
)

// PDFDocument exposes page count and sizes of a PDF, in points.
type PDFDocument struct {
	Name string
	dims [][2]float64
}

// OpenPDF reads page dimensions from a PDF.
func OpenPDF(name string, rs io.ReadSeeker) (*PDFDocument, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	dims, err := api.PageDims(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	doc := &PDFDocument{Name: name, dims: make([][2]float64, len(dims))}
	for i, d := range dims {
		doc.dims[i] = [2]float64{d.Width, d.Height}
	}
	return doc, nil
}

// ParsePDF reads page dimensions from an in-memory PDF.
func ParsePDF(name string, data []byte) (*PDFDocument, error) {
	return OpenPDF(name, bytes.NewReader(data))
}

// PageCount returns the number of pages.
func (d *PDFDocument) PageCount() int {
	return len(d.dims)
}

// PageSize returns the media box size of page (1-based).
func (d *PDFDocument) PageSize(page int) (float64, float64, error) {
	if page < 1 || page > len(d.dims) {
		return 0, 0, errors.Validationf("page %d is out of range (1-%d)", page, len(d.dims))
	}
	dim := d.dims[page-1]
	return dim[0], dim[1], nil
}

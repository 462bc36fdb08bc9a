package library

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/listenupapp/readalong/internal/document"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/sanitize"
)

const bytesPerMB = 1024 * 1024

// PDFs lists the documents in the input directory that can be sent for processing.
// Page counts are filled in when the document parses.
func (l *Library) PDFs(ctx context.Context) ([]domain.PDFInfo, error) {
	entries, err := os.ReadDir(l.cfg.PDFInputPath)
	if os.IsNotExist(err) {
		return []domain.PDFInfo{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "read pdf input dir")
	}

	pdfs := make([]domain.PDFInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !sanitize.HasExt(e.Name(), ".pdf") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		info := domain.PDFInfo{
			Filename:  e.Name(),
			SizeBytes: fi.Size(),
			SizeMB:    math.Round(float64(fi.Size())/bytesPerMB*100) / 100,
		}
		if pages, err := pageCount(filepath.Join(l.cfg.PDFInputPath, e.Name())); err == nil {
			info.Pages = pages
		} else {
			l.logger.Debug("page count failed", "file", e.Name(), "error", err)
		}
		pdfs = append(pdfs, info)
	}

	slices.SortFunc(pdfs, func(a, b domain.PDFInfo) int { return strings.Compare(a.Filename, b.Filename) })
	return pdfs, nil
}

// PDFPath resolves a document by name, looking in the input directory first and
// then in the processed cache.
func (l *Library) PDFPath(filename string) (string, error) {
	name, err := sanitize.Filename(filename, ".pdf")
	if err != nil {
		return "", errors.Validation("Must be a PDF file")
	}
	for _, dir := range []string{l.cfg.PDFInputPath, l.cfg.PDFCachePath} {
		if dir == "" {
			continue
		}
		if path, err := existingFile(filepath.Join(dir, name), ""); err == nil {
			return path, nil
		}
	}
	return "", errors.NotFoundf("PDF '%s' not found", name)
}

func pageCount(path string) (int, error) {
	f, err := os.Open(path) //#nosec G304 -- path is inside the configured input directory
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck // read-only

	doc, err := document.OpenPDF(filepath.Base(path), f)
	if err != nil {
		return 0, err
	}
	return doc.PageCount(), nil
}

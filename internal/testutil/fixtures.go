// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"

	"github.com/listenupapp/readalong/internal/audio"
	"github.com/listenupapp/readalong/internal/domain"
)

// BlankPDF returns a minimal valid PDF with one empty page per size (in points).
func BlankPDF(sizes ...[2]float64) []byte {
	if len(sizes) == 0 {
		sizes = [][2]float64{{612, 792}}
	}

	var buf bytes.Buffer
	offsets := make([]int, 0, len(sizes)+2)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := range sizes {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(sizes)))

	for _, s := range sizes {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << >> /MediaBox [0 0 %g %g] >>", s[0], s[1]))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// WAV returns a mono 16-bit WAV of the given length at 8 kHz.
func WAV(seconds float64) []byte {
	const rate = 8000
	samples := make([]int16, int(seconds*rate))
	for i := range samples {
		samples[i] = int16((i % 400) * 40)
	}
	data, err := audio.EncodeWAV(samples, rate)
	if err != nil {
		panic(err)
	}
	return data
}

// Chunks returns n back-to-back chunks of the given length, two per page.
func Chunks(n int, seconds float64) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		page := i/2 + 1
		out[i] = domain.Chunk{
			ChunkID:     i,
			Filename:    fmt.Sprintf("chunk_%04d_p%d.wav", i, page),
			Page:        page,
			TextSnippet: fmt.Sprintf("Sentence %d of the book...", i),
			StartTime:   float64(i) * seconds,
			Duration:    seconds,
		}
	}
	return out
}

// Manifest returns a manifest with ready chunks out of total.
func Manifest(bookID string, ready, total int, seconds float64) *domain.Manifest {
	m := &domain.Manifest{
		BookID:      bookID,
		Metadata:    domain.BookMetadata{Title: "Test Book", Author: "Test Author", SourceFilename: bookID + ".pdf"},
		TotalChunks: total,
		ReadyChunks: Chunks(ready, seconds),
	}
	m.Refresh()
	return m
}

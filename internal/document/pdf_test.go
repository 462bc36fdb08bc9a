package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/testutil"
)

func TestParsePDF(t *testing.T) {
	data := testutil.BlankPDF([2]float64{612, 792}, [2]float64{595, 842}, [2]float64{612, 792})

	doc, err := ParsePDF("book.pdf", data)
	require.NoError(t, err)

	assert.Equal(t, 3, doc.PageCount())
	w, h, err := doc.PageSize(2)
	require.NoError(t, err)
	assert.InDelta(t, 595.0, w, 0.01)
	assert.InDelta(t, 842.0, h, 0.01)

	_, _, err = doc.PageSize(4)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestParsePDF_Garbage(t *testing.T) {
	_, err := ParsePDF("broken.pdf", []byte("this is not a pdf"))
	assert.Error(t, err)
}

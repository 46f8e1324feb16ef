package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTextPagesPlainText(t *testing.T) {
	pages, err := ExtractTextPages([]byte("Lease agreement for unit 4B.\nRent: $1,200."), "text/plain", "lease.txt")

	assert.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Page)
	assert.Contains(t, pages[0].Text, "Rent: $1,200.")
}

func TestExtractTextPagesEmptyBytes(t *testing.T) {
	pages, err := ExtractTextPages(nil, "text/plain", "empty.txt")
	assert.NoError(t, err)
	assert.Empty(t, pages)

	pages, err = ExtractTextPages([]byte("   \n\t "), "text/plain", "blank.txt")
	assert.NoError(t, err)
	assert.Empty(t, pages)
}

func TestExtractTextPagesReplacesInvalidUTF8(t *testing.T) {
	raw := append([]byte("paystub "), 0xff, 0xfe)
	pages, err := ExtractTextPages(raw, "text/plain", "paystub.txt")

	assert.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "paystub")
	assert.True(t, len(pages[0].Text) > 0)
}

func TestExtractTextPagesBrokenPDF(t *testing.T) {
	// Garbage bytes behind a PDF content type must surface an error, not
	// silently pass as an empty document.
	_, err := ExtractTextPages([]byte("not a pdf at all"), "application/pdf", "doc.pdf")
	assert.Error(t, err)
}

func TestExtractTextPagesDispatchesOnFilenameSuffix(t *testing.T) {
	// Suffix dispatch applies even when the declared type is generic.
	_, err := ExtractTextPages([]byte("still not a pdf"), "application/octet-stream", "scan.PDF")
	assert.Error(t, err)
}

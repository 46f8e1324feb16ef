package services

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// PageText is one extracted text span, numbered from 1 in page order.
type PageText struct {
	Page int
	Text string
}

// ExtractTextPages turns raw file bytes into an ordered sequence of
// (page, text) pairs. PDFs (by declared type or filename suffix) yield one
// span per page with empty pages skipped; everything else is decoded as
// UTF-8, replacing undecodable bytes, and treated as a single page. An
// empty result is valid and distinguishable: the ingestion job manager
// treats it as a content-empty failure.
func ExtractTextPages(fileBytes []byte, contentType, filename string) ([]PageText, error) {
	if contentType == "application/pdf" || strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return extractPDFPages(fileBytes)
	}

	decoded := strings.TrimSpace(strings.ToValidUTF8(string(fileBytes), string(utf8.RuneError)))
	if decoded == "" {
		return nil, nil
	}
	return []PageText{{Page: 1, Text: decoded}}, nil
}

func extractPDFPages(fileBytes []byte) ([]PageText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var pages []PageText
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			log.Printf("ExtractTextPages: failed to read page %d: %v", i, err)
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, PageText{Page: i, Text: text})
		}
	}
	return pages, nil
}

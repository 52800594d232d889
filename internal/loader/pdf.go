package loader

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts text with github.com/ledongthuc/pdf.
// Pages that are empty or fail to decode contribute no text; only a file
// that cannot be opened as a PDF is an error.
type PDFExtractor struct{}

// Extract returns the text of all pages of the PDF at path, in page order.
func (PDFExtractor) Extract(path string) (text string, err error) {
	// The parser panics on some malformed cross-reference tables; panics
	// inside a single page are handled by pageText.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	text = readPages(reader.NumPage(), func(i int) (string, error) {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", nil
		}
		return page.GetPlainText(nil)
	})
	return text, nil
}

// readPages concatenates pages 1..n in order. A page that errors or panics
// contributes "".
func readPages(n int, read func(i int) (string, error)) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString(pageText(i, read))
	}
	return b.String()
}

func pageText(i int, read func(i int) (string, error)) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	text, err := read(i)
	if err != nil {
		return ""
	}
	return text
}

// Package extract pulls plain text out of uploaded documents. Each supported
// format produces a slice of pages; formats without a page concept yield a
// single page numbered 1.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned for file extensions no extractor handles.
var ErrUnsupportedType = errors.New("unsupported document type")

// Page is the text of one page of a document. Number is 1-based. Text may be
// empty for pages that contain no extractable text, e.g. scanned images.
type Page struct {
	Number int
	Text   string
}

// Pages extracts text from the file at path, dispatching on its extension.
func Pages(path string) ([]Page, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfPages(path)
	case ".html", ".htm":
		return htmlPages(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
}

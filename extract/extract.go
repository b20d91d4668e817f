// Package extract turns uploaded documents into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for extensions other than .pdf, .docx and .txt
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrExtraction is returned for corrupt files, decode failures and documents without text
	ErrExtraction = errors.New("text extraction failed")
)

// Extensions lists the accepted file extensions.
var Extensions = []string{".pdf", ".docx", ".txt"}

type extractor func(data []byte) (string, error)

var extractors = map[string]extractor{
	".pdf":  pdfText,
	".docx": docxText,
	".txt":  plainText,
}

// Supported reports whether filename has an extension Text can handle.
func Supported(filename string) bool {
	_, ok := extractors[extension(filename)]
	return ok
}

// Text extracts the text of a document, dispatching on the filename extension.
// The result is trimmed and never empty.
func Text(data []byte, filename string) (string, error) {
	fn, ok := extractors[extension(filename)]
	if !ok {
		return "", fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedFormat, filename, strings.Join(Extensions, ", "))
	}

	text, err := fn(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no readable text found in %q", ErrExtraction, filename)
	}
	return text, nil
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
}

// Package embedding maps text to fixed-length dense vectors.
package embedding

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrEmbedding is returned when the model is unavailable or the text cannot be tokenized.
var ErrEmbedding = errors.New("embedding failed")

// Embedder converts text into a vector. Implementations are deterministic for
// fixed weights and input and safe for concurrent use after construction.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the output length, or 0 if unknown until the first call.
	Dimension() int
	ModelID() string
	Close() error
}

// Preparer is implemented by embedders that must see the corpus before embedding.
type Preparer interface {
	Prepare(corpus []string) error
}

// NormalizeText applies NFKC normalization, trims whitespace and drops control
// characters other than newlines and tabs.
func NormalizeText(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, norm.NFKC.String(text))
	return strings.TrimSpace(cleaned)
}

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}

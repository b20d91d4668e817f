package service

import (
	"context"
	"fmt"
	"time"

	"casefinder-backend/corpus"
	"casefinder-backend/embedding"
	"casefinder-backend/index"
	"casefinder-backend/metrics"
	"casefinder-backend/models"

	"github.com/go-logr/logr"
)

// DefaultTopK is the number of cases returned when the caller does not ask for a count
const DefaultTopK = 3

// Retriever maps query text to the nearest corpus cases. It is built once at
// startup and read-only afterwards, so Search needs no locking.
type Retriever struct {
	embedder embedding.Embedder
	corpus   *corpus.Corpus
	index    *index.FlatL2
	log      logr.Logger
}

// NewRetriever embeds every case summary in corpus order and builds the index.
// Any failure here is fatal for the process.
func NewRetriever(ctx context.Context, embedder embedding.Embedder, c *corpus.Corpus, logger logr.Logger) (*Retriever, error) {
	if embedder == nil || c == nil {
		return nil, fmt.Errorf("retriever requires an embedder and a corpus")
	}
	logger = logger.WithName("retriever")

	summaries := c.Summaries()
	if p, ok := embedder.(embedding.Preparer); ok {
		if err := p.Prepare(summaries); err != nil {
			return nil, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	start := time.Now()
	vectors := make([][]float32, len(summaries))
	for i, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := embedder.Embed(ctx, summary)
		if err != nil {
			return nil, fmt.Errorf("embed case %d: %w", i, err)
		}
		vectors[i] = vec
	}

	idx, err := index.Build(vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if d := embedder.Dimension(); d > 0 && d != idx.Dimension() {
		return nil, fmt.Errorf("%w: embedder reports %d, corpus vectors have %d", index.ErrDimensionMismatch, d, idx.Dimension())
	}

	metrics.CorpusSize.Set(float64(idx.Len()))
	metrics.EmbeddingDimension.Set(float64(idx.Dimension()))
	logger.Info("index built", "cases", idx.Len(), "dimension", idx.Dimension(),
		"embedder", embedder.ModelID(), "elapsed", time.Since(start).String())

	return &Retriever{embedder: embedder, corpus: c, index: idx, log: logger}, nil
}

// Search returns up to topK cases nearest to text, nearest first.
// topK <= 0 means DefaultTopK.
func (r *Retriever) Search(ctx context.Context, text string, topK int) ([]models.CaseRecord, error) {
	ranked, err := r.SearchRanked(ctx, text, topK)
	if err != nil {
		return nil, err
	}
	cases := make([]models.CaseRecord, len(ranked))
	for i, rc := range ranked {
		cases[i] = rc.Case
	}
	return cases, nil
}

// SearchRanked is Search with the distance of each case.
func (r *Retriever) SearchRanked(ctx context.Context, text string, topK int) ([]models.RankedCase, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	timer := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(timer).Seconds()) }()

	embedStart := time.Now()
	vec, err := r.embedder.Embed(ctx, text)
	metrics.EmbedDuration.Observe(time.Since(embedStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	out := make([]models.RankedCase, 0, len(matches))
	for _, m := range matches {
		c, ok := r.corpus.At(m.Position)
		if !ok {
			return nil, fmt.Errorf("index returned position %d outside corpus of %d cases", m.Position, r.corpus.Len())
		}
		out = append(out, models.RankedCase{Case: c, Distance: m.Distance})
	}
	r.log.V(1).Info("search", "topK", topK, "results", len(out))
	return out, nil
}

// Len returns the number of indexed cases
func (r *Retriever) Len() int { return r.index.Len() }

// Dimension returns the index dimension
func (r *Retriever) Dimension() int { return r.index.Dimension() }

// ModelID identifies the embedder behind the index
func (r *Retriever) ModelID() string { return r.embedder.ModelID() }

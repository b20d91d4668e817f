package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"casefinder-backend/corpus"
	"casefinder-backend/embedding"
	"casefinder-backend/index"
	"casefinder-backend/models"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns fixed vectors by text
type fakeEmbedder struct {
	vectors map[string][]float32
	dim     int
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("%w: unknown text %q", embedding.ErrEmbedding, text)
	}
	return v, nil
}

func (f *fakeEmbedder) Dimension() int  { return f.dim }
func (f *fakeEmbedder) ModelID() string { return "fake" }
func (f *fakeEmbedder) Close() error    { return nil }

func leaseCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	link := "https://example.org/lease"
	c, err := corpus.New([]models.CaseRecord{
		{Title: "Lease case", Jurisdiction: "NY", Summary: "contract dispute over lease", Link: &link},
		{Title: "Theft case", Jurisdiction: "CA", Summary: "criminal theft case"},
		{Title: "Custody case", Jurisdiction: "TX", Summary: "divorce custody battle"},
	})
	require.NoError(t, err)
	return c
}

func TestRetrieverRanksLeaseDisputeFirst(t *testing.T) {
	ctx := context.Background()
	r, err := NewRetriever(ctx, embedding.NewTFIDFEmbedder(), leaseCorpus(t), logr.Discard())
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	ranked, err := r.SearchRanked(ctx, "landlord breached lease agreement", 3)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "Lease case", ranked[0].Case.Title)
	assert.Less(t, ranked[0].Distance, ranked[1].Distance)
	assert.Less(t, ranked[0].Distance, ranked[2].Distance)
}

func TestRetrieverSearchDefaultsAndClamps(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 2, vectors: map[string][]float32{
		"contract dispute over lease": {0, 0},
		"criminal theft case":         {1, 0},
		"divorce custody battle":      {3, 0},
		"query":                       {0.1, 0},
	}}
	r, err := NewRetriever(ctx, emb, leaseCorpus(t), logr.Discard())
	require.NoError(t, err)

	cases, err := r.Search(ctx, "query", 0)
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{cases[0].Position, cases[1].Position, cases[2].Position})
	require.NotNil(t, cases[0].Link)
	assert.Equal(t, "https://example.org/lease", *cases[0].Link)

	cases, err = r.Search(ctx, "query", 1)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "Lease case", cases[0].Title)

	cases, err = r.Search(ctx, "query", 50)
	require.NoError(t, err)
	assert.Len(t, cases, 3)
}

func TestRetrieverPropagatesEmbeddingError(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{dim: 1, vectors: map[string][]float32{
		"contract dispute over lease": {0},
		"criminal theft case":         {1},
		"divorce custody battle":      {2},
	}}
	r, err := NewRetriever(ctx, emb, leaseCorpus(t), logr.Discard())
	require.NoError(t, err)

	_, err = r.Search(ctx, "never seen", 3)
	assert.ErrorIs(t, err, embedding.ErrEmbedding)
}

func TestRetrieverPropagatesDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"contract dispute over lease": {0, 0},
		"criminal theft case":         {1, 0},
		"divorce custody battle":      {2, 0},
		"wide":                        {1, 2, 3},
	}}
	r, err := NewRetriever(ctx, emb, leaseCorpus(t), logr.Discard())
	require.NoError(t, err)

	_, err = r.Search(ctx, "wide", 3)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestNewRetrieverFailures(t *testing.T) {
	ctx := context.Background()

	_, err := NewRetriever(ctx, &fakeEmbedder{err: errors.New("model missing")}, leaseCorpus(t), logr.Discard())
	assert.Error(t, err)

	// reported dimension differs from the vectors produced
	emb := &fakeEmbedder{dim: 768, vectors: map[string][]float32{
		"contract dispute over lease": {0, 0},
		"criminal theft case":         {1, 0},
		"divorce custody battle":      {2, 0},
	}}
	_, err = NewRetriever(ctx, emb, leaseCorpus(t), logr.Discard())
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)

	_, err = NewRetriever(ctx, nil, leaseCorpus(t), logr.Discard())
	assert.Error(t, err)
}

func TestRetrieverIsDeterministic(t *testing.T) {
	ctx := context.Background()
	r, err := NewRetriever(ctx, embedding.NewTFIDFEmbedder(), leaseCorpus(t), logr.Discard())
	require.NoError(t, err)

	first, err := r.SearchRanked(ctx, "custody of children after divorce", 3)
	require.NoError(t, err)
	second, err := r.SearchRanked(ctx, "custody of children after divorce", 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "Custody case", first[0].Case.Title)
}

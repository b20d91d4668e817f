package corpus

import (
	"context"
	"errors"
	"fmt"

	"casefinder-backend/models"
	"casefinder-backend/storage"
)

// Source names where the corpus is read from.
type Source string

const (
	SourceFile     Source = "file"
	SourcePostgres Source = "postgres"
)

// CaseLister is the read side of the case table.
type CaseLister interface {
	ListOrdered(ctx context.Context) ([]models.CaseRecord, error)
}

// LoadFromStorage reads and parses the JSON document stored under key.
func LoadFromStorage(ctx context.Context, store storage.Storage, key string) (*Corpus, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: no corpus path configured", ErrCorpusLoad)
	}
	data, err := storage.ReadAll(ctx, store, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: source %s not found", ErrCorpusLoad, key)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorpusLoad, err)
	}
	return Parse(data)
}

// LoadFromRepository reads the corpus from the database in position order.
func LoadFromRepository(ctx context.Context, repo CaseLister) (*Corpus, error) {
	cases, err := repo.ListOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusLoad, err)
	}
	return New(cases)
}

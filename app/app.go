// Package app assembles the retrieval core from configuration.
package app

import (
	"context"
	"fmt"

	"casefinder-backend/config"
	"casefinder-backend/corpus"
	"casefinder-backend/embedding"
	"casefinder-backend/repository"
	"casefinder-backend/service"
	"casefinder-backend/storage"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Core holds the process-wide state built once at startup
type Core struct {
	Storage   storage.Storage
	DB        *pgxpool.Pool // nil when no database is configured
	Corpus    *corpus.Corpus
	Embedder  embedding.Embedder
	Retriever *service.Retriever
}

// Build loads the corpus, opens the embedder and builds the index. Any error is
// fatal for the caller; nothing is left open on failure.
func Build(ctx context.Context, cfg *config.Config, logger logr.Logger) (*Core, error) {
	core := &Core{}
	if err := core.build(ctx, cfg, logger); err != nil {
		core.Close()
		return nil, err
	}
	return core, nil
}

func (c *Core) build(ctx context.Context, cfg *config.Config, logger logr.Logger) error {
	var err error
	c.Storage, err = storage.New(ctx, StorageOptions(cfg))
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	if cfg.DatabaseURL != "" {
		c.DB, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		if err := c.DB.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	}

	c.Corpus, err = LoadCorpus(ctx, cfg, c.Storage, c.DB)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded", "cases", c.Corpus.Len(), "source", cfg.Corpus.Source)

	c.Embedder, err = NewEmbedder(cfg.Embedder)
	if err != nil {
		return err
	}

	c.Retriever, err = service.NewRetriever(ctx, c.Embedder, c.Corpus, logger)
	return err
}

// Close releases the embedder and the database pool
func (c *Core) Close() {
	if c == nil {
		return
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}

// StorageOptions maps configuration onto storage options
func StorageOptions(cfg *config.Config) storage.Options {
	return storage.Options{
		Backend:      storage.Backend(cfg.Storage.Type),
		LocalPath:    cfg.Storage.LocalPath,
		S3Bucket:     cfg.Storage.S3Bucket,
		S3Region:     cfg.Storage.S3Region,
		AWSAccessKey: cfg.Storage.AWSAccessKey,
		AWSSecretKey: cfg.Storage.AWSSecretKey,
	}
}

// LoadCorpus reads the corpus from the configured source
func LoadCorpus(ctx context.Context, cfg *config.Config, store storage.Storage, db *pgxpool.Pool) (*corpus.Corpus, error) {
	switch corpus.Source(cfg.Corpus.Source) {
	case corpus.SourceFile:
		return corpus.LoadFromStorage(ctx, store, cfg.Corpus.Path)
	case corpus.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("%w: postgres source without a database", corpus.ErrCorpusLoad)
		}
		return corpus.LoadFromRepository(ctx, repository.NewCaseRepository(db))
	default:
		return nil, fmt.Errorf("%w: unknown source %q", corpus.ErrCorpusLoad, cfg.Corpus.Source)
	}
}

// NewEmbedder opens the configured embedder
func NewEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "tfidf":
		return embedding.NewTFIDFEmbedder(), nil
	case "onnx", "":
		e, err := embedding.NewOnnxEmbedder(embedding.OnnxConfig{
			LibraryPath:   cfg.ORTLibrary,
			ModelPath:     cfg.ModelPath,
			TokenizerPath: cfg.TokenizerPath,
			ModelID:       cfg.ModelID,
			MaxSeqLen:     cfg.MaxSeqLen,
			HiddenSize:    cfg.HiddenSize,
			InputNames:    cfg.InputNames,
			OutputName:    cfg.OutputName,
			CacheSize:     cfg.CacheSize,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder type %q", embedding.ErrEmbedding, cfg.Type)
	}
}

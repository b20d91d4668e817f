package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a key does not exist in the backend
var ErrObjectNotFound = errors.New("object not found")

// Storage is the object store behind uploaded documents and the corpus file
type Storage interface {
	// Archive stores an uploaded document and returns its key
	Archive(ctx context.Context, id uuid.UUID, filename string, data io.Reader) (string, error)

	// Open reads the object stored under key
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Remove deletes the object stored under key; a missing key is not an error
	Remove(ctx context.Context, key string) error
}

// Backend names a storage implementation
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
)

// Options holds configuration for storage
type Options struct {
	Backend      Backend
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	AWSAccessKey string
	AWSSecretKey string
}

// New creates a storage instance for the configured backend
func New(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Backend {
	case BackendLocal, "":
		if opts.LocalPath == "" {
			opts.LocalPath = "./storage/files"
		}
		return NewLocalStorage(opts.LocalPath)
	case BackendS3:
		if opts.S3Bucket == "" {
			return nil, errors.New("s3 bucket is required for S3 storage")
		}
		if opts.S3Region == "" {
			opts.S3Region = "us-east-1"
		}
		return NewS3Storage(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}

// ReadAll opens key and reads it fully
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// archiveKey builds the key for an uploaded document, grouped by upload day
func archiveKey(id uuid.UUID, filename string, now time.Time) string {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", "..", "_").Replace(name)
	if name == "" {
		name = "upload"
	}
	return fmt.Sprintf("uploads/%s/%s_%s%s", now.UTC().Format("2006/01/02"), id.String(), name, ext)
}

// contentType determines content type from filename
func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

package embedding

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// vectorCache keeps the most recently used embeddings, keyed by model and text.
// Stored and returned vectors are copies.
type vectorCache struct {
	entries *lru.Cache[string, []float32]
}

func newVectorCache(size int) (*vectorCache, error) {
	entries, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &vectorCache{entries: entries}, nil
}

func (c *vectorCache) get(key string) ([]float32, bool) {
	vec, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return cloneVector(vec), true
}

func (c *vectorCache) add(key string, vec []float32) {
	c.entries.Add(key, cloneVector(vec))
}

func (c *vectorCache) len() int { return c.entries.Len() }

func (c *vectorCache) purge() { c.entries.Purge() }

package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// OnnxConfig configures the ONNX Runtime encoder.
type OnnxConfig struct {
	LibraryPath   string   // onnxruntime shared library; empty uses the platform default
	ModelPath     string   // exported encoder, e.g. models/legal-bert/model.onnx
	TokenizerPath string   // HuggingFace tokenizer.json
	ModelID       string   // cache key and health identifier; defaults to the model directory name
	MaxSeqLen     int      // inputs are truncated to this many tokens
	HiddenSize    int      // width of the final hidden layer, i.e. the embedding dimension
	InputNames    []string // subset of input_ids, attention_mask, token_type_ids
	OutputName    string   // final hidden state, shape [1, seq, hidden]
	CacheSize     int      // embeddings kept in the LRU cache
}

func (c *OnnxConfig) applyDefaults() {
	if c.ModelID == "" && c.ModelPath != "" {
		c.ModelID = filepath.Base(filepath.Dir(c.ModelPath))
	}
	if c.MaxSeqLen <= 0 {
		c.MaxSeqLen = 512
	}
	if c.HiddenSize <= 0 {
		c.HiddenSize = 768
	}
	if len(c.InputNames) == 0 {
		c.InputNames = []string{"input_ids", "attention_mask", "token_type_ids"}
	}
	if c.OutputName == "" {
		c.OutputName = "last_hidden_state"
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 4096
	}
}

// OnnxEmbedder runs a BERT-family encoder through ONNX Runtime and mean-pools
// the final hidden layer. The most recent CacheSize results are kept in memory.
type OnnxEmbedder struct {
	cfg     OnnxConfig
	tk      *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
	ownsEnv bool

	mu    sync.RWMutex
	cache *vectorCache
}

// NewOnnxEmbedder loads the tokenizer, initializes the ORT environment if needed
// and opens an inference session.
func NewOnnxEmbedder(cfg OnnxConfig) (*OnnxEmbedder, error) {
	cfg.applyDefaults()
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("%w: model and tokenizer paths are required", ErrEmbedding)
	}

	cache, err := newVectorCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding cache: %v", ErrEmbedding, err)
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load tokenizer %s: %v", ErrEmbedding, cfg.TokenizerPath, err)
	}

	ownsEnv := false
	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: initialize onnxruntime: %v", ErrEmbedding, err)
		}
		ownsEnv = true
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, cfg.InputNames, []string{cfg.OutputName}, nil)
	if err != nil {
		if ownsEnv {
			_ = ort.DestroyEnvironment()
		}
		return nil, fmt.Errorf("%w: open model %s: %v", ErrEmbedding, cfg.ModelPath, err)
	}

	return &OnnxEmbedder{
		cfg:     cfg,
		tk:      tk,
		session: session,
		ownsEnv: ownsEnv,
		cache:   cache,
	}, nil
}

// Dimension returns the configured hidden size.
func (o *OnnxEmbedder) Dimension() int { return o.cfg.HiddenSize }

// ModelID returns the identifier used for cache keys.
func (o *OnnxEmbedder) ModelID() string { return o.cfg.ModelID }

// Close releases the session and, if this embedder created it, the ORT environment.
func (o *OnnxEmbedder) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	if o.session != nil {
		err = o.session.Destroy()
		o.session = nil
	}
	if o.ownsEnv {
		if derr := ort.DestroyEnvironment(); derr != nil && err == nil {
			err = derr
		}
		o.ownsEnv = false
	}
	o.cache.purge()
	return err
}

// Embed returns the mean-pooled embedding of text.
func (o *OnnxEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmbedding)
	}

	key := o.cacheKey(normalized)
	o.mu.RLock()
	if o.session == nil {
		o.mu.RUnlock()
		return nil, fmt.Errorf("%w: embedder is closed", ErrEmbedding)
	}
	cached, ok := o.cache.get(key)
	o.mu.RUnlock()
	if ok {
		return cached, nil
	}

	vec, err := o.encode(normalized)
	if err != nil {
		return nil, err
	}

	o.cache.add(key, vec)
	return vec, nil
}

func (o *OnnxEmbedder) encode(text string) ([]float32, error) {
	enc, err := o.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenize: %v", ErrEmbedding, err)
	}
	ids, typeIDs, mask := truncateTokens(enc.GetIds(), enc.GetTypeIds(), enc.GetAttentionMask(), o.cfg.MaxSeqLen)
	seqLen := len(ids)
	if seqLen == 0 {
		return nil, fmt.Errorf("%w: text produced no tokens", ErrEmbedding)
	}

	mask64 := toInt64(mask)
	if len(mask64) != seqLen {
		mask64 = ones(seqLen)
	}
	typeIDs64 := toInt64(typeIDs)
	if len(typeIDs64) != seqLen {
		typeIDs64 = make([]int64, seqLen)
	}

	shape := ort.NewShape(1, int64(seqLen))
	inputs := make([]ort.Value, 0, len(o.cfg.InputNames))
	defer func() {
		for _, in := range inputs {
			_ = in.Destroy()
		}
	}()
	for _, name := range o.cfg.InputNames {
		var data []int64
		switch name {
		case "input_ids":
			data = toInt64(ids)
		case "attention_mask":
			data = mask64
		case "token_type_ids":
			data = typeIDs64
		default:
			return nil, fmt.Errorf("%w: unsupported model input %q", ErrEmbedding, name)
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s tensor: %v", ErrEmbedding, name, err)
		}
		inputs = append(inputs, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(o.cfg.HiddenSize)))
	if err != nil {
		return nil, fmt.Errorf("%w: create output tensor: %v", ErrEmbedding, err)
	}
	defer out.Destroy()

	if err := o.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("%w: run model: %v", ErrEmbedding, err)
	}
	return meanPool(out.GetData(), seqLen, o.cfg.HiddenSize, mask64), nil
}

func (o *OnnxEmbedder) cacheKey(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, o.cfg.ModelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func ones(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Throughput
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casefinder_requests_total",
		Help: "Requests handled, by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	UnparsedReasoning = promauto.NewCounter(prometheus.CounterOpts{
		Name: "casefinder_reasoning_unparsed_total",
		Help: "Reasoning responses that could not be parsed as JSON",
	})

	// Latency
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "casefinder_search_duration_seconds",
		Help:    "Time taken to embed a query and search the index",
		Buckets: prometheus.DefBuckets,
	})

	EmbedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "casefinder_embed_duration_seconds",
		Help:    "Time taken to embed a single text",
		Buckets: prometheus.DefBuckets,
	})

	ReasoningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "casefinder_reasoning_duration_seconds",
		Help:    "Time taken by the reasoning model, including retries",
		Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40},
	})

	// State
	CorpusSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "casefinder_corpus_cases",
		Help: "Number of cases in the loaded corpus",
	})

	EmbeddingDimension = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "casefinder_embedding_dimension",
		Help: "Dimensionality of the index vectors",
	})
)

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casefinder-backend/models"
	"casefinder-backend/repository"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

var (
	ErrEmptyQuery       = errors.New("query text is empty")
	ErrHistoryDisabled  = errors.New("analysis history is disabled")
	ErrAnalysisNotFound = errors.New("analysis not found")
)

const excerptRunes = 500

// CaseSearcher finds the cases nearest to a text
type CaseSearcher interface {
	Search(ctx context.Context, text string, topK int) ([]models.CaseRecord, error)
}

// Analyzer extracts issues and references for a problem and its similar cases
type Analyzer interface {
	Analyze(ctx context.Context, input string, cases []models.CaseRecord) (models.AnalysisResult, error)
}

// AnalysisStore records analyses
type AnalysisStore interface {
	Create(ctx context.Context, a *models.Analysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	ListRecent(ctx context.Context, limit int) ([]models.Analysis, error)
}

// QueryService runs retrieval and analysis for one query and assembles the response
type QueryService struct {
	retriever CaseSearcher
	analyzer  Analyzer
	store     AnalysisStore
	topK      int
	log       logr.Logger
}

// QueryServiceOption is a functional option for QueryService
type QueryServiceOption func(*QueryService)

// QueryWithRetriever sets the case retriever
func QueryWithRetriever(r CaseSearcher) QueryServiceOption {
	return func(s *QueryService) {
		s.retriever = r
	}
}

// QueryWithAnalyzer sets the analysis step
func QueryWithAnalyzer(a Analyzer) QueryServiceOption {
	return func(s *QueryService) {
		s.analyzer = a
	}
}

// QueryWithAnalysisStore enables recording of analyses
func QueryWithAnalysisStore(store AnalysisStore) QueryServiceOption {
	return func(s *QueryService) {
		s.store = store
	}
}

// QueryWithTopK sets how many cases each query retrieves
func QueryWithTopK(k int) QueryServiceOption {
	return func(s *QueryService) {
		s.topK = k
	}
}

// QueryWithLogger sets the logger
func QueryWithLogger(l logr.Logger) QueryServiceOption {
	return func(s *QueryService) {
		s.log = l
	}
}

// NewQueryService creates a new query service
func NewQueryService(opts ...QueryServiceOption) *QueryService {
	s := &QueryService{topK: DefaultTopK, log: logr.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	s.log = s.log.WithName("query")
	return s
}

// QueryRequest is one query to run
type QueryRequest struct {
	Text     string
	Source   models.AnalysisSource
	Filename *string
}

// Process runs a raw text query
func (s *QueryService) Process(ctx context.Context, text string) (*models.QueryResponse, error) {
	return s.ProcessRequest(ctx, QueryRequest{Text: text, Source: models.SourceText})
}

// ProcessRequest retrieves similar cases, analyzes the problem and, when a store
// is configured, records the result. A failed recording is logged only.
func (s *QueryService) ProcessRequest(ctx context.Context, req QueryRequest) (*models.QueryResponse, error) {
	if s.retriever == nil || s.analyzer == nil {
		return nil, errors.New("query service is missing its retriever or analyzer")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyQuery
	}

	cases, err := s.retriever.Search(ctx, req.Text, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve cases: %w", err)
	}

	result, err := s.analyzer.Analyze(ctx, req.Text, cases)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	resp := &models.QueryResponse{
		Issues:     nonNilStrings(result.Issues),
		Cases:      cases,
		References: nonNilStrings(result.References),
		Links:      make([]*string, len(cases)),
		RawLLM:     result.RawOutput,
	}
	if resp.Cases == nil {
		resp.Cases = []models.CaseRecord{}
	}
	for i, c := range cases {
		resp.Links[i] = c.LinkOrNil()
	}

	if s.store != nil {
		if id, ok := s.record(ctx, req, resp); ok {
			resp.AnalysisID = &id
		}
	}
	return resp, nil
}

func (s *QueryService) record(ctx context.Context, req QueryRequest, resp *models.QueryResponse) (uuid.UUID, bool) {
	titles := make([]string, len(resp.Cases))
	for i, c := range resp.Cases {
		titles[i] = c.Title
	}
	source := req.Source
	if source == "" {
		source = models.SourceText
	}

	a := &models.Analysis{
		Source:       source,
		Filename:     req.Filename,
		InputExcerpt: excerpt(req.Text, excerptRunes),
		CaseTitles:   titles,
		Issues:       resp.Issues,
		References:   resp.References,
		RawOutput:    resp.RawLLM,
	}
	if err := s.store.Create(ctx, a); err != nil {
		s.log.Error(err, "failed to record analysis", "source", source)
		return uuid.Nil, false
	}
	return a.ID, true
}

// GetAnalysis returns a recorded analysis
func (s *QueryService) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAnalysisNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListAnalyses returns up to limit recorded analyses, newest first
func (s *QueryService) ListAnalyses(ctx context.Context, limit int) ([]models.Analysis, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	list, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Analysis{}
	}
	return list, nil
}

// HistoryEnabled reports whether analyses are recorded
func (s *QueryService) HistoryEnabled() bool { return s.store != nil }

func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}

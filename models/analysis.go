package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisSource identifies how the query text reached the service
type AnalysisSource string

const (
	SourceText   AnalysisSource = "text"
	SourceUpload AnalysisSource = "upload"
)

// AnalysisResult is the structured output of the reasoning step
type AnalysisResult struct {
	Issues     []string `json:"issues"`
	References []string `json:"references"`
	RawOutput  *string  `json:"raw_output,omitempty"` // Set only when the model output could not be parsed
}

// QueryResponse is the payload returned by /api/query and /api/upload
type QueryResponse struct {
	AnalysisID *uuid.UUID   `json:"analysis_id,omitempty"`
	Issues     []string     `json:"issues"`
	Cases      []CaseRecord `json:"cases"`
	References []string     `json:"references"`
	Links      []*string    `json:"links"`
	RawLLM     *string      `json:"raw_llm"`
}

// Analysis represents a recorded analysis in the history table
type Analysis struct {
	ID           uuid.UUID      `json:"id"`
	Source       AnalysisSource `json:"source"`
	Filename     *string        `json:"filename,omitempty"`
	InputExcerpt string         `json:"input_excerpt"`
	CaseTitles   []string       `json:"case_titles"`
	Issues       []string       `json:"issues"`
	References   []string       `json:"references"`
	RawOutput    *string        `json:"raw_output,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"casefinder-backend/metrics"
	"casefinder-backend/models"

	"github.com/go-logr/logr"
)

// maxInputRunes caps the user problem inside the prompt; the case list and
// the response instructions are always sent in full.
const maxInputRunes = 24000

const truncationNote = "\n[Content truncated due to length...]"

// ErrReasoningUnavailable is returned when the reasoning model cannot be reached or returns nothing
var ErrReasoningUnavailable = errors.New("reasoning service unavailable")

// Reasoner sends a prompt to a language model and returns its text response
type Reasoner interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnalysisService asks the reasoning model for the legal issues and references
// of a problem, given the cases retrieved for it
type AnalysisService struct {
	reasoner Reasoner
	log      logr.Logger
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// AnalysisWithReasoner sets the reasoning model
func AnalysisWithReasoner(r Reasoner) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.reasoner = r
	}
}

// AnalysisWithLogger sets the logger
func AnalysisWithLogger(l logr.Logger) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.log = l
	}
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(opts ...AnalysisServiceOption) *AnalysisService {
	s := &AnalysisService{log: logr.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithName("analysis")
	return s
}

// Analyze builds the prompt, calls the reasoner and salvages its output.
// Output that is not valid JSON is returned verbatim in RawOutput; only a
// failing reasoning call is an error.
func (s *AnalysisService) Analyze(ctx context.Context, input string, cases []models.CaseRecord) (models.AnalysisResult, error) {
	if s.reasoner == nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: no reasoner configured", ErrReasoningUnavailable)
	}

	if n := utf8.RuneCountInString(input); n > maxInputRunes {
		s.log.Info("problem text too long, truncating", "runes", n, "limit", maxInputRunes)
	}

	start := time.Now()
	text, err := s.reasoner.Generate(ctx, BuildAnalysisPrompt(input, cases))
	metrics.ReasoningDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrReasoningUnavailable) {
			return models.AnalysisResult{}, err
		}
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrReasoningUnavailable, err)
	}

	out := ParseReasoningOutput(text)
	if _, ok := out.(UnparsedOutput); ok {
		metrics.UnparsedReasoning.Inc()
		s.log.Info("reasoning output is not JSON, returning raw text", "chars", len(text))
	}
	return out.Result(), nil
}

// BuildAnalysisPrompt renders the problem and retrieved cases into the instruction sent to the model
func BuildAnalysisPrompt(input string, cases []models.CaseRecord) string {
	input = truncateRunes(strings.ToValidUTF8(input, "\uFFFD"), maxInputRunes)

	lines := make([]string, len(cases))
	for i, c := range cases {
		lines[i] = fmt.Sprintf("- %s (%s): %s", c.Title, c.Jurisdiction, c.Summary)
	}

	return fmt.Sprintf(`You are a legal research assistant.
User problem: %s

Similar cases retrieved:
%s

Tasks:
1. Identify the main legal issues.
2. Suggest relevant laws, statutes, or references.
3. Provide structured output.

Respond strictly in JSON format:
{
  "issues": ["..."],
  "references": ["..."]
}`, input, strings.Join(lines, "\n"))
}

// truncateRunes cuts s to at most limit runes, marking the cut
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	i, n := 0, 0
	for i < len(s) && n < limit {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n++
	}
	return s[:i] + truncationNote
}

// ReasoningOutput is either ParsedOutput or UnparsedOutput
type ReasoningOutput interface {
	Result() models.AnalysisResult
}

// ParsedOutput holds a response that decoded into the expected shape
type ParsedOutput struct {
	Issues     []string
	References []string
}

// UnparsedOutput holds a response that could not be decoded, verbatim
type UnparsedOutput struct {
	Raw string
}

// Result converts the output to the response shape with non-nil lists
func (p ParsedOutput) Result() models.AnalysisResult {
	return models.AnalysisResult{Issues: nonNilStrings(p.Issues), References: nonNilStrings(p.References)}
}

// Result returns empty lists and the raw text
func (u UnparsedOutput) Result() models.AnalysisResult {
	raw := u.Raw
	return models.AnalysisResult{Issues: []string{}, References: []string{}, RawOutput: &raw}
}

// ParseReasoningOutput strips a surrounding code fence, with an optional json
// language tag, and decodes {"issues": [...], "references": [...]}.
func ParseReasoningOutput(text string) ReasoningOutput {
	content := strings.TrimSpace(text)
	if strings.HasPrefix(content, "```") {
		parts := strings.Split(content, "```")
		content = parts[1]
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(content)), "json") {
			if _, rest, ok := strings.Cut(content, "\n"); ok {
				content = rest
			}
		}
	}
	content = strings.TrimSpace(content)

	// only an object can carry the two lists
	if !strings.HasPrefix(content, "{") {
		return UnparsedOutput{Raw: text}
	}
	var payload struct {
		Issues     []string `json:"issues"`
		References []string `json:"references"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return UnparsedOutput{Raw: text}
	}
	return ParsedOutput{Issues: payload.Issues, References: payload.References}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

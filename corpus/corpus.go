// Package corpus loads and validates the reference collection of legal cases.
//
// The order of records is significant: record i is stored at index position i,
// so every loader preserves source order exactly and a partially valid source
// is rejected as a whole.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"casefinder-backend/models"
)

// ErrCorpusLoad is returned when the source is missing, malformed or has an invalid record.
var ErrCorpusLoad = errors.New("corpus load failed")

// Corpus is an immutable, position-ordered sequence of cases.
type Corpus struct {
	cases []models.CaseRecord
}

type rawCase struct {
	Title        *string `json:"title"`
	Jurisdiction *string `json:"jurisdiction"`
	Summary      *string `json:"summary"`
	Link         *string `json:"link"`
}

// Parse decodes a JSON array of case objects.
func Parse(data []byte) (*Corpus, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: source is empty", ErrCorpusLoad)
	}
	var raw []rawCase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrCorpusLoad, err)
	}

	cases := make([]models.CaseRecord, 0, len(raw))
	for i, r := range raw {
		c, err := r.toRecord(i)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return New(cases)
}

// New validates records and assigns positions in slice order. The slice is copied.
func New(cases []models.CaseRecord) (*Corpus, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: no cases", ErrCorpusLoad)
	}
	out := make([]models.CaseRecord, len(cases))
	for i, c := range cases {
		if err := validate(i, c); err != nil {
			return nil, err
		}
		c.Position = i
		c.Link = c.LinkOrNil()
		out[i] = c
	}
	return &Corpus{cases: out}, nil
}

func (r rawCase) toRecord(i int) (models.CaseRecord, error) {
	fields := []struct {
		name string
		val  *string
	}{
		{"title", r.Title},
		{"jurisdiction", r.Jurisdiction},
		{"summary", r.Summary},
	}
	for _, f := range fields {
		if f.val == nil {
			return models.CaseRecord{}, fmt.Errorf("%w: record %d is missing %q", ErrCorpusLoad, i, f.name)
		}
	}
	return models.CaseRecord{
		Title:        *r.Title,
		Jurisdiction: *r.Jurisdiction,
		Summary:      *r.Summary,
		Link:         r.Link,
	}, nil
}

func validate(i int, c models.CaseRecord) error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return fmt.Errorf("%w: record %d has an empty %q", ErrCorpusLoad, i, "title")
	case strings.TrimSpace(c.Jurisdiction) == "":
		return fmt.Errorf("%w: record %d has an empty %q", ErrCorpusLoad, i, "jurisdiction")
	case strings.TrimSpace(c.Summary) == "":
		return fmt.Errorf("%w: record %d has an empty %q", ErrCorpusLoad, i, "summary")
	}
	return nil
}

// Len returns the number of cases.
func (c *Corpus) Len() int { return len(c.cases) }

// At returns the case at position i.
func (c *Corpus) At(i int) (models.CaseRecord, bool) {
	if i < 0 || i >= len(c.cases) {
		return models.CaseRecord{}, false
	}
	return copyCase(c.cases[i]), true
}

// All returns a copy of every case in order.
func (c *Corpus) All() []models.CaseRecord {
	out := make([]models.CaseRecord, len(c.cases))
	for i, rec := range c.cases {
		out[i] = copyCase(rec)
	}
	return out
}

// Summaries returns the text that gets embedded for each case, in order.
func (c *Corpus) Summaries() []string {
	out := make([]string, len(c.cases))
	for i, rec := range c.cases {
		out[i] = rec.Summary
	}
	return out
}

func copyCase(c models.CaseRecord) models.CaseRecord {
	c.Link = c.LinkOrNil()
	return c
}

package models

// CaseRecord represents a single legal case from the reference corpus
type CaseRecord struct {
	Position     int     `json:"-"` // Index in the corpus, also the index position
	Title        string  `json:"title"`
	Jurisdiction string  `json:"jurisdiction"`
	Summary      string  `json:"summary"`
	Link         *string `json:"link,omitempty"`
}

// LinkOrNil returns the case link, or nil when the corpus entry has none
func (c CaseRecord) LinkOrNil() *string {
	if c.Link == nil || *c.Link == "" {
		return nil
	}
	link := *c.Link
	return &link
}

// RankedCase pairs a retrieved case with its squared L2 distance to the query
type RankedCase struct {
	Case     CaseRecord `json:"case"`
	Distance float32    `json:"distance"` // Vector distance, lower is closer
}

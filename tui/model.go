// Package tui is an interactive terminal front end for local case search.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"casefinder-backend/models"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Searcher is the TUI-facing subset of the retriever.
type Searcher interface {
	SearchRanked(ctx context.Context, text string, topK int) ([]models.RankedCase, error)
}

// Model is the Bubble Tea model for the search screen.
type Model struct {
	searcher  Searcher
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []models.RankedCase
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a model that asks for topK cases per query.
func New(searcher Searcher, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Describe the legal problem and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		searcher: searcher,
		topK:     topK,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Index loaded. Type to search.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, query box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m.search(q)
				return m, nil
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) search(q string) {
	res, err := m.searcher.SearchRanked(context.Background(), q, m.topK)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.results = nil
	} else {
		m.status = fmt.Sprintf("%d cases for %q (up/down to browse)", len(res), q)
		m.results = res
		m.cursor = 0
		m.lastQuery = q
	}
	m.viewport.SetContent(m.renderCurrentResult())
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Case Finder")
	summary := mutedStyle.Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	terms := queryTerms(m.lastQuery)
	render := func(s string) string { return highlightStyle.Render(s) }
	mark := func(s string) string { return markTerms(s, terms, render) }

	var b strings.Builder
	fmt.Fprintf(&b, "Case %d/%d  distance=%.4f\n", m.cursor+1, len(m.results), r.Distance)
	b.WriteString(titleStyle.Render(mark(r.Case.Title)))
	fmt.Fprintf(&b, " (%s)\n\n", mark(r.Case.Jurisdiction))
	b.WriteString(mark(r.Case.Summary))
	if matched := matchedTerms(r.Case, terms); len(matched) > 0 {
		b.WriteString("\n\n" + mutedStyle.Render("Matched terms: "+strings.Join(matched, ", ")))
	} else if len(terms) > 0 {
		b.WriteString("\n\n" + mutedStyle.Render("No query terms in this case; ranked by meaning."))
	}
	if link := r.Case.LinkOrNil(); link != nil {
		b.WriteString("\n\n" + linkStyle.Render(*link))
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	linkStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// queryTerms lowercases the query into distinct words of at least three letters, in query order.
func queryTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(query), -1) {
		if utf8.RuneCountInString(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// matchedTerms lists the terms that occur in the case title, jurisdiction or summary.
func matchedTerms(c models.CaseRecord, terms []string) []string {
	words := make(map[string]bool)
	for _, field := range []string{c.Title, c.Jurisdiction, c.Summary} {
		for _, w := range wordRe.FindAllString(strings.ToLower(field), -1) {
			words[w] = true
		}
	}
	var out []string
	for _, t := range terms {
		if words[t] {
			out = append(out, t)
		}
	}
	return out
}

// markTerms passes every word of text that is one of terms through render.
func markTerms(text string, terms []string, render func(string) string) string {
	if len(terms) == 0 {
		return text
	}
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[t] = true
	}
	var b strings.Builder
	last := 0
	for _, loc := range wordRe.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		if !set[strings.ToLower(word)] {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(render(word))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

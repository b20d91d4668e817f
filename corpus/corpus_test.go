package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"casefinder-backend/models"
	"casefinder-backend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `[
	{"title": "Smith v. Jones", "jurisdiction": "NY", "summary": "contract dispute over lease", "link": "https://example.org/1"},
	{"title": "State v. Doe", "jurisdiction": "CA", "summary": "criminal theft case"},
	{"title": "In re Marriage of Roe", "jurisdiction": "TX", "summary": "divorce custody battle", "link": ""}
]`

func TestParsePreservesOrder(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	all := c.All()
	assert.Equal(t, "Smith v. Jones", all[0].Title)
	assert.Equal(t, "State v. Doe", all[1].Title)
	assert.Equal(t, "In re Marriage of Roe", all[2].Title)
	for i, rec := range all {
		assert.Equal(t, i, rec.Position)
	}

	assert.Equal(t, []string{"contract dispute over lease", "criminal theft case", "divorce custody battle"}, c.Summaries())
}

func TestParseLinks(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	first, ok := c.At(0)
	require.True(t, ok)
	require.NotNil(t, first.Link)
	assert.Equal(t, "https://example.org/1", *first.Link)

	second, _ := c.At(1)
	assert.Nil(t, second.Link)
	third, _ := c.At(2)
	assert.Nil(t, third.Link)
}

func TestParseRejectsMissingField(t *testing.T) {
	_, err := Parse([]byte(`[
		{"title": "A", "jurisdiction": "NY", "summary": "s"},
		{"title": "B", "summary": "s"}
	]`))
	require.ErrorIs(t, err, ErrCorpusLoad)
	assert.Contains(t, err.Error(), "record 1")
	assert.Contains(t, err.Error(), "jurisdiction")
}

func TestParseRejectsBlankField(t *testing.T) {
	_, err := Parse([]byte(`[{"title": "A", "jurisdiction": "NY", "summary": "   "}]`))
	require.ErrorIs(t, err, ErrCorpusLoad)
	assert.Contains(t, err.Error(), "summary")
}

func TestParseRejectsMalformedAndEmpty(t *testing.T) {
	for name, input := range map[string]string{
		"malformed": `[{"title": `,
		"object":    `{"title": "A"}`,
		"empty":     ``,
		"no cases":  `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.ErrorIs(t, err, ErrCorpusLoad)
		})
	}
}

func TestAtOutOfRange(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	_, ok := c.At(3)
	assert.False(t, ok)
	_, ok = c.At(-1)
	assert.False(t, ok)
}

func TestAllReturnsCopies(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	all := c.All()
	all[0].Title = "changed"
	*all[0].Link = "changed"

	again, _ := c.At(0)
	assert.Equal(t, "Smith v. Jones", again.Title)
	assert.Equal(t, "https://example.org/1", *again.Link)
}

func TestLoadFromStorage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cases.json"), []byte(sample), 0644))
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	c, err := LoadFromStorage(context.Background(), store, "cases.json")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	_, err = LoadFromStorage(context.Background(), store, "missing.json")
	assert.ErrorIs(t, err, ErrCorpusLoad)

	_, err = LoadFromStorage(context.Background(), store, "")
	assert.ErrorIs(t, err, ErrCorpusLoad)
}

type fakeLister struct {
	cases []models.CaseRecord
	err   error
}

func (f fakeLister) ListOrdered(ctx context.Context) ([]models.CaseRecord, error) {
	return f.cases, f.err
}

func TestLoadFromRepository(t *testing.T) {
	c, err := LoadFromRepository(context.Background(), fakeLister{cases: []models.CaseRecord{
		{Position: 10, Title: "A", Jurisdiction: "NY", Summary: "one"},
		{Position: 11, Title: "B", Jurisdiction: "CA", Summary: "two"},
	}})
	require.NoError(t, err)
	first, _ := c.At(0)
	assert.Equal(t, 0, first.Position)

	_, err = LoadFromRepository(context.Background(), fakeLister{err: errors.New("connection refused")})
	assert.ErrorIs(t, err, ErrCorpusLoad)

	_, err = LoadFromRepository(context.Background(), fakeLister{})
	assert.ErrorIs(t, err, ErrCorpusLoad)
}

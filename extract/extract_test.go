package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("brief.pdf"))
	assert.True(t, Supported("Brief.DOCX"))
	assert.True(t, Supported(" notes.txt "))
	assert.False(t, Supported("notes.doc"))
	assert.False(t, Supported("archive.pdf.zip"))
	assert.False(t, Supported("README"))
}

func TestTextUnsupportedFormat(t *testing.T) {
	_, err := Text([]byte("hello"), "notes.rtf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPlainTextUTF8(t *testing.T) {
	got, err := Text([]byte("  Tenant withheld rent — café \n"), "facts.txt")
	require.NoError(t, err)
	assert.Equal(t, "Tenant withheld rent — café", got)
}

func TestPlainTextFallsBackToLatin1(t *testing.T) {
	// 0xE9 is é in ISO-8859-1 and an invalid lone byte in UTF-8
	got, err := Text([]byte("Caf\xe9 lease dispute\xa7 12"), "facts.txt")
	require.NoError(t, err)
	assert.Equal(t, "Café lease dispute§ 12", got)
}

func TestPlainTextEmpty(t *testing.T) {
	_, err := Text([]byte("   \n\t "), "empty.txt")
	assert.ErrorIs(t, err, ErrExtraction)
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocxParagraphs(t *testing.T) {
	data := buildDocx(t,
		`<w:p><w:r><w:t>The landlord </w:t></w:r><w:r><w:t>breached the lease.</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>   </w:t></w:r></w:p>`+
			`<w:p></w:p>`+
			`<w:p><w:r><w:t>Rent</w:t><w:tab/><w:t>withheld</w:t></w:r></w:p>`)

	got, err := Text(data, "facts.docx")
	require.NoError(t, err)
	assert.Equal(t, "The landlord breached the lease.\nRent\twithheld", got)
}

func TestDocxWithoutText(t *testing.T) {
	_, err := Text(buildDocx(t, `<w:p></w:p>`), "blank.docx")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestDocxCorrupt(t *testing.T) {
	_, err := Text([]byte("not a zip"), "broken.docx")
	assert.ErrorIs(t, err, ErrExtraction)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = Text(buf.Bytes(), "nobody.docx")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestPDFCorrupt(t *testing.T) {
	_, err := Text([]byte("definitely not a pdf"), "broken.pdf")
	assert.ErrorIs(t, err, ErrExtraction)
}

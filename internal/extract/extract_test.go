package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextPlainFile(t *testing.T) {
	text, err := Text("notes.txt", []byte("alpha beta gamma"))
	require.NoError(t, err)
	assert.Equal(t, "alpha beta gamma", text)
}

func TestTextUnsupportedExtension(t *testing.T) {
	_, err := Text("archive.tar.gz", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Text("noextension", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTextExtensionCaseInsensitive(t *testing.T) {
	text, err := Text("NOTES.TXT", []byte("upper case name"))
	require.NoError(t, err)
	assert.Equal(t, "upper case name", text)
}

// buildDocx assembles a minimal WordprocessingML archive in memory.
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestTextDocxParagraphs(t *testing.T) {
	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>first paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>second</w:t></w:r><w:r><w:t> paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`

	text, err := Text("report.docx", buildDocx(t, docXML))
	require.NoError(t, err)
	assert.Equal(t, "first paragraph second paragraph", text)
}

func TestTextDocxMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Text("broken.docx", buf.Bytes())
	assert.Error(t, err)
}

func TestTextCorruptPdf(t *testing.T) {
	_, err := Text("broken.pdf", []byte("not a pdf at all"))
	assert.Error(t, err)
}

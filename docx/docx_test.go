package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDOCX creates a minimal DOCX file in memory with the given body XML.
func createTestDOCX(t *testing.T, body string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	ct, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(contentTypesXML))
	require.NoError(t, err)

	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = doc.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="` + wordNS + `"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func TestReadBytes_Paragraphs(t *testing.T) {
	data := createTestDOCX(t, para("Alex Smith went to the market.")+para("Alex bought apples."))

	doc, err := ReadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alex Smith went to the market.", "Alex bought apples."}, doc.Paragraphs)
	assert.Equal(t, "Alex Smith went to the market.\nAlex bought apples.", doc.Text())
}

func TestReadBytes_RunsTabsAndBreaks(t *testing.T) {
	body := `<w:p>` +
		`<w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>` +
		`<w:r><w:t xml:space="preserve">Hello </w:t></w:r>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>world</w:t></w:r>` +
		`<w:r><w:tab/><w:t>A&amp;B</w:t><w:br/><w:t>next</w:t></w:r>` +
		`</w:p>`

	doc, err := ReadBytes(createTestDOCX(t, body))
	require.NoError(t, err)
	require.Len(t, doc.Paragraphs, 1)
	assert.Equal(t, "Hello world\tA&B\nnext", doc.Paragraphs[0])
}

func TestReadBytes_SkipsTables(t *testing.T) {
	body := para("before") +
		`<w:tbl><w:tr><w:tc>` + para("cell") + `</w:tc></w:tr></w:tbl>` +
		para("after")

	doc, err := ReadBytes(createTestDOCX(t, body))
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, doc.Paragraphs)
}

func TestReadBytes_EmptyParagraphs(t *testing.T) {
	doc, err := ReadBytes(createTestDOCX(t, para("one")+`<w:p/>`+para("three")))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "", "three"}, doc.Paragraphs)
}

func TestReadBytes_Invalid(t *testing.T) {
	t.Run("not a zip", func(t *testing.T) {
		_, err := ReadBytes([]byte("plain text"))
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("zip without document", func(t *testing.T) {
		buf := new(bytes.Buffer)
		w := zip.NewWriter(buf)
		f, err := w.Create("hello.txt")
		require.NoError(t, err)
		_, _ = f.Write([]byte("hi"))
		require.NoError(t, w.Close())

		_, err = ReadBytes(buf.Bytes())
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("broken xml", func(t *testing.T) {
		_, err := ReadBytes(createTestDOCX(t, `<w:p><w:r><w:t>oops</w:r>`))
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func TestWrite_SingleParagraph(t *testing.T) {
	text := "Rahul Sharma est allé au marché.\nRahul a acheté des pommes.\tFin <&>"

	data, err := Bytes(text)
	require.NoError(t, err)

	doc, err := ReadBytes(data)
	require.NoError(t, err)
	require.Len(t, doc.Paragraphs, 1, "output should hold one body paragraph")
	assert.Equal(t, text, doc.Paragraphs[0])
}

func TestWrite_PackageParts(t *testing.T) {
	data, err := Bytes("")
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		names[f.Name] = string(b)
	}

	assert.Contains(t, names, "[Content_Types].xml")
	assert.Contains(t, names, "_rels/.rels")
	require.Contains(t, names, "word/document.xml")
	assert.True(t, strings.Contains(names["word/document.xml"], "<w:body><w:p>"))

	doc, err := ReadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, doc.Paragraphs)
}

// Package docx reads the body paragraphs of a Word (DOCX) document and
// writes a minimal DOCX holding a single paragraph of text.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ContentType is the MIME type of DOCX documents.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// wordNS is the WordprocessingML main namespace.
const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// ErrInvalidDocument is returned when the input is not a readable DOCX file.
var ErrInvalidDocument = errors.New("not a valid DOCX document")

// Document is the text content of a DOCX file.
type Document struct {
	// Paragraphs are the top-level body paragraphs in document order.
	Paragraphs []string
}

// Text joins the paragraphs with newlines.
func (d *Document) Text() string {
	return strings.Join(d.Paragraphs, "\n")
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Read extracts the body paragraphs from a DOCX archive of the given size.
// Paragraphs nested in tables are skipped; tabs and line breaks inside a
// paragraph become "\t" and "\n".
func Read(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		defer rc.Close()

		paras, err := parseParagraphs(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return &Document{Paragraphs: paras}, nil
	}
	return nil, fmt.Errorf("%w: word/document.xml not found", ErrInvalidDocument)
}

// ReadBytes is Read for an in-memory file.
func ReadBytes(data []byte) (*Document, error) {
	return Read(bytes.NewReader(data), int64(len(data)))
}

// parseParagraphs walks word/document.xml token by token, because run text,
// tabs and breaks are sibling elements whose order matters.
func parseParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paras    []string
		current  strings.Builder
		inBody   bool
		inText   bool
		inTabs   bool // inside w:tabs, whose w:tab children are tab stops
		tblDepth int
		pDepth   int // >1 inside a text box nested in the collected paragraph
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "body":
				inBody = true
			case "tbl":
				tblDepth++
			case "p":
				if inBody && tblDepth == 0 {
					pDepth++
					if pDepth == 1 {
						current.Reset()
					}
				}
			case "t":
				inText = pDepth == 1
			case "tabs":
				inTabs = true
			case "tab":
				if pDepth == 1 && !inTabs {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if pDepth == 1 {
					current.WriteByte('\n')
				}
			}

		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "body":
				inBody = false
			case "tbl":
				tblDepth--
			case "p":
				if pDepth > 0 && tblDepth == 0 {
					if pDepth == 1 {
						paras = append(paras, current.String())
					}
					pDepth--
				}
			case "tabs":
				inTabs = false
			case "t":
				inText = false
			}

		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paras, nil
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// Write stores text as the only body paragraph of a new DOCX document.
// Newlines become line breaks and tabs become tab stops, so Read returns
// text unchanged.
func Write(w io.Writer, text string) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(relsXML)},
		{"word/document.xml", documentXML(text)},
	}
	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("creating %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.body); err != nil {
			return fmt.Errorf("writing %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

// Bytes is Write into memory.
func Bytes(text string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, text); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func documentXML(text string) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="` + wordNS + `"><w:body><w:p><w:r>`)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteString(`<w:br/>`)
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				b.WriteString(`<w:tab/>`)
			}
			if seg == "" {
				continue
			}
			b.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(&b, []byte(seg))
			b.WriteString(`</w:t>`)
		}
	}

	b.WriteString(`</w:r></w:p><w:sectPr/></w:body></w:document>`)
	return b.Bytes()
}

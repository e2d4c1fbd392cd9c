package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// A4 in twentieths of a point.
const (
	pageWidthTwips  = 11906
	pageHeightTwips = 16838
	marginTwips     = 794
	mainColTwips    = 6700
	sideColTwips    = 3618
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// zipEpoch pins entry timestamps so identical documents produce identical bytes.
var zipEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// DOCX renders doc as a WordprocessingML package, one page per layout page.
func DOCX(doc Document) ([]byte, error) {
	body := documentXML(doc)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/document.xml", body},
	}
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: zipEpoch})
		if err != nil {
			return nil, fmt.Errorf("docx create %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("docx write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx close: %w", err)
	}
	return buf.Bytes(), nil
}

func documentXML(doc Document) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="` + wordNS + `"><w:body>`)

	for i, page := range doc.Pages {
		if i > 0 {
			b.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
		writeTopBar(&b)
		if h := page.Header; h != nil {
			writeParagraph(&b, h.Name, StyleMap["name"])
			if h.Title != "" {
				writeParagraph(&b, h.Title, StyleMap["title"])
			}
			if contacts := h.Contacts(); len(contacts) > 0 {
				writeParagraph(&b, strings.Join(contacts, "  |  "), StyleMap["meta"])
			}
		}
		if page.Summary != "" {
			writeParagraph(&b, "Professional Summary", StyleMap["sectionHeading"])
			writeParagraph(&b, page.Summary, StyleMap["body"])
		}
		if len(page.Main) > 0 || len(page.Side) > 0 {
			writeColumns(&b, page)
		}
	}

	fmt.Fprintf(&b, `<w:sectPr><w:pgSz w:w="%d" w:h="%d"/><w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="0" w:footer="0" w:gutter="0"/></w:sectPr>`,
		pageWidthTwips, pageHeightTwips, marginTwips, marginTwips, marginTwips, marginTwips)
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func writeTopBar(b *strings.Builder) {
	b.WriteString(`<w:p><w:pPr><w:shd w:val="clear" w:color="auto" w:fill="` + AccentColor + `"/><w:spacing w:after="200"/></w:pPr></w:p>`)
}

func writeColumns(b *strings.Builder, page Page) {
	fmt.Fprintf(b, `<w:tbl><w:tblPr><w:tblW w:w="%d" w:type="dxa"/><w:tblLayout w:type="fixed"/></w:tblPr>`, mainColTwips+sideColTwips)
	fmt.Fprintf(b, `<w:tblGrid><w:gridCol w:w="%d"/><w:gridCol w:w="%d"/></w:tblGrid><w:tr>`, mainColTwips, sideColTwips)

	fmt.Fprintf(b, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/></w:tcPr>`, mainColTwips)
	for _, s := range page.Main {
		writeParagraph(b, sectionHeading(s), StyleMap["sectionHeading"])
		for _, e := range s.Entries {
			writeParagraph(b, e.Heading, StyleMap["entryHeading"])
			if e.Subheading != "" {
				writeParagraph(b, e.Subheading, StyleMap["meta"])
			}
			if e.Description != "" {
				for _, line := range strings.Split(e.Description, "\n") {
					writeParagraph(b, line, StyleMap["body"])
				}
			}
		}
	}
	// A table cell must end with a paragraph.
	b.WriteString(`<w:p/></w:tc>`)

	fmt.Fprintf(b, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/></w:tcPr>`, sideColTwips)
	for _, s := range page.Side {
		writeParagraph(b, sectionHeading(s), StyleMap["sectionHeading"])
		for _, it := range s.Items {
			writeParagraph(b, "• "+it.Label(), StyleMap["body"])
		}
	}
	b.WriteString(`<w:p/></w:tc></w:tr></w:tbl>`)
}

func sectionHeading(s Section) string {
	if s.Continued {
		return s.Title + " (continued)"
	}
	return s.Title
}

func writeParagraph(b *strings.Builder, text string, style RunStyle) {
	b.WriteString(`<w:p><w:r>`)
	writeRunProps(b, style)
	b.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(b, []byte(text))
	b.WriteString(`</w:t></w:r></w:p>`)
}

func writeRunProps(b *strings.Builder, style RunStyle) {
	if !style.Bold && !style.Italic && style.Size == 0 && style.Color == "" {
		return
	}
	b.WriteString(`<w:rPr>`)
	if style.Bold {
		b.WriteString(`<w:b/>`)
	}
	if style.Italic {
		b.WriteString(`<w:i/>`)
	}
	if style.Color != "" {
		b.WriteString(`<w:color w:val="` + style.Color + `"/>`)
	}
	if style.Size > 0 {
		b.WriteString(`<w:sz w:val="` + strconv.Itoa(style.Size) + `"/>`)
	}
	b.WriteString(`</w:rPr>`)
}

package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/resume.html.tmpl
var templateFS embed.FS

var htmlTemplate = template.Must(template.ParseFS(templateFS, "templates/resume.html.tmpl"))

type htmlView struct {
	Name      string
	PageCount int
	Colors    palette
	Pages     []Page
}

// HTML renders doc as a standalone A4 HTML document.
func HTML(doc Document) ([]byte, error) {
	view := htmlView{
		PageCount: len(doc.Pages),
		Colors:    colors,
		Pages:     doc.Pages,
	}
	if len(doc.Pages) > 0 && doc.Pages[0].Header != nil {
		view.Name = doc.Pages[0].Header.Name
	}
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

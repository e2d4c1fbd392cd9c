package main

// Render a sample resume to HTML and DOCX (and PDF when -chrome is set):
//   go run ./cmd/renderdemo -out ./out

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resume-builder/resume/model"
	"resume-builder/resume/render"
)

func main() {
	outDir := flag.String("out", "./out", "output directory")
	chrome := flag.String("chrome", "", "path to a Chrome binary; enables PDF output")
	flag.Parse()

	content := sampleContent()
	if err := content.Validate(); err != nil {
		fail("sample content invalid", err)
	}
	doc := render.Layout(content)

	html, err := render.HTML(doc)
	if err != nil {
		fail("render html", err)
	}
	docx, err := render.DOCX(doc)
	if err != nil {
		fail("render docx", err)
	}
	if err := checkDocx(docx); err != nil {
		fail("docx validation", err)
	}

	outputs := map[string][]byte{
		"sample_resume.html": html,
		"sample_resume.docx": docx,
	}
	if *chrome != "" {
		pdf, err := render.PDFExporter{ChromePath: *chrome, Timeout: time.Minute}.Export(context.Background(), html)
		if err != nil {
			fail("render pdf", err)
		}
		outputs["sample_resume.pdf"] = pdf
	}
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		fail("marshal content", err)
	}
	outputs["sample_resume.json"] = payload

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fail("create output dir", err)
	}
	for name, data := range outputs {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fail("write "+name, err)
		}
		fmt.Printf("OK: wrote %s (%d pages)\n", path, len(doc.Pages))
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

func sampleContent() model.Content {
	content := model.Content{
		PersonalDetails: &model.PersonalDetails{
			ResumeJobTitle: "Senior Backend Engineer",
			FirstName:      "Jordan",
			LastName:       "Lee",
			Email:          "jordan.lee@example.com",
			Phone:          "+1-555-0102",
			Country:        "USA",
			City:           "Austin",
			Summary:        "Backend engineer with 8+ years of experience building resilient APIs and data services.",
		},
		Jobs: []model.Job{
			{
				JobTitle:    "Senior Backend Engineer",
				Employer:    "Acme Logistics",
				Description: "Designed a routing service that reduced shipment latency by 18%. Added distributed tracing across the fleet.",
				StartDate:   "2021-04-01",
				Country:     "USA",
				City:        "Austin",
			},
			{
				JobTitle:    "Backend Engineer",
				Employer:    "Blue Harbor Systems",
				Description: "Built event-driven ingestion pipelines for compliance data feeds.",
				StartDate:   "2018-01-15",
				EndDate:     "2021-03-31",
				Country:     "USA",
				City:        "Seattle",
			},
		},
		Education: []model.Education{
			{
				School:    "University of Texas",
				Degree:    "BSc",
				Field:     "Computer Science",
				StartDate: "2010-09-01",
				EndDate:   "2014-06-01",
			},
		},
		Skills: []model.Skill{
			{Name: "Go", ProficiencyLevel: "Expert"},
			{Name: "PostgreSQL", ProficiencyLevel: "Advanced"},
		},
		Tools: []model.Tool{
			{Name: "Kubernetes", ProficiencyLevel: "Advanced"},
			{Name: "Terraform"},
		},
		Languages: []model.Language{
			{Name: "English", ProficiencyLevel: "Native"},
			{Name: "Spanish", ProficiencyLevel: "Conversational"},
		},
	}
	content.EnsureIDs()
	return content
}

func checkDocx(data []byte) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	for _, file := range reader.File {
		if strings.ReplaceAll(file.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		body, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		if !bytes.Contains(body, []byte("Jordan Lee")) {
			return fmt.Errorf("document.xml does not contain the candidate name")
		}
		return nil
	}
	return fmt.Errorf("document.xml not found in docx")
}

package generation

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed prompts/resume_v1.txt
var promptV1 string

// PromptVersion identifies the prompt template in logs.
const PromptVersion = "resume_v1"

const (
	systemPrompt        = "You are a resume writing engine. Respond with JSON only. No markdown. Never omit keys."
	systemPromptFixJSON = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."
)

// Message is a provider-neutral chat message.
type Message struct {
	Role    string
	Content string
}

// BuildPrompt creates the chat messages for a generation request.
func BuildPrompt(req Request) []Message {
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "developer", Content: instructions(req)},
		{Role: "user", Content: userPrompt(req)},
	}
}

// BuildFixPrompt asks the provider to repair a previous answer.
func BuildFixPrompt(req Request, raw []byte, problem error) []Message {
	msg := fmt.Sprintf("Fix this JSON to match the schema exactly. Output JSON only.\nProblem: %v\nJSON:\n%s", problem, string(raw))
	return []Message{
		{Role: "system", Content: systemPromptFixJSON},
		{Role: "developer", Content: instructions(req)},
		{Role: "user", Content: msg},
	}
}

func instructions(req Request) string {
	replacer := strings.NewReplacer(
		"{{JOB_TITLE}}", orNA(req.JobTitle),
		"{{EMPLOYER}}", orNA(req.Employer),
		"{{SCHEMA}}", SchemaJSON(),
	)
	return replacer.Replace(promptV1)
}

func userPrompt(req Request) string {
	p := req.Profile
	var b strings.Builder
	b.WriteString("Job Title:\n")
	b.WriteString(orNA(req.JobTitle))
	b.WriteString("\n\nEmployer:\n")
	b.WriteString(orNA(req.Employer))
	b.WriteString("\n\nJob Description:\n")
	b.WriteString(orNA(req.JobDetails))
	b.WriteString("\n\nCandidate Profile:\n")
	for _, kv := range [][2]string{
		{"Name", strings.TrimSpace(p.FirstName + " " + p.LastName)},
		{"Email", p.Email},
		{"Phone", p.Phone},
		{"City", p.City},
		{"Country", p.Country},
		{"Summary", p.Summary},
	} {
		if strings.TrimSpace(kv[1]) == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", kv[0], strings.TrimSpace(kv[1]))
	}
	if len(p.Details) > 0 {
		b.WriteString("Details (JSON):\n")
		b.Write(p.Details)
		b.WriteString("\n")
	}
	if text := strings.TrimSpace(p.SourceText); text != "" {
		b.WriteString("Resume Text:\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return strings.TrimSpace(s)
}

// Package openai implements generation.Generator on the OpenAI Chat
// Completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-builder/internal/generation"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/resume/model"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config holds provider settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Generator calls chat completions in JSON mode and parses the answer into
// resume content. An answer that fails validation gets one repair round.
type Generator struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewGenerator constructs a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Generator{
		apiKey:     cfg.APIKey,
		model:      strings.TrimSpace(cfg.Model),
		endpoint:   strings.TrimRight(base, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// errTemperatureUnsupported marks a provider rejection of temperature=0.
var errTemperatureUnsupported = errors.New("temperature unsupported")

// Generate implements generation.Generator.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (model.Content, error) {
	raw, err := g.complete(ctx, generation.BuildPrompt(req))
	if err != nil {
		return model.Content{}, err
	}
	content, parseErr := generation.ParseContent(raw)
	if parseErr == nil {
		return content, nil
	}

	telemetry.Warn("generation.repair", map[string]any{
		"model":          g.model,
		"prompt_version": generation.PromptVersion,
		"error":          parseErr,
	})
	raw, err = g.complete(ctx, generation.BuildFixPrompt(req, raw, parseErr))
	if err != nil {
		return model.Content{}, err
	}
	return generation.ParseContent(raw)
}

// complete sends messages and returns the raw assistant content. A model
// that rejects temperature=0 is retried once without it.
func (g *Generator) complete(ctx context.Context, messages []generation.Message) ([]byte, error) {
	withTemp := !isGPT5(g.model)
	raw, err := g.completeOnce(ctx, messages, withTemp)
	if withTemp && errors.Is(err, errTemperatureUnsupported) {
		raw, err = g.completeOnce(ctx, messages, false)
	}
	return raw, err
}

func (g *Generator) completeOnce(ctx context.Context, messages []generation.Message, withTemp bool) ([]byte, error) {
	reqMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, chatMessage{Role: m.Role, Content: m.Content})
	}
	reqBody := chatRequest{
		Model:          g.model,
		Messages:       reqMessages,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	if withTemp {
		temp := float32(0)
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("openai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		if withTemp && strings.Contains(strings.ToLower(parsed.Error.Message), "temperature") {
			return nil, fmt.Errorf("%w: %s", errTemperatureUnsupported, parsed.Error.Message)
		}
		return nil, fmt.Errorf("openai http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("openai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("openai response empty content")
	}

	logUsage(g.model, time.Since(started), parsed.Usage)
	return []byte(content), nil
}

func logUsage(model string, took time.Duration, usage *chatUsage) {
	fields := map[string]any{
		"model":          model,
		"prompt_version": generation.PromptVersion,
		"duration_ms":    took.Milliseconds(),
	}
	if usage != nil {
		fields["prompt_tokens"] = usage.PromptTokens
		fields["completion_tokens"] = usage.CompletionTokens
		fields["total_tokens"] = usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ generation.Generator = (*Generator)(nil)

// Package themegen calls an external text-generation service (OpenRouter)
// to produce theme css_vars documents from a designer prompt.
package themegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/gagglehome/backend/models"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel   = "openai/gpt-4.1"
)

// ReferenceTheme is an existing theme handed to the generator as context
// for "modify @current" style prompts.
type ReferenceTheme struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	CSSVars     json.RawMessage `json:"css_vars"`
}

// GeneratedTheme is the schema the service must return.
type GeneratedTheme struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Version     string          `json:"version"`
	CSSVars     json.RawMessage `json:"css_vars"`
}

type Client struct {
	httpc   *retryablehttp.Client
	baseURL string
	apiKey  string
	model   string
	referer string

	log *slog.Logger
}

// NewClient builds an OpenRouter client. The model may be empty to use
// the default. referer is sent as HTTP-Referer per OpenRouter convention.
func NewClient(apiKey, model, referer string) *Client {
	if model == "" {
		model = defaultModel
	}
	httpc := retryablehttp.NewClient()
	httpc.RetryMax = 3
	httpc.Logger = nil
	httpc.HTTPClient.Timeout = 30 * time.Second

	return &Client{
		httpc:   httpc,
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		referer: referer,
		log:     slog.Default().With("system", "themegen"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateTheme asks the service for a theme matching prompt, optionally
// anchored on referenced themes, and validates the returned document.
func (c *Client) GenerateTheme(ctx context.Context, prompt string, refs map[string]ReferenceTheme) (*GeneratedTheme, error) {
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	body := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: buildPrompt(prompt, refs)}},
		Temperature: 0.7,
		MaxTokens:   4000,
	}
	body.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "Theme Generator")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}

	c.log.Info("requesting theme generation", "model", c.model, "promptLen", len(prompt), "refs", len(refs))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("text generation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("text generation service error: %d - %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("text generation service returned no choices")
	}

	theme, err := ParseResponse(out.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return theme, nil
}

var themeNameSanitizer = regexp.MustCompile(`[^a-z0-9-]`)

// ParseResponse extracts and validates a GeneratedTheme from raw model
// output. Code fences around the JSON are tolerated; the name is coerced
// to the lowercase-hyphen form and a missing version defaults to 1.0.0.
func ParseResponse(raw string) (*GeneratedTheme, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}

	var theme GeneratedTheme
	if err := json.Unmarshal([]byte(raw), &theme); err != nil {
		return nil, fmt.Errorf("failed to parse generated theme: %w", err)
	}

	theme.Name = themeNameSanitizer.ReplaceAllString(strings.ToLower(theme.Name), "")
	if theme.Version == "" {
		theme.Version = "1.0.0"
	}

	if theme.Name == "" {
		return nil, fmt.Errorf("generated theme missing name")
	}
	if theme.DisplayName == "" {
		return nil, fmt.Errorf("generated theme missing display_name")
	}
	if theme.Description == "" {
		return nil, fmt.Errorf("generated theme missing description")
	}
	if len(theme.CSSVars) == 0 {
		return nil, fmt.Errorf("generated theme missing css_vars")
	}

	if err := models.ValidateThemeVars(theme.CSSVars); err != nil {
		return nil, err
	}
	if err := validateColorFormat(theme.CSSVars); err != nil {
		return nil, err
	}

	return &theme, nil
}

// validateColorFormat requires oklch() values for the core palette vars.
func validateColorFormat(raw json.RawMessage) error {
	var sections map[string]map[string]any
	if err := json.Unmarshal(raw, &sections); err != nil {
		return err
	}
	for _, mode := range []string{"light", "dark"} {
		for _, name := range []string{"background", "foreground", "primary", "secondary"} {
			val, ok := sections[mode][name].(string)
			if !ok || !strings.HasPrefix(val, "oklch(") {
				return fmt.Errorf("invalid color format for %s in %s mode: %v", name, mode, sections[mode][name])
			}
		}
	}
	return nil
}

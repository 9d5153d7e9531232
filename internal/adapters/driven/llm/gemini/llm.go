// Package gemini provides an assistant client using the Google Gemini
// API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/margo-labs/margo/internal/adapters/driven/llm/prompt"
	"github.com/margo-labs/margo/internal/adapters/driven/llm/ratelimit"
	"github.com/margo-labs/margo/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.AssistantClient = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 120 * time.Second

	answerTemperature = 0.7
	answerMaxTokens   = 4096
	titleMaxTokens    = 64
	backoffOnQuota    = 30 * time.Second
)

// Config holds configuration for the Gemini client.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL is the API base URL (default: the public endpoint).
	BaseURL string

	// Model is the model to use (default: gemini-2.5-flash).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Client provides assistant operations using the Gemini API.
type Client struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	baseURL string
	apiKey  string
	model   string
}

// generateRequest is the Gemini generateContent request format.
type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateResponse is the Gemini generateContent response format.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a new Gemini assistant client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(ratelimit.DefaultConfig),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Ask answers a question about a PDF excerpt.
func (c *Client) Ask(ctx context.Context, p driven.AskPrompt) (string, error) {
	contents := make([]content, 0, len(p.History)+1)
	for _, turn := range p.History {
		role := turn.Role
		if role == "assistant" {
			role = "model" // Gemini's name for the assistant role
		}
		contents = append(contents, content{
			Role:  role,
			Parts: []part{{Text: turn.Content}},
		})
	}

	question := p.Question
	if p.Context != "" {
		question = p.Context + "\n\n" + question
	}
	userParts := []part{{Text: question}}
	if p.ImageBase64 != "" {
		userParts = append(userParts, part{
			InlineData: &inlineData{MimeType: "image/png", Data: p.ImageBase64},
		})
	}
	contents = append(contents, content{Role: "user", Parts: userParts})

	return c.generate(ctx, prompt.System, contents, answerMaxTokens)
}

// GenerateTitle produces a short title for a new annotation.
func (c *Client) GenerateTitle(ctx context.Context, question, answer, imageBase64 string) (string, error) {
	parts := []part{{Text: prompt.Title(question, answer)}}
	if imageBase64 != "" {
		parts = append(parts, part{
			InlineData: &inlineData{MimeType: "image/png", Data: imageBase64},
		})
	}

	raw, err := c.generate(ctx, "", []content{{Role: "user", Parts: parts}}, titleMaxTokens)
	if err != nil {
		return "", err
	}
	return prompt.CleanTitle(raw), nil
}

// GenerateNoteTitle produces a short title for a note.
func (c *Client) GenerateNoteTitle(ctx context.Context, selectedText, noteContent string) (string, error) {
	raw, err := c.generate(ctx, "", []content{{
		Role:  "user",
		Parts: []part{{Text: prompt.NoteTitle(selectedText, noteContent)}},
	}}, titleMaxTokens)
	if err != nil {
		return "", err
	}
	return prompt.CleanTitle(raw), nil
}

// ModelName returns the name of the model being used.
func (c *Client) ModelName() string {
	return c.model
}

// Ping validates connectivity with a model metadata request.
func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1beta/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// generate sends a generateContent request and returns the
// concatenated candidate text.
func (c *Client) generate(ctx context.Context, system string, contents []content, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     answerTemperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if system != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.Backoff(backoffOnQuota)
		return "", fmt.Errorf("gemini quota exceeded (status 429)")
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if genResp.Error != nil {
		return "", fmt.Errorf("gemini error: %s", genResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no response candidates returned")
	}

	var result strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		result.WriteString(p.Text)
	}
	return result.String(), nil
}

// Package anthropic provides an assistant client using the Anthropic
// API.
package anthropic

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
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-5"
	DefaultTimeout = 120 * time.Second

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"

	answerMaxTokens = 4096
	titleMaxTokens  = 64
	backoffOnQuota  = 30 * time.Second
)

// Config holds configuration for the Anthropic client.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the model to use (default: claude-sonnet-4-5).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Client provides assistant operations using the Anthropic API.
type Client struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	baseURL string
	apiKey  string
	model   string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model     string            `json:"model"`
	Messages  []messagesMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
}

// messagesMessage is the Anthropic message format. Content is either a
// plain string or a list of content blocks when an image is attached.
type messagesMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a new Anthropic assistant client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
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
	messages := make([]messagesMessage, 0, len(p.History)+1)
	for _, turn := range p.History {
		messages = append(messages, messagesMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	question := p.Question
	if p.Context != "" {
		question = p.Context + "\n\n" + question
	}
	messages = append(messages, userMessage(question, p.ImageBase64))

	return c.sendMessages(ctx, prompt.System, messages, answerMaxTokens)
}

// GenerateTitle produces a short title for a new annotation.
func (c *Client) GenerateTitle(ctx context.Context, question, answer, imageBase64 string) (string, error) {
	raw, err := c.sendMessages(ctx, "", []messagesMessage{
		userMessage(prompt.Title(question, answer), imageBase64),
	}, titleMaxTokens)
	if err != nil {
		return "", err
	}
	return prompt.CleanTitle(raw), nil
}

// GenerateNoteTitle produces a short title for a note.
func (c *Client) GenerateNoteTitle(ctx context.Context, selectedText, noteContent string) (string, error) {
	raw, err := c.sendMessages(ctx, "", []messagesMessage{
		userMessage(prompt.NoteTitle(selectedText, noteContent), ""),
	}, titleMaxTokens)
	if err != nil {
		return "", err
	}
	return prompt.CleanTitle(raw), nil
}

// userMessage builds a user turn, as content blocks when an image is
// attached and a plain string otherwise.
func userMessage(text, imageBase64 string) messagesMessage {
	if imageBase64 == "" {
		return messagesMessage{Role: "user", Content: text}
	}
	return messagesMessage{
		Role: "user",
		Content: []contentBlock{
			{
				Type: "image",
				Source: &imageSource{
					Type:      "base64",
					MediaType: "image/png",
					Data:      imageBase64,
				},
			},
			{Type: "text", Text: text},
		},
	}
}

// ModelName returns the name of the model being used.
func (c *Client) ModelName() string {
	return c.model
}

// Ping validates connectivity with a minimal request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.sendMessages(ctx, "", []messagesMessage{
		{Role: "user", Content: "ping"},
	}, 1)
	return err
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// sendMessages posts to /v1/messages and returns the concatenated text
// content blocks.
func (c *Client) sendMessages(ctx context.Context, system string, messages []messagesMessage, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody := messagesRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
		System:    system,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

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
		return "", fmt.Errorf("anthropic quota exceeded (status 429)")
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("anthropic: no response content returned")
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	return result.String(), nil
}

// Package ollama provides an assistant client using a local Ollama
// instance.
package ollama

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
	"github.com/margo-labs/margo/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.AssistantClient = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2-vision"

	// Local generation can be slow on modest hardware.
	DefaultTimeout = 300 * time.Second
)

// Config holds configuration for the Ollama client.
type Config struct {
	// BaseURL is the Ollama server URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model to use (default: llama3.2-vision).
	Model string

	// Timeout is the request timeout (default: 300s).
	Timeout time.Duration
}

// Client provides assistant operations using a local Ollama server.
type Client struct {
	client  *http.Client
	baseURL string
	model   string
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatMessage is the Ollama message format. Images attach as raw
// base64 strings.
type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// NewClient creates a new Ollama assistant client.
func NewClient(cfg Config) (*Client, error) {
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
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}, nil
}

// Ask answers a question about a PDF excerpt.
func (c *Client) Ask(ctx context.Context, p driven.AskPrompt) (string, error) {
	messages := make([]chatMessage, 0, len(p.History)+2)
	messages = append(messages, chatMessage{Role: "system", Content: prompt.System})
	for _, turn := range p.History {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}

	question := p.Question
	if p.Context != "" {
		question = p.Context + "\n\n" + question
	}
	user := chatMessage{Role: "user", Content: question}
	if p.ImageBase64 != "" {
		user.Images = []string{p.ImageBase64}
	}
	messages = append(messages, user)

	return c.chat(ctx, messages)
}

// GenerateTitle produces a short title for a new annotation.
func (c *Client) GenerateTitle(ctx context.Context, question, answer, imageBase64 string) (string, error) {
	user := chatMessage{Role: "user", Content: prompt.Title(question, answer)}
	if imageBase64 != "" {
		user.Images = []string{imageBase64}
	}

	raw, err := c.chat(ctx, []chatMessage{user})
	if err != nil {
		return "", err
	}
	return prompt.CleanTitle(raw), nil
}

// GenerateNoteTitle produces a short title for a note.
func (c *Client) GenerateNoteTitle(ctx context.Context, selectedText, noteContent string) (string, error) {
	raw, err := c.chat(ctx, []chatMessage{
		{Role: "user", Content: prompt.NoteTitle(selectedText, noteContent)},
	})
	if err != nil {
		return "", err
	}
	return prompt.CleanTitle(raw), nil
}

// ModelName returns the name of the model being used.
func (c *Client) ModelName() string {
	return c.model
}

// Ping validates the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama error (status %d)", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// chat posts to /api/chat and returns the response content.
func (c *Client) chat(ctx context.Context, messages []chatMessage) (string, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", chatResp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	return chatResp.Message.Content, nil
}

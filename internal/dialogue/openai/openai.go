// Package openai implements the dialogue Backend over an OpenAI-compatible
// Chat Completions API. Groq, OpenAI, Ollama and vLLM all accept this format;
// Groq is the default.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/sidekick/internal/config"
	"github.com/nadzzz/sidekick/internal/conversation"
)

// Client calls the chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration

	// HTTPClient may be replaced in tests.
	HTTPClient *http.Client
}

// New creates a new chat client from config.
func New(cfg config.DialogueConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    timeout,
		HTTPClient: &http.Client{},
	}
}

// Complete sends the turns and returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("api key not configured")
	}

	reqBody := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(turns)),
	}
	for _, t := range turns {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: apiRole(t.Role), Content: t.Content})
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("chat failed (status %d): %s", resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.New("no choices returned from chat API")
	}

	content := chatResp.Choices[0].Message.Content
	slog.Debug("chat completion", "model", c.model, "messages", len(turns),
		"reply_length", len(content), "duration", time.Since(start))
	return content, nil
}

// --- Internal types and helpers ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func apiRole(r conversation.Role) string {
	switch r {
	case conversation.RoleSystem:
		return "system"
	case conversation.RoleInterviewer:
		return "assistant"
	default:
		return "user"
	}
}

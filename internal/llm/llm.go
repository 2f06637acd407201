// Package llm calls an OpenAI-compatible chat completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/m3rciful/quizbot/core/logger"
)

// DefaultSystemPrompt frames answers for a chat conversation.
const DefaultSystemPrompt = "You are a helpful assistant in a quiz chat. Answer briefly and clearly."

// ErrEmptyResponse means the API returned no usable text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Config selects the endpoint and model.
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api    *openai.Client
	model  string
	system string
	temp   float32
	max    int
}

// New creates a client. An empty model uses gpt-4o-mini.
func New(cfg Config) *Client {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	system := cfg.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	return &Client{
		api:    openai.NewClientWithConfig(conf),
		model:  model,
		system: system,
		temp:   cfg.Temperature,
		max:    cfg.MaxTokens,
	}
}

// Complete sends prompt as a single user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temp,
		MaxTokens:   c.max,
	})
	if err != nil {
		logger.Warn(ctx, "llm", "llm.complete",
			slog.String("status", "fail"),
			slog.String("model", c.model),
			slog.Duration("duration", time.Since(start)),
			logger.Err(err),
		)
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	logger.Debug(ctx, "llm", "llm.complete",
		slog.String("status", "ok"),
		slog.String("model", c.model),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", time.Since(start)),
	)
	return text, nil
}

// Package llm streams chat completions from an OpenAI-compatible endpoint,
// by default a local Ollama server.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	BackendOllama   = "ollama"
	BackendDeepSeek = "deepseek"

	DefaultOllamaURL     = "http://localhost:11434/v1"
	DefaultOllamaModel   = "llama3.2:3b"
	DefaultDeepSeekURL   = "https://api.deepseek.com/v1"
	DefaultDeepSeekModel = "deepseek-chat"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

var ErrNoAPIKey = errors.New("llm: API key required")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	Backend     string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
}

// Client talks to the chat model.
type Client struct {
	client *openai.Client
	model  string
	temp   float32
}

// New creates a client for the configured backend, filling in its default URL
// and model.
func New(cfg Config) (*Client, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultOllamaURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultOllamaModel
		}
		if cfg.APIKey == "" {
			// Ollama ignores the key but the client always sends one
			cfg.APIKey = "ollama"
		}
	case BackendDeepSeek:
		if cfg.APIKey == "" {
			return nil, ErrNoAPIKey
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultDeepSeekURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultDeepSeekModel
		}
	default:
		return nil, fmt.Errorf("llm: unsupported backend %q", cfg.Backend)
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		temp:   cfg.Temperature,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Stream sends messages and calls onToken for every content delta as it
// arrives. It returns the full response text.
func (c *Client) Stream(ctx context.Context, messages []Message, onToken func(string)) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(messages))
	if err != nil {
		return "", fmt.Errorf("failed to start chat stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("chat stream interrupted: %w", err)
		}

		for _, choice := range resp.Choices {
			token := choice.Delta.Content
			if token == "" {
				continue
			}
			full.WriteString(token)
			if onToken != nil {
				onToken(token)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"model": c.model,
		"chars": full.Len(),
	}).Debug("Chat stream finished")
	return full.String(), nil
}

// Complete returns the whole response in one call.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping sends a minimal chat to check that the server and model respond.
func (c *Client) Ping(ctx context.Context) error {
	req := c.request([]Message{{Role: RoleUser, Content: "Hello"}})
	req.MaxTokens = 5
	if _, err := c.client.CreateChatCompletion(ctx, req); err != nil {
		return fmt.Errorf("model %s not reachable: %w", c.model, err)
	}
	return nil
}

// Models lists the model ids the server offers.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Client) request(messages []Message) openai.ChatCompletionRequest {
	in := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		in = append(in, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    in,
		Temperature: c.temp,
	}
}

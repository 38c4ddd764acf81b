package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sakif/transpile-bench/internal/apperror"
)

const anthropicMaxTokens = 4000

// AnthropicClient talks to the Anthropic Messages API through the official
// SDK.
type AnthropicClient struct {
	client *anthropic.Client // nil without an API key
	model  string
}

// NewAnthropicClient returns a client for cfg. An empty APIKey yields a
// client whose Complete always fails with apperror.ErrUnavailable.
func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	c := &AnthropicClient{model: cfg.Model}
	if c.model == "" {
		c.model = DefaultAnthropicModel
	}
	if cfg.APIKey == "" {
		return c
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	c.client = &client
	return c
}

func (c *AnthropicClient) DefaultModel() string { return c.model }

// Complete implements Client. Only text blocks of the reply are kept.
func (c *AnthropicClient) Complete(ctx context.Context, model, system, user string) (string, error) {
	if c.client == nil {
		return "", apperror.Unavailable("ANTHROPIC_API_KEY is not configured")
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", anthropicError(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// anthropicError maps an API status error to apperror.Upstream. The SDK
// keeps the body raw; its envelope is {"type":"error","error":{"message":...}}.
func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic: %w", err)
	}

	msg := http.StatusText(apiErr.StatusCode)
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil && body.Error.Message != "" {
		msg = body.Error.Message
	}
	return apperror.Upstream(fmt.Sprintf("anthropic returned status %d: %s", apiErr.StatusCode, msg))
}

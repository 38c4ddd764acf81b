package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/sakif/transpile-bench/internal/apperror"
)

// openAITemperature keeps conversions close to deterministic.
const openAITemperature = 0.1

// OpenAIClient talks to the OpenAI Responses API through the official SDK.
type OpenAIClient struct {
	client *openai.Client // nil without an API key
	model  string
}

// NewOpenAIClient returns a client for cfg. An empty APIKey yields a client
// whose Complete always fails with apperror.ErrUnavailable.
func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	c := &OpenAIClient{model: cfg.Model}
	if c.model == "" {
		c.model = DefaultOpenAIModel
	}
	if cfg.APIKey == "" {
		return c
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// Explicit options come after the SDK's environment defaults and win.
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	c.client = &client
	return c
}

func (c *OpenAIClient) DefaultModel() string { return c.model }

// Complete implements Client. The system prompt goes in as the response
// instructions and the user prompt as plain-text input.
func (c *OpenAIClient) Complete(ctx context.Context, model, system, user string) (string, error) {
	if c.client == nil {
		return "", apperror.Unavailable("OPENAI_API_KEY is not configured")
	}

	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        model,
		Instructions: openai.String(system),
		Input:        responses.ResponseNewParamsInputUnion{OfString: openai.String(user)},
		Temperature:  openai.Float(openAITemperature),
	})
	if err != nil {
		return "", openAIError(err)
	}
	return strings.TrimSpace(resp.OutputText()), nil
}

// openAIError maps an API status error to apperror.Upstream carrying the
// provider's own message. Transport failures are returned wrapped.
func openAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %w", err)
	}
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(apiErr.StatusCode)
	}
	return apperror.Upstream(fmt.Sprintf("openai returned status %d: %s", apiErr.StatusCode, msg))
}

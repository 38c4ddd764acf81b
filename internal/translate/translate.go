// Package translate converts programs between the supported languages by
// prompting a hosted LLM (OpenAI or Anthropic) and extracting the code from
// its reply.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/transpile-bench/internal/apperror"
	"github.com/sakif/transpile-bench/internal/executor"
)

// Engine names an LLM provider.
type Engine string

const (
	EngineOpenAI    Engine = "openai"
	EngineAnthropic Engine = "anthropic"
)

// Engines lists the providers in the order the UI offers them.
var Engines = []Engine{EngineOpenAI, EngineAnthropic}

// ParseEngine accepts an engine tag, case-insensitive. "claude" is an alias
// for the Anthropic engine.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt":
		return EngineOpenAI, nil
	case "anthropic", "claude":
		return EngineAnthropic, nil
	}
	return "", apperror.ValidationFailed("engine", "unsupported engine: "+s)
}

const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-sonnet-20240620"

	// Base URLs follow each SDK's convention: OpenAI's includes the API
	// version, Anthropic's does not.
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"

	DefaultMaxRetries = 2
)

// Config holds the provider credentials and endpoints. An empty API key
// leaves that engine unavailable; requests for it fail with
// apperror.ErrUnavailable instead of reaching the network.
type Config struct {
	OpenAIKey        string
	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicModel   string
	AnthropicBaseURL string

	// RequestTimeout bounds one completion call. Zero means no limit beyond
	// the caller's context.
	RequestTimeout time.Duration

	// MaxRetries is how often the SDKs retry rate limits, overloads and
	// connection errors, with backoff.
	MaxRetries int
}

// ClientConfig configures one provider client.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client // nil means http.DefaultClient
	MaxRetries int
}

// DefaultConfig returns a Config pointing at the public provider endpoints
// with the default models and no keys.
func DefaultConfig() Config {
	return Config{
		OpenAIModel:      DefaultOpenAIModel,
		OpenAIBaseURL:    DefaultOpenAIBaseURL,
		AnthropicModel:   DefaultAnthropicModel,
		AnthropicBaseURL: DefaultAnthropicBaseURL,
		RequestTimeout:   2 * time.Minute,
		MaxRetries:       DefaultMaxRetries,
	}
}

// Client sends one system+user prompt pair to a provider and returns the
// raw text of the reply.
type Client interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
	DefaultModel() string
}

// Request describes one conversion.
type Request struct {
	Engine Engine            `json:"engine"`
	Model  string            `json:"model"`
	From   executor.Language `json:"from"`
	To     executor.Language `json:"to"`
	Code   string            `json:"code"`
}

// Result is the converted program plus what produced it.
type Result struct {
	Code     string        `json:"code"`
	Engine   Engine        `json:"engine"`
	Model    string        `json:"model"`
	Duration time.Duration `json:"duration"`
}

// Translator routes requests to the configured engine clients.
type Translator struct {
	clients map[Engine]Client
	logger  *slog.Logger
}

// New builds a Translator with the stock OpenAI and Anthropic clients.
func New(cfg Config, logger *slog.Logger) *Translator {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	return NewWithClients(map[Engine]Client{
		EngineOpenAI: NewOpenAIClient(ClientConfig{
			APIKey:     cfg.OpenAIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			HTTPClient: httpClient,
			MaxRetries: cfg.MaxRetries,
		}),
		EngineAnthropic: NewAnthropicClient(ClientConfig{
			APIKey:     cfg.AnthropicKey,
			BaseURL:    cfg.AnthropicBaseURL,
			Model:      cfg.AnthropicModel,
			HTTPClient: httpClient,
			MaxRetries: cfg.MaxRetries,
		}),
	}, logger)
}

// NewWithClients builds a Translator over caller-supplied clients.
func NewWithClients(clients map[Engine]Client, logger *slog.Logger) *Translator {
	return &Translator{clients: clients, logger: logger}
}

// Translate converts req.Code from req.From to req.To.
func (t *Translator) Translate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, apperror.ValidationFailed("code", "code cannot be empty")
	}
	if req.From == req.To {
		return nil, apperror.ValidationFailed("to", "source and target languages must differ")
	}

	client, ok := t.clients[req.Engine]
	if !ok {
		return nil, apperror.ValidationFailed("engine", fmt.Sprintf("unsupported engine: %s", req.Engine))
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = client.DefaultModel()
	}

	start := time.Now()
	reply, err := client.Complete(ctx, model, SystemPrompt(req.From, req.To), UserPrompt(req.From, req.To, req.Code))
	if err != nil {
		t.logger.Warn("translation failed",
			slog.String("engine", string(req.Engine)),
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("translate: %s: %w", req.Engine, err)
	}
	elapsed := time.Since(start)

	code := ExtractCode(reply)
	if code == "" {
		return nil, apperror.Upstream(fmt.Sprintf("%s returned no code", req.Engine))
	}

	t.logger.Info("translated",
		slog.String("engine", string(req.Engine)),
		slog.String("model", model),
		slog.String("from", string(req.From)),
		slog.String("to", string(req.To)),
		slog.Duration("duration", elapsed),
	)

	return &Result{
		Code:     code,
		Engine:   req.Engine,
		Model:    model,
		Duration: elapsed,
	}, nil
}

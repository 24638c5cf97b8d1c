package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type Provider string

const (
	ProviderGoogleAI  Provider = "googleai"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

const DefaultModel = "gemini-2.5-flash"

// ErrFatalAPI marks provider errors that will not go away on their own,
// such as a bad key or an exhausted billing account.
var ErrFatalAPI = errors.New("fatal llm api error")

type Config struct {
	Provider   Provider
	Model      string
	APIKey     string
	BaseURL    string
	OllamaHost string
	HTTPClient *http.Client
}

// Model wraps a langchaingo model for schema-constrained JSON generation.
type Model struct {
	llm       llms.Model
	provider  Provider
	modelName string
}

// NewModel creates a model for the configured provider.
func NewModel(ctx context.Context, cfg Config) (*Model, error) {
	provider := Provider(strings.ToLower(strings.TrimSpace(string(cfg.Provider))))
	if provider == "" {
		provider = ProviderGoogleAI
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" && provider == ProviderGoogleAI {
		modelName = DefaultModel
	}

	var model llms.Model
	var err error

	switch provider {
	case ProviderGoogleAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Google AI API key required")
		}
		opts := []googleai.Option{
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(modelName),
		}
		if cfg.HTTPClient != nil {
			// A custom client replaces the SDK's key handling, so the key rides in a header.
			opts = append(opts, googleai.WithHTTPClient(withHeader(cfg.HTTPClient, "x-goog-api-key", cfg.APIKey)))
		}
		model, err = googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(modelName),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(cfg.HTTPClient))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(modelName),
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, anthropic.WithHTTPClient(cfg.HTTPClient))
		}
		model, err = anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case ProviderOllama:
		opts := []ollama.Option{
			ollama.WithModel(modelName),
			ollama.WithFormat("json"),
		}
		if cfg.OllamaHost != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaHost))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, ollama.WithHTTPClient(cfg.HTTPClient))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	return &Model{
		llm:       model,
		provider:  provider,
		modelName: modelName,
	}, nil
}

// GenerateJSON asks for a single JSON document in response to the system
// instruction and user text.
func (m *Model) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := m.llm.GenerateContent(ctx, messages,
		llms.WithJSONMode(),
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", wrapFatalError(fmt.Errorf("generate json: %w", err))
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return response.Choices[0].Content, nil
}

func (m *Model) Provider() Provider {
	return m.provider
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"credit balance",
		"rate limit",
		"quota exceeded",
		"billing",
		"invalid api key",
		"api key not valid",
		"authentication",
		"unauthorized",
		"http 401",
		"http 403",
		"permission denied",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %w", ErrFatalAPI, err)
	}
	return err
}

type headerTransport struct {
	base  http.RoundTripper
	name  string
	value string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(t.name) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(t.name, t.value)
	}
	return t.base.RoundTrip(req)
}

// withHeader returns a copy of client that sets name on every request.
func withHeader(client *http.Client, name, value string) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = headerTransport{base: base, name: name, value: value}
	return &wrapped
}

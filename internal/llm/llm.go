package llm

import (
	"context"
	"fmt"
	"strings"
)

type Message struct {
	Role    string
	Content string
}

// Request carries the messages plus the sampling bounds every provider honours.
// MaxTokens <= 0 uses the provider default. Temperature is always sent, so 0
// means deterministic sampling. JSON asks providers that support it for a
// JSON-only response.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSON        bool
}

// Client is the generative text collaborator. Implementations return errors
// that match ErrUnavailable, ErrRateLimited or ErrBadResponse under errors.Is.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

// Package providers wraps the hosted LLM APIs behind one completion call.
package providers

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoAPIKey = errors.New("providers: no API key")

// Client completes a single user prompt.
type Client interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

// New returns the client for a provider name, openai or gemini.
func New(ctx context.Context, name string, opts ...ProviderOption) (Client, error) {
	switch name {
	case "openai":
		return OpenAi(ctx, opts...), nil
	case "gemini":
		return Gemini(ctx, opts...)
	}
	return nil, fmt.Errorf("providers: unknown provider %q", name)
}

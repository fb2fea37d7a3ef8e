// Package inference provides the text-generation clients behind the
// pipeline's inference port: an OpenAI-compatible HTTP client and a Gemini
// client, selected by configuration.
package inference

import (
	"context"
	"fmt"
)

// Client is the provider-independent completion interface. It matches the
// pipeline's inference port, so any Client can be wired in directly.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options is the provider-independent configuration for New.
type Options struct {
	Provider string // "openai" (any OpenAI-compatible endpoint) or "gemini"
	APIKey   string
	BaseURL  string // OpenAI-compatible endpoints only
	Model    string
}

// New builds the configured provider's client.
func New(opts Options) (Client, error) {
	switch opts.Provider {
	case "gemini":
		return NewGeminiClient(opts.APIKey, opts.Model)
	case "openai", "":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  opts.APIKey,
			BaseURL: opts.BaseURL,
			Model:   opts.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown inference provider: %s", opts.Provider)
	}
}

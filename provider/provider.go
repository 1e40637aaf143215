package provider

import (
	"context"
	"errors"
	"time"

	openai_provider "github.com/threadwise/agentd/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Completion(ctx context.Context, system, user string) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Options carries provider construction settings. BaseURL may point at any
// OpenAI-compatible endpoint, including a local model server.
type Options struct {
	APIKey          string
	BaseURL         string
	CompletionModel string
	EmbeddingModel  string
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, opts Options) (Provider, error) {
	switch client {
	case OpenAI:
		if opts.APIKey == "" && opts.BaseURL == "" {
			return nil, errors.New("llm api_key not set")
		}
		if opts.CompletionModel == "" {
			opts.CompletionModel = "gpt-4o-mini"
		}
		if opts.EmbeddingModel == "" {
			opts.EmbeddingModel = "text-embedding-3-small"
		}
		if opts.Timeout <= 0 {
			opts.Timeout = 30 * time.Second
		}
		return openai_provider.NewClient(
			opts.APIKey,
			opts.BaseURL,
			opts.CompletionModel,
			opts.EmbeddingModel,
			opts.Temperature,
			opts.MaxTokens,
			opts.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}

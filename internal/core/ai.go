package core

import "context"

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionOptions tunes a single completion request.
// An empty Model (or "auto") lets the provider pick its default.
type CompletionOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type LLMProvider interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

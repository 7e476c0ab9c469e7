package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/markdave123-py/inboxpress/internal/core"
)

type OpenAIEmbedder struct {
	client    openai.Client
	modelName string
}

func NewOpenAIEmbedder(apiKey, baseURL, modelName string, extra ...option.RequestOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("openai embedder: api key is empty")
	}
	if modelName == "" {
		modelName = "text-embedding-3-small"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &OpenAIEmbedder{client: openai.NewClient(opts...), modelName: modelName}, nil
}

// EmbedTexts sends all texts in one request; vectors come back in input order.
func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(e.modelName),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &ServiceError{Provider: "openai", StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai embed: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

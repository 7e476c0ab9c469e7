package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/inboxpress/internal/core"
)

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)

// maxGeminiBatch is the request limit of batchEmbedContents.
const maxGeminiBatch = 100

type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini embedder: GEMINI_API_KEY is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiEmbedder{client: cl, model: model}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// EmbedTexts returns one vector per text, in input order. Inputs larger
// than one request are sent in consecutive batches.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	em := g.client.EmbeddingModel(g.model)
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxGeminiBatch {
		end := min(start+maxGeminiBatch, len(texts))
		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, wrapGeminiErr("gemini batch embed", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini batch embed: got %d vectors for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

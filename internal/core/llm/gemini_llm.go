package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/markdave123-py/inboxpress/internal/core"
)

// GeminiLLM is the last provider of the completion fallback chain.
type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) Name() string { return "gemini" }

func (g *GeminiLLM) Supports(model string) bool {
	return hasModelPrefix(model, []string{"gemini"})
}

func (g *GeminiLLM) Complete(ctx context.Context, prompt string, opts core.CompletionOptions) (string, error) {
	model := opts.Model
	if model == "" || model == "auto" {
		model = g.modelName
	}
	m := g.client.GenerativeModel(model)
	m.SetTemperature(opts.Temperature)
	if opts.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", wrapGeminiErr("gemini generate", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	return text, nil
}

func wrapGeminiErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &ServiceError{Provider: "gemini", StatusCode: gerr.Code, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ core.LLMProvider = (*GeminiLLM)(nil)

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/markdave123-py/inboxpress/internal/core"
)

const defaultRequestTimeout = 30 * time.Second

// OpenAICompatLLM talks to any chat-completions API that follows the OpenAI
// wire format. DeepSeek is served through it with its own base URL.
type OpenAICompatLLM struct {
	client       openai.Client
	name         string
	defaultModel string
	prefixes     []string
}

// OpenAICompatOptions configures one OpenAI-compatible provider.
type OpenAICompatOptions struct {
	Name         string
	APIKey       string
	BaseURL      string
	DefaultModel string
	// ModelPrefixes lists the model families served by this provider.
	ModelPrefixes []string
	// Extra client options, used by tests to disable SDK retries.
	ClientOptions []option.RequestOption
}

func NewOpenAICompatLLM(o OpenAICompatOptions) (*OpenAICompatLLM, error) {
	if o.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is empty", o.Name)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(o.APIKey),
		option.WithRequestTimeout(defaultRequestTimeout),
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	opts = append(opts, o.ClientOptions...)

	return &OpenAICompatLLM{
		client:       openai.NewClient(opts...),
		name:         o.Name,
		defaultModel: o.DefaultModel,
		prefixes:     o.ModelPrefixes,
	}, nil
}

// NewDeepSeekLLM is the first provider of the fallback chain.
func NewDeepSeekLLM(apiKey, baseURL, model string, extra ...option.RequestOption) (*OpenAICompatLLM, error) {
	if model == "" {
		model = "deepseek-chat"
	}
	return NewOpenAICompatLLM(OpenAICompatOptions{
		Name:          "deepseek",
		APIKey:        apiKey,
		BaseURL:       baseURL,
		DefaultModel:  model,
		ModelPrefixes: []string{"deepseek"},
		ClientOptions: extra,
	})
}

func NewOpenAILLM(apiKey, baseURL, model string, extra ...option.RequestOption) (*OpenAICompatLLM, error) {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return NewOpenAICompatLLM(OpenAICompatOptions{
		Name:          "openai",
		APIKey:        apiKey,
		BaseURL:       baseURL,
		DefaultModel:  model,
		ModelPrefixes: []string{"gpt", "o1", "o3", "o4"},
		ClientOptions: extra,
	})
}

func (l *OpenAICompatLLM) Name() string { return l.name }

func (l *OpenAICompatLLM) Supports(model string) bool {
	return hasModelPrefix(model, l.prefixes)
}

func (l *OpenAICompatLLM) Complete(ctx context.Context, prompt string, opts core.CompletionOptions) (string, error) {
	model := opts.Model
	if model == "" || model == "auto" {
		model = l.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(float64(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &ServiceError{Provider: l.name, StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", fmt.Errorf("%s completion: %w", l.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", l.name, ErrEmptyCompletion)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w", l.name, ErrEmptyCompletion)
	}
	return text, nil
}

func hasModelPrefix(model string, prefixes []string) bool {
	model = strings.ToLower(model)
	for _, p := range prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

var _ core.LLMProvider = (*OpenAICompatLLM)(nil)

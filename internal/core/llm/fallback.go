package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
)

// Provider is one link of the fallback chain.
type Provider interface {
	core.LLMProvider
	Name() string
	Supports(model string) bool
}

// FallbackLLM tries its providers in order until one answers.
type FallbackLLM struct {
	providers []Provider
	log       *zap.Logger
}

// NewFallbackLLM keeps the given order; nil providers are skipped.
func NewFallbackLLM(log *zap.Logger, providers ...Provider) *FallbackLLM {
	var ps []Provider
	for _, p := range providers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &FallbackLLM{providers: ps, log: log}
}

func (f *FallbackLLM) Providers() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return names
}

// Complete routes a named model to the provider serving its family first.
// Every other provider is asked with its own default model.
func (f *FallbackLLM) Complete(ctx context.Context, prompt string, opts core.CompletionOptions) (string, error) {
	if len(f.providers) == 0 {
		return "", ErrNoProvider
	}

	order := f.order(opts.Model)
	var errs []error
	for i, p := range order {
		o := opts
		if !p.Supports(opts.Model) {
			o.Model = ""
		}
		text, err := p.Complete(ctx, prompt, o)
		if err == nil {
			if i > 0 {
				f.log.Info("completion served by fallback provider", zap.String("provider", p.Name()))
			}
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.log.Warn("completion provider failed", zap.String("provider", p.Name()), zap.Error(err))
		errs = append(errs, err)
	}
	return "", fmt.Errorf("all completion providers failed: %w", errors.Join(errs...))
}

func (f *FallbackLLM) order(model string) []Provider {
	if model == "" || model == "auto" {
		return f.providers
	}
	for i, p := range f.providers {
		if p.Supports(model) {
			out := make([]Provider, 0, len(f.providers))
			out = append(out, p)
			out = append(out, f.providers[:i]...)
			return append(out, f.providers[i+1:]...)
		}
	}
	return f.providers
}

var _ core.LLMProvider = (*FallbackLLM)(nil)

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/markdave123-py/inboxpress/internal/core"
)

type fakeProvider struct {
	name   string
	prefix string
	reply  string
	err    error
	models []string
}

func (f *fakeProvider) Name() string               { return f.name }
func (f *fakeProvider) Supports(model string) bool { return hasModelPrefix(model, []string{f.prefix}) }

func (f *fakeProvider) Complete(_ context.Context, _ string, opts core.CompletionOptions) (string, error) {
	f.models = append(f.models, opts.Model)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestFallbackLLM_FirstProviderWins(t *testing.T) {
	t.Parallel()
	ds := &fakeProvider{name: "deepseek", prefix: "deepseek", reply: "from deepseek"}
	oa := &fakeProvider{name: "openai", prefix: "gpt", reply: "from openai"}

	f := NewFallbackLLM(zap.NewNop(), ds, oa)
	text, err := f.Complete(context.Background(), "p", core.CompletionOptions{Model: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "from deepseek", text)
	assert.Empty(t, oa.models)
}

func TestFallbackLLM_FallsThroughOnError(t *testing.T) {
	t.Parallel()
	obs, logs := observer.New(zapcore.WarnLevel)

	ds := &fakeProvider{name: "deepseek", prefix: "deepseek", err: &ServiceError{Provider: "deepseek", StatusCode: 503, Err: errors.New("down")}}
	oa := &fakeProvider{name: "openai", prefix: "gpt", reply: "from openai"}

	f := NewFallbackLLM(zap.New(obs), ds, nil, oa)
	text, err := f.Complete(context.Background(), "p", withModel("deepseek-chat"))
	require.NoError(t, err)
	assert.Equal(t, "from openai", text)

	assert.Equal(t, []string{"deepseek-chat"}, ds.models)
	assert.Equal(t, []string{""}, oa.models, "other providers use their default model")
	assert.Equal(t, 1, logs.FilterField(zap.String("provider", "deepseek")).Len())
}

func TestFallbackLLM_RoutesNamedModelFirst(t *testing.T) {
	t.Parallel()
	ds := &fakeProvider{name: "deepseek", prefix: "deepseek", reply: "ds"}
	gm := &fakeProvider{name: "gemini", prefix: "gemini", reply: "gm"}

	f := NewFallbackLLM(zap.NewNop(), ds, gm)
	text, err := f.Complete(context.Background(), "p", withModel("gemini-1.5-pro"))
	require.NoError(t, err)
	assert.Equal(t, "gm", text)
	assert.Equal(t, []string{"gemini-1.5-pro"}, gm.models)
	assert.Empty(t, ds.models)
	assert.Equal(t, []string{"deepseek", "gemini"}, f.Providers())
}

func TestFallbackLLM_AllFail(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	f := NewFallbackLLM(zap.NewNop(),
		&fakeProvider{name: "a", err: boom},
		&fakeProvider{name: "b", err: ErrEmptyCompletion},
	)
	_, err := f.Complete(context.Background(), "p", core.CompletionOptions{})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, ErrEmptyCompletion)

	_, err = NewFallbackLLM(zap.NewNop()).Complete(context.Background(), "p", core.CompletionOptions{})
	require.ErrorIs(t, err, ErrNoProvider)
}

func TestFallbackLLM_StopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &fakeProvider{name: "b", reply: "late"}
	f := NewFallbackLLM(zap.NewNop(), &fakeProvider{name: "a", err: context.Canceled}, second)
	_, err := f.Complete(ctx, "p", core.CompletionOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, second.models)
}

func withModel(model string) core.CompletionOptions {
	return core.CompletionOptions{Model: model, Temperature: 0.3, MaxTokens: 300}
}

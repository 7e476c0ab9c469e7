package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestWrapGeminiErr(t *testing.T) {
	err := wrapGeminiErr("gemini generate", &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"})

	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "gemini", serr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, serr.StatusCode)

	plain := wrapGeminiErr("gemini generate", errors.New("dial tcp: timeout"))
	assert.False(t, errors.As(plain, &serr))
	assert.ErrorContains(t, plain, "dial tcp")
}

func TestGeminiConstructorsRequireKey(t *testing.T) {
	_, err := NewGeminiEmbedder(context.Background(), "", "")
	require.Error(t, err)

	_, err = NewGeminiLLM(context.Background(), "", "")
	require.Error(t, err)
}

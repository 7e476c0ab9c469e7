package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/models"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// ChunkSearcher finds chunks by embedding similarity.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, queryVec []float32, limit int) ([]models.Chunk, error)
}

type SearchHandler struct {
	index    ChunkSearcher
	embedder core.EmbeddingProvider
	log      *zap.Logger
}

func NewSearchHandler(index ChunkSearcher, emb core.EmbeddingProvider, log *zap.Logger) *SearchHandler {
	return &SearchHandler{index: index, embedder: emb, log: log}
}

// Search embeds the q parameter and returns the closest chunks.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	vecs, err := h.embedder.EmbedTexts(r.Context(), []string{q})
	if err != nil || len(vecs) == 0 {
		h.log.Error("embed query", zap.Error(err))
		writeError(w, http.StatusBadGateway, "embedding failed")
		return
	}

	chunks, err := h.index.SearchChunks(r.Context(), vecs[0], limit)
	if err != nil {
		h.log.Error("search chunks", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

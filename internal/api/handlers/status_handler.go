package handlers

import (
	"context"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/models"
)

// SnapshotReader reads the whole document index.
type SnapshotReader interface {
	GetAll(ctx context.Context) (*models.IndexSnapshot, error)
}

type StatusHandler struct {
	index    SnapshotReader
	progress func() (models.Progress, error)
	log      *zap.Logger
}

func NewStatusHandler(index SnapshotReader, progress func() (models.Progress, error), log *zap.Logger) *StatusHandler {
	return &StatusHandler{index: index, progress: progress, log: log}
}

func (h *StatusHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the lifecycle counts of the inbox.
func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	p, err := h.progress()
	if err != nil {
		h.log.Error("progress", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "progress unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type SourceCount struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

// Sources lists the indexed sources with their chunk counts.
func (h *StatusHandler) Sources(w http.ResponseWriter, r *http.Request) {
	snap, err := h.index.GetAll(r.Context())
	if err != nil {
		h.log.Error("read index", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "index unavailable")
		return
	}
	writeJSON(w, http.StatusOK, countSources(snap))
}

func countSources(snap *models.IndexSnapshot) []SourceCount {
	counts := map[string]int{}
	for _, md := range snap.Metadatas {
		src, _ := md["source"].(string)
		counts[src]++
	}
	out := make([]SourceCount, 0, len(counts))
	for src, n := range counts {
		out = append(out, SourceCount{Source: src, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

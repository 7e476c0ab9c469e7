package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/inboxpress/internal/core"
)

// ErrEmptyDocument is returned when the text file yields no chunks.
var ErrEmptyDocument = errors.New("document has no text to index")

func NewVectorizer(index core.DocumentIndex, emb core.EmbeddingProvider, cfg IngestConfig, log *zap.Logger) *Vectorizer {
	cfg.setDefaults()
	return &Vectorizer{
		index:    index,
		embedder: emb,
		cfg:      cfg,
		log:      log.With(zap.String("component", "vectorizer")),
	}
}

// Vectorize streams the text at path through extract, chunk and embed, and
// stores the chunks tagged with source.
func (v *Vectorizer) Vectorize(ctx context.Context, path, source string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	start := time.Now()

	// Build an errgroup to tie the pipeline stages together.
	g, gctx := errgroup.WithContext(ctx)

	// text -> fragments
	fragCh := v.streamExtract(gctx, g, f, v.cfg.maxFragmentLen())

	// fragments -> chunks
	chunkCh := v.streamChunk(gctx, g, fragCh, v.cfg.ChunkSize, v.cfg.ChunkOverlap)

	// chunks -> embed + persist
	var stored int
	g.Go(func() error {
		n, err := v.embedAndPersist(gctx, source, chunkCh, v.cfg.BatchSize)
		stored = n
		return err
	})

	// Any stage error cancels the rest.
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if stored == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyDocument, filepath.Base(path))
	}

	v.log.Info("document vectorized",
		zap.String("source", source),
		zap.Int("chunks", stored),
		zap.Duration("took", time.Since(start)),
	)
	return stored, nil
}

package ingestion_engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/inboxpress/internal/models"
)

// embedAndPersist consumes chunks, embeds them in batches, and writes them
// to the index in a single call once the stream is drained. A failed run
// leaves no chunks behind, so the source is never half-indexed.
//
// source:     chunk metadata source (the original filename).
// in:         chunk stream from streamChunk.
// batchSize:  number of chunks per embedding request.
func (v *Vectorizer) embedAndPersist(
	ctx context.Context,
	source string,
	in <-chan chunk,
	batchSize int,
) (int, error) {
	var (
		rows  []models.Chunk
		batch = make([]chunk, 0, batchSize)
		now   = time.Now().UTC()
	)

	embed := func(items []chunk) error {
		if len(items) == 0 {
			return nil
		}
		texts := make([]string, len(items))
		for idx := range items {
			texts[idx] = items[idx].Text
		}

		vecs, err := v.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(vecs) != len(items) {
			return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(items))
		}

		for k := range items {
			page := items[k].Page
			rows = append(rows, models.Chunk{
				ID:         uuid.NewString(),
				Source:     source,
				Page:       &page,
				Position:   items[k].Pos,
				Text:       items[k].Text,
				Embedding:  vecs[k],
				TokenCount: items[k].TokenCnt,
				CreatedAt:  now,
			})
		}
		return nil
	}

	for c := range in {
		batch = append(batch, c)
		if len(batch) == batchSize {
			if err := embed(batch); err != nil {
				return 0, err
			}
			batch = batch[:0]
		}
	}
	if err := embed(batch); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := v.index.AddChunks(ctx, rows); err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}
	return len(rows), nil
}

package ingestion_engine

import (
	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
)

// IngestConfig tunes the streaming pipeline.
//
// ChunkSize:    maximum characters per chunk (e.g., 1000).
// ChunkOverlap: characters carried from the end of a chunk into the next (e.g., 200).
// BatchSize:    how many chunks to embed in one request (e.g., 16).
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

func (c *IngestConfig) setDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
}

// maxFragmentLen bounds a single fragment so that an overlap tail plus one
// fragment always fits in a chunk.
func (c IngestConfig) maxFragmentLen() int {
	return c.ChunkSize - c.ChunkOverlap
}

// fragment is one line (or line piece) of the source text.
type fragment struct {
	Text string
	Page int
}

// chunk is the internal representation passed through the pipeline.
//
// Pos:      stable, zero-based position of the chunk inside the document.
// Text:     chunk content (built from one or more fragments).
// Page:     page of the first new fragment in the chunk.
// TokenCnt: approximate token count.
type chunk struct {
	Pos      int
	Text     string
	Page     int
	TokenCnt int
}

// Vectorizer turns a text file into embedded chunks in the document index.
type Vectorizer struct {
	index    core.DocumentIndex
	embedder core.EmbeddingProvider
	cfg      IngestConfig
	log      *zap.Logger
}

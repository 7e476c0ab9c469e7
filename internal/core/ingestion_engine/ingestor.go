package ingestion_engine

import "context"

// Ingestor indexes the text at path under the given source name and
// reports how many chunks were stored.
type Ingestor interface {
	Vectorize(ctx context.Context, path, source string) (int, error)
}

var _ Ingestor = (*Vectorizer)(nil)

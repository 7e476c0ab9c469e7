package core

import (
	"context"
	"io"

	"github.com/markdave123-py/inboxpress/internal/models"
)

// DocumentIndex stores text chunks with their embeddings.
// Chunks are addressed by their source metadata, compared by exact equality.
type DocumentIndex interface {
	AddChunks(ctx context.Context, chunks []models.Chunk) error
	GetAll(ctx context.Context) (*models.IndexSnapshot, error)
	GetChunksBySource(ctx context.Context, source string) ([]models.Chunk, error)
	HasSource(ctx context.Context, source string) (bool, error)
	SearchChunks(ctx context.Context, queryVec []float32, limit int) ([]models.Chunk, error)

	Close() error
}

// ContentStore is the remote record store for topics and articles.
type ContentStore interface {
	InsertTopic(ctx context.Context, topic models.Topic) error
	FetchUnprocessedTopics(ctx context.Context) ([]models.Topic, error)
	MarkTopicProcessed(ctx context.Context, name string) error

	// InsertArticle reports created=false when the slug already exists.
	InsertArticle(ctx context.Context, article *models.Article) (created bool, err error)
	EnsureCategory(ctx context.Context, cat models.Category) (id string, err error)
}

// ObjectClient defines interactions with S3 or any S3 compatible storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (url string, err error)
}

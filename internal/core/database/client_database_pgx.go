package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/inboxpress/internal/config"
	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/models"
)

var _ core.DocumentIndex = (*DatabaseClient)(nil)

// DatabaseClient is the document index on Postgres with pgvector.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// single writer, a handful of readers for the status server
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// buildDSN appends certificate verification params when a CA cert is configured.
func buildDSN(databaseURL, sslCertPath string) (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is empty")
	}
	if sslCertPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// AddChunks inserts chunks in a single transaction.
func (c *DatabaseClient) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, metadata, position, text, embedding, token_count, created_at)
		VALUES ($1, $2::jsonb, $3, $4, $5, $6, COALESCE($7, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		md, err := json.Marshal(ch.Metadata())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode metadata: %w", err)
		}
		var createdAt *time.Time
		if !ch.CreatedAt.IsZero() {
			createdAt = &ch.CreatedAt
		}

		if _, err := stmt.ExecContext(ctx,
			ch.ID, string(md), ch.Position, ch.Text, pgvector.NewVector(ch.Embedding), ch.TokenCount, createdAt,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %d of %s: %w", ch.Position, ch.Source, err)
		}
	}
	return tx.Commit()
}

// GetAll returns every chunk's metadata and text, aligned by position.
func (c *DatabaseClient) GetAll(ctx context.Context) (*models.IndexSnapshot, error) {
	const q = `
		SELECT metadata, text
		FROM document_chunks
		ORDER BY metadata->>'source', position
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := &models.IndexSnapshot{}
	for rows.Next() {
		var (
			raw  []byte
			text string
		)
		if err := rows.Scan(&raw, &text); err != nil {
			return nil, err
		}
		md := map[string]any{}
		if err := json.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		snap.Metadatas = append(snap.Metadatas, md)
		snap.Documents = append(snap.Documents, text)
	}
	return snap, rows.Err()
}

func (c *DatabaseClient) GetChunksBySource(ctx context.Context, source string) ([]models.Chunk, error) {
	const q = `
		SELECT id, metadata, position, text, token_count, created_at
		FROM document_chunks
		WHERE metadata->>'source' = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// HasSource reports whether any chunk carries source as its metadata source.
func (c *DatabaseClient) HasSource(ctx context.Context, source string) (bool, error) {
	var found bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM document_chunks WHERE metadata->>'source' = $1)`, source,
	).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

// SearchChunks finds the top-k chunks closest to a query embedding.
func (c *DatabaseClient) SearchChunks(ctx context.Context, queryVec []float32, limit int) ([]models.Chunk, error) {
	const q = `
		SELECT id, metadata, position, text, token_count, created_at
		FROM document_chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <-> $1
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]models.Chunk, error) {
	var out []models.Chunk
	for rows.Next() {
		var (
			ch  models.Chunk
			raw []byte
		)
		if err := rows.Scan(&ch.ID, &raw, &ch.Position, &ch.Text, &ch.TokenCount, &ch.CreatedAt); err != nil {
			return nil, err
		}
		if err := applyMetadata(&ch, raw); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// applyMetadata fills Source and Page from the stored metadata document.
func applyMetadata(ch *models.Chunk, raw []byte) error {
	var md struct {
		Source string `json:"source"`
		Page   *int   `json:"page"`
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		return fmt.Errorf("decode metadata of chunk %s: %w", ch.ID, err)
	}
	ch.Source = md.Source
	ch.Page = md.Page
	return nil
}

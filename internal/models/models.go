package models

import (
	"time"
)

// FileClass is the converter family a file belongs to, decided by extension.
type FileClass string

const (
	ClassText    FileClass = "text"
	ClassEbook   FileClass = "ebook"
	ClassAudio   FileClass = "audio"
	ClassUnknown FileClass = "unknown"
)

// WatchedFile is a file observed in the inbox, either on the start-up sweep
// or through a filesystem creation event.
type WatchedFile struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Class        FileClass `json:"class"`
	Dir          string    `json:"dir"` // pending | processing | done | failed
	DiscoveredAt time.Time `json:"discovered_at"`
}

// ProcessingRecord tracks one run of the stage pipeline over a WatchedFile.
type ProcessingRecord struct {
	FileID         string     `json:"file_id"`
	Filename       string     `json:"filename"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	StepsCompleted []string   `json:"steps_completed"`
	CurrentStep    string     `json:"current_step"`
	Errors         []string   `json:"errors"`
	Success        bool       `json:"success"`
}

// Chunk is a contiguous span of extracted text, the unit stored in the document index.
type Chunk struct {
	ID         string    `db:"id" json:"id"`
	Source     string    `db:"source" json:"source"`
	Page       *int      `db:"page" json:"page,omitempty"`
	Position   int       `db:"position" json:"position"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"-"` // pgvector column
	TokenCount int       `db:"token_count" json:"token_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Metadata returns the chunk metadata map as stored next to the text.
func (c Chunk) Metadata() map[string]any {
	md := map[string]any{"source": c.Source}
	if c.Page != nil {
		md["page"] = *c.Page
	}
	return md
}

// IndexSnapshot is the full content of the document index, metadata and
// documents aligned by position.
type IndexSnapshot struct {
	Metadatas []map[string]any `json:"metadatas"`
	Documents []string         `json:"documents"`
}

// Topic is a keyword phrase extracted from a document, seed for one article.
// Name is the canonical field; records without it are rejected.
type Topic struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Label     string `json:"label,omitempty"`
	Source    string `json:"source,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Processed bool   `json:"processed"`
}

// Article is a generated blog post.
type Article struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title" validate:"required,max=100"`
	Slug        string     `json:"slug" validate:"required"`
	Content     string     `json:"content" validate:"required"`
	CategoryID  *string    `json:"category_id"`
	AuthorID    *string    `json:"author_id,omitempty"`
	Status      string     `json:"status" validate:"required"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Category groups articles on the content site.
type Category struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
	Slug string `json:"slug" validate:"required"`
}

// Progress is the per-directory file count of an inbox.
type Progress struct {
	Pending    int     `json:"pending"`
	Processing int     `json:"processing"`
	Done       int     `json:"done"`
	Failed     int     `json:"failed"`
	Percent    float64 `json:"percent"`
}

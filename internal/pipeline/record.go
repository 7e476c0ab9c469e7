package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/markdave123-py/inboxpress/internal/models"
)

const stepCompleted = "completed"

func newRecord(filename string, now time.Time) *models.ProcessingRecord {
	return &models.ProcessingRecord{
		FileID:         fmt.Sprintf("%s_%d", filename, now.Unix()),
		Filename:       filename,
		StartTime:      now,
		StepsCompleted: []string{},
		Errors:         []string{},
	}
}

// RecordStore writes processing records next to the inbox.
type RecordStore struct {
	layout Layout
}

func NewRecordStore(layout Layout) *RecordStore {
	return &RecordStore{layout: layout}
}

// Save replaces the state file of rec atomically (temp file and rename).
func (s *RecordStore) Save(rec *models.ProcessingRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	path := s.layout.StatePath(rec.FileID)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Load reads a persisted record.
func (s *RecordStore) Load(fileID string) (*models.ProcessingRecord, error) {
	b, err := os.ReadFile(s.layout.StatePath(fileID))
	if err != nil {
		return nil, err
	}
	var rec models.ProcessingRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", fileID, err)
	}
	return &rec, nil
}

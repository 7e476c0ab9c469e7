package objectclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/models"
)

// RecordArchiver copies completed processing records and their extracted
// text into object storage.
type RecordArchiver struct {
	store core.ObjectClient
	log   *zap.Logger
}

func NewRecordArchiver(store core.ObjectClient, log *zap.Logger) *RecordArchiver {
	return &RecordArchiver{store: store, log: log.With(zap.String("component", "archiver"))}
}

// Archive uploads records/<fileId>.json and, when textPath is set,
// converted/<filename>.txt.
func (a *RecordArchiver) Archive(ctx context.Context, rec *models.ProcessingRecord, textPath string) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	url, err := a.store.UploadFile(ctx, "records/"+rec.FileID+".json", bytes.NewReader(b), "application/json")
	if err != nil {
		return err
	}
	a.log.Info("record archived", zap.String("file_id", rec.FileID), zap.String("url", url))

	if textPath == "" {
		return nil
	}
	f, err := os.Open(textPath)
	if err != nil {
		return fmt.Errorf("open text: %w", err)
	}
	defer f.Close()

	name := rec.Filename
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(textPath), ".txt")
	}
	key := "converted/" + name + ".txt"
	url, err = a.store.UploadFile(ctx, key, f, "text/plain; charset=utf-8")
	if err != nil {
		return err
	}
	a.log.Info("text archived", zap.String("file_id", rec.FileID), zap.String("url", url))
	return nil
}

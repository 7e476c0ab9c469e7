package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lifecycle directories under the inbox root. Pending files live in the root itself.
const (
	DirProcessing = "processing"
	DirDone       = "done"
	DirFailed     = "failed"
	DirBackup     = "backup"
	DirConverted  = "converted"
)

var reservedDirs = map[string]bool{
	DirProcessing: true,
	DirDone:       true,
	DirFailed:     true,
	DirBackup:     true,
	DirConverted:  true,
}

// IsReserved reports whether name is one of the lifecycle directories.
func IsReserved(name string) bool {
	return reservedDirs[name]
}

// Layout resolves the lifecycle directories of one inbox.
type Layout struct {
	Root string
}

func NewLayout(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolve inbox %q: %w", root, err)
	}
	return Layout{Root: abs}, nil
}

func (l Layout) Pending() string    { return l.Root }
func (l Layout) Processing() string { return filepath.Join(l.Root, DirProcessing) }
func (l Layout) Done() string       { return filepath.Join(l.Root, DirDone) }
func (l Layout) Failed() string     { return filepath.Join(l.Root, DirFailed) }
func (l Layout) Backup() string     { return filepath.Join(l.Root, DirBackup) }
func (l Layout) Converted() string  { return filepath.Join(l.Root, DirConverted) }

// StatePath is where the processing record of fileID is persisted.
func (l Layout) StatePath(fileID string) string {
	return filepath.Join(l.Root, "processing_state_"+fileID+".json")
}

// Ensure creates the lifecycle directories. The root must already exist.
func (l Layout) Ensure() error {
	fi, err := os.Stat(l.Root)
	if err != nil {
		return fmt.Errorf("inbox %q: %w", l.Root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("inbox %q is not a directory", l.Root)
	}
	for _, d := range []string{l.Processing(), l.Done(), l.Failed(), l.Backup(), l.Converted()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/retry"
)

// Mover relocates files between lifecycle directories. Every move is
// preceded by a copy into the backup directory; backups are never removed.
type Mover struct {
	backupDir string
	policy    retry.Policy
	log       *zap.Logger
	now       func() time.Time
}

func NewMover(backupDir string, policy retry.Policy, log *zap.Logger) *Mover {
	return &Mover{
		backupDir: backupDir,
		policy:    policy,
		log:       log.With(zap.String("component", "mover")),
		now:       time.Now,
	}
}

// Move moves src into dstDir and returns the new path. A missing source
// fails at once with ErrSourceMissing; any other failure, including an
// existing destination, is retried per the policy and then reported as ErrMove.
func (m *Mover) Move(ctx context.Context, src, dstDir string) (string, error) {
	return m.move(ctx, src, dstDir, false)
}

// MoveUnique is Move for terminal directories (done, failed). When dstDir
// already holds a file of the same name, src gets a timestamp suffix
// instead, so a resubmitted file can always be finalized.
func (m *Mover) MoveUnique(ctx context.Context, src, dstDir string) (string, error) {
	return m.move(ctx, src, dstDir, true)
}

func (m *Mover) move(ctx context.Context, src, dstDir string, unique bool) (string, error) {
	name := filepath.Base(src)
	var dst string

	backedUp := false
	attempt := 0
	op := func() error {
		attempt++
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return retry.Permanent(fmt.Errorf("%w: %s", ErrSourceMissing, name))
			}
			return err
		}
		if !backedUp {
			if err := m.backup(src); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			backedUp = true
		}
		if err := os.MkdirAll(dstDir, 0o755); err != nil {
			return err
		}
		dst = filepath.Join(dstDir, name)
		if _, err := os.Lstat(dst); err == nil {
			if !unique {
				return fmt.Errorf("%w: %s", errDestinationExists, dst)
			}
			dst = m.stamped(dstDir, name)
			if _, err := os.Lstat(dst); err == nil {
				return fmt.Errorf("%w: %s", errDestinationExists, dst)
			}
			m.log.Info("destination taken, using a suffixed name",
				zap.String("file", name),
				zap.String("as", filepath.Base(dst)),
			)
		}
		return os.Rename(src, dst)
	}

	p := m.policy
	p.OnRetry = func(err error, next time.Duration) {
		m.log.Warn("move attempt failed, retrying",
			zap.String("file", name),
			zap.String("dst", dstDir),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}

	if err := retry.Do(ctx, p, op); err != nil {
		if errors.Is(err, ErrSourceMissing) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s -> %s after %d attempt(s): %w", ErrMove, name, filepath.Base(dstDir), attempt, err)
	}
	m.log.Debug("moved", zap.String("file", name), zap.String("dst", dstDir))
	return dst, nil
}

// backup copies src into the backup directory under a name that does not
// clobber earlier copies.
func (m *Mover) backup(src string) error {
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return err
	}
	name := filepath.Base(src)
	dst := filepath.Join(m.backupDir, name)
	if _, err := os.Lstat(dst); err == nil {
		dst = m.stamped(m.backupDir, name)
	}
	return copyFile(src, dst)
}

// stamped returns dir/<stem>.<UTC timestamp><ext>.
func (m *Mover) stamped(dir, name string) string {
	ext := filepath.Ext(name)
	return filepath.Join(dir, fmt.Sprintf("%s.%s%s", name[:len(name)-len(ext)], m.now().UTC().Format("20060102T150405.000000000"), ext))
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

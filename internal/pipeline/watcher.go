package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/models"
)

// Processor runs one file through the pipeline.
type Processor interface {
	Process(ctx context.Context, path string) Result
}

// Watcher feeds inbox files to the processor, strictly one at a time.
type Watcher struct {
	layout   Layout
	proc     Processor
	classify func(string) models.FileClass
	reporter *Reporter
	log      *zap.Logger

	settle time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewWatcher(layout Layout, proc Processor, classify func(string) models.FileClass, settle time.Duration, reporter *Reporter, log *zap.Logger) *Watcher {
	return &Watcher{
		layout:   layout,
		proc:     proc,
		classify: classify,
		reporter: reporter,
		log:      log.With(zap.String("component", "watcher")),
		settle:   settle,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingFiles lists the supported regular files in the inbox root in lexical order.
func (w *Watcher) PendingFiles() ([]models.WatchedFile, error) {
	entries, err := os.ReadDir(w.layout.Pending())
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	now := time.Now()
	var out []models.WatchedFile
	for _, e := range entries {
		if !e.Type().IsRegular() || IsReserved(e.Name()) {
			continue
		}
		class := w.classify(e.Name())
		if class == models.ClassUnknown {
			continue
		}
		out = append(out, models.WatchedFile{
			Path:         filepath.Join(w.layout.Pending(), e.Name()),
			Name:         e.Name(),
			Class:        class,
			Dir:          "pending",
			DiscoveredAt: now,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Sweep processes every pending file once. It stops early only when ctx ends.
func (w *Watcher) Sweep(ctx context.Context) ([]Result, error) {
	files, err := w.PendingFiles()
	if err != nil {
		return nil, err
	}
	w.log.Info("sweep started", zap.Int("files", len(files)))

	var results []Result
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		results = append(results, w.handle(ctx, f.Path))
	}
	return results, nil
}

// ProcessOne handles the first pending file, if any.
func (w *Watcher) ProcessOne(ctx context.Context) (*Result, error) {
	files, err := w.PendingFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		w.log.Info("no pending file")
		return nil, nil
	}
	res := w.handle(ctx, files[0].Path)
	return &res, nil
}

// Watch sweeps the inbox, then processes newly created files until ctx ends.
// The subscription is installed before the sweep so no file falls in between.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.layout.Pending()); err != nil {
		return fmt.Errorf("watch %s: %w", w.layout.Pending(), err)
	}

	queue := make(chan string, 256)
	go w.collect(ctx, fw, queue)

	if _, err := w.Sweep(ctx); err != nil {
		return err
	}
	w.log.Info("watching inbox", zap.String("dir", w.layout.Pending()))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watch stopped")
			return nil
		case path := <-queue:
			if err := w.sleep(ctx, w.settle); err != nil {
				return nil
			}
			fi, err := os.Stat(path)
			if errors.Is(err, fs.ErrNotExist) {
				// already handled by the sweep or removed by someone else
				continue
			}
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
			w.handle(ctx, path)
		}
	}
}

// collect forwards create events for supported files in the root.
func (w *Watcher) collect(ctx context.Context, fw *fsnotify.Watcher, queue chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if filepath.Dir(ev.Name) != w.layout.Pending() || IsReserved(filepath.Base(ev.Name)) {
				continue
			}
			if w.classify(ev.Name) == models.ClassUnknown {
				w.log.Debug("ignoring unsupported file", zap.String("file", filepath.Base(ev.Name)))
				continue
			}
			select {
			case queue <- ev.Name:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) Result {
	w.showProgress()
	res := w.proc.Process(ctx, path)
	w.showProgress()
	return res
}

func (w *Watcher) showProgress() {
	p, err := Progress(w.layout, w.classify)
	if err != nil {
		w.log.Warn("progress unavailable", zap.Error(err))
		return
	}
	w.reporter.Progress(p)
	w.log.Info("progress",
		zap.Int("pending", p.Pending),
		zap.Int("processing", p.Processing),
		zap.Int("done", p.Done),
		zap.Int("failed", p.Failed),
		zap.Float64("percent", p.Percent),
	)
}

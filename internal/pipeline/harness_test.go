package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/markdave123-py/inboxpress/internal/core/converter"
	"github.com/markdave123-py/inboxpress/internal/logger"
	"github.com/markdave123-py/inboxpress/internal/models"
	"github.com/markdave123-py/inboxpress/internal/retry"
)

// fakeTimer fires at once and remembers the requested delays.
type fakeTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	ch     chan time.Time
}

func newFakeTimer() *fakeTimer { return &fakeTimer{ch: make(chan time.Time, 1)} }

func (f *fakeTimer) Start(d time.Duration) {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	f.ch <- time.Now()
}
func (f *fakeTimer) Stop()               {}
func (f *fakeTimer) C() <-chan time.Time { return f.ch }

type fakeRouter struct {
	calls []string
	err   error
}

func (f *fakeRouter) Classify(path string) models.FileClass { return converter.Classify(path) }

func (f *fakeRouter) NeedsConversion(path string) bool { return filepath.Ext(path) != ".txt" }

func (f *fakeRouter) Convert(_ context.Context, src, outDir string) (string, error) {
	f.calls = append(f.calls, src)
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(src)
	out := filepath.Join(outDir, base+".txt")
	return out, os.WriteFile(out, []byte("text of "+base), 0o644)
}

type fakeIndex struct {
	sources map[string]bool
	err     error
}

func (f *fakeIndex) HasSource(_ context.Context, source string) (bool, error) {
	return f.sources[source], f.err
}

type vectorizeCall struct{ path, source string }

type fakeVectorizer struct {
	calls []vectorizeCall
	fn    func(ctx context.Context, path string) error
}

func (f *fakeVectorizer) Vectorize(ctx context.Context, path, source string) (int, error) {
	f.calls = append(f.calls, vectorizeCall{path, source})
	if f.fn != nil {
		if err := f.fn(ctx, path); err != nil {
			return 0, err
		}
	}
	return 3, nil
}

type fakeTopics struct {
	calls []string
	err   error
}

func (f *fakeTopics) Extract(_ context.Context, source string) (int, error) {
	f.calls = append(f.calls, source)
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

type fakeArticles struct {
	limits []int
	err    error
}

func (f *fakeArticles) Generate(_ context.Context, limit int) (int, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

type fakeArchiver struct {
	records []string
	err     error
}

func (f *fakeArchiver) Archive(_ context.Context, rec *models.ProcessingRecord, _ string) error {
	f.records = append(f.records, rec.FileID)
	return f.err
}

type harness struct {
	layout   Layout
	router   *fakeRouter
	index    *fakeIndex
	vec      *fakeVectorizer
	topics   *fakeTopics
	articles *fakeArticles
	archiver *fakeArchiver
	timer    *fakeTimer
	records  *RecordStore
	audit    *observer.ObservedLogs
	logs     *observer.ObservedLogs
	console  *bytes.Buffer
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, layout.Ensure())

	auditCore, auditLogs := observer.New(zapcore.InfoLevel)
	logCore, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(logCore)

	h := &harness{
		layout:   layout,
		router:   &fakeRouter{},
		index:    &fakeIndex{sources: map[string]bool{}},
		vec:      &fakeVectorizer{},
		topics:   &fakeTopics{},
		articles: &fakeArticles{},
		archiver: &fakeArchiver{},
		timer:    newFakeTimer(),
		records:  NewRecordStore(layout),
		audit:    auditLogs,
		logs:     logs,
		console:  &bytes.Buffer{},
	}
	h.orch = NewOrchestrator(Deps{
		Layout:         layout,
		Router:         h.router,
		Index:          h.index,
		Vectorizer:     h.vec,
		Topics:         h.topics,
		Articles:       h.articles,
		Mover:          NewMover(layout.Backup(), retry.Policy{MaxAttempts: 3, Base: time.Second, Timer: h.timer}, log),
		Records:        h.records,
		Audit:          logger.NewAuditLog(zap.New(auditCore)),
		Reporter:       NewReporter(h.console),
		Archiver:       h.archiver,
		Log:            log,
		Timeouts:       Timeouts{Vectorize: time.Minute},
		ArticlesPerRun: 100,
	})
	return h
}

// drop writes a file into the inbox root.
func (h *harness) drop(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.layout.Pending(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// where returns the lifecycle directories currently holding name.
func (h *harness) where(name string) []string {
	var found []string
	for dir, path := range map[string]string{
		"pending":    h.layout.Pending(),
		"processing": h.layout.Processing(),
		"done":       h.layout.Done(),
		"failed":     h.layout.Failed(),
	} {
		if fi, err := os.Stat(filepath.Join(path, name)); err == nil && fi.Mode().IsRegular() {
			found = append(found, dir)
		}
	}
	return found
}

func (h *harness) auditStages(event string) []string {
	var out []string
	for _, e := range h.audit.FilterMessage(event).All() {
		out = append(out, e.ContextMap()["stage"].(string))
	}
	return out
}

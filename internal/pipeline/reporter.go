package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/markdave123-py/inboxpress/internal/models"
)

// Reporter prints the human-readable banners that accompany the structured log.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

func (r *Reporter) printf(format string, args ...any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

func (r *Reporter) Start(name string, class models.FileClass) {
	r.printf("\n%s\n>> %s (%s)\n", strings.Repeat("=", 60), name, class)
}

func (r *Reporter) Stage(name string, s Stage) {
	r.printf("   [%s] %s\n", s, name)
}

func (r *Reporter) StageFailed(name string, s Stage, p FailurePolicy, err error) {
	r.printf("!! %s failed at %s (%s): %v\n", name, s, p, err)
}

func (r *Reporter) Finished(name string, res Result) {
	r.printf("<< %s: %s -> %s\n", name, res.Outcome, res.Path)
}

func (r *Reporter) Progress(p models.Progress) {
	r.printf("-- pending %d | processing %d | done %d | failed %d | %.1f%% complete\n",
		p.Pending, p.Processing, p.Done, p.Failed, p.Percent)
}

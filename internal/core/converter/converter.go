package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
	"github.com/markdave123-py/inboxpress/internal/models"
)

var _ core.ConverterRouter = (*Service)(nil)

// ErrNoText is returned when a converter ran but produced no usable text.
var ErrNoText = errors.New("no usable text extracted")

// ErrUnsupported is returned for files outside the extension table.
var ErrUnsupported = errors.New("unsupported file type")

// Options tunes the external tools behind the converters.
type Options struct {
	ToolTimeout     time.Duration // per external tool invocation
	MinTextChars    int           // minimum text for office documents
	OCRLang         string
	OCRMaxPages     int
	OCRDPI          int
	WhisperModel    string
	WhisperLanguage string
}

func (o *Options) setDefaults() {
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = 300 * time.Second
	}
	if o.MinTextChars <= 0 {
		o.MinTextChars = 100
	}
	if o.OCRLang == "" {
		o.OCRLang = "fra"
	}
	if o.OCRDPI <= 0 {
		o.OCRDPI = 300
	}
	if o.WhisperModel == "" {
		o.WhisperModel = "base"
	}
	if o.WhisperLanguage == "" {
		o.WhisperLanguage = "fr"
	}
}

// Converters is the set of per-format converters a Service dispatches to.
type Converters struct {
	PDF      core.Converter
	Document core.Converter // docx, odt, rtf
	HTML     core.Converter
	Ebook    core.Converter
	Audio    core.Converter
}

// Service routes a file to the converter for its format.
type Service struct {
	conv Converters
	log  *zap.Logger
}

// NewService builds the default converter set on top of runner.
func NewService(runner CommandRunner, opts Options, log *zap.Logger) *Service {
	opts.setDefaults()
	log = log.With(zap.String("component", "converter"))

	pdf := NewPDFConverter(runner, opts, log)
	return NewServiceWith(Converters{
		PDF:      pdf,
		Document: NewDocumentConverter(runner, opts, log),
		HTML:     NewHTMLConverter(opts),
		Ebook:    NewEbookConverter(runner, pdf, opts, log),
		Audio:    NewAudioConverter(runner, opts, log),
	}, log)
}

func NewServiceWith(conv Converters, log *zap.Logger) *Service {
	return &Service{conv: conv, log: log}
}

func (s *Service) Classify(path string) models.FileClass {
	return Classify(path)
}

// NeedsConversion is false for plain text, which is indexed as is.
func (s *Service) NeedsConversion(path string) bool {
	return Classify(path) != models.ClassUnknown && ext(path) != ".txt"
}

// Convert writes <outDir>/<filename>.txt and returns its path.
func (s *Service) Convert(ctx context.Context, src string, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	var c core.Converter
	switch Classify(src) {
	case models.ClassText:
		switch ext(src) {
		case ".pdf":
			c = s.conv.PDF
		case ".html", ".htm":
			c = s.conv.HTML
		case ".docx", ".odt", ".rtf":
			c = s.conv.Document
		}
	case models.ClassEbook:
		c = s.conv.Ebook
	case models.ClassAudio:
		c = s.conv.Audio
	}
	if c == nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(src))
	}

	start := time.Now()
	out, err := c.Convert(ctx, src, outDir)
	if err != nil {
		return "", err
	}
	s.log.Info("converted",
		zap.String("src", filepath.Base(src)),
		zap.String("out", out),
		zap.Duration("took", time.Since(start)),
	)
	return out, nil
}

// textName is the converted file name for src. The extension is kept so
// report.pdf and report.docx do not collide.
func textName(src string) string {
	return filepath.Base(src) + ".txt"
}

// writeText stores text as <outDir>/<name of src>.txt.
func writeText(outDir, src, text string) (string, error) {
	out := filepath.Join(outDir, textName(src))
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}

// readText returns the trimmed content of path, or ErrNoText if it is empty.
func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoText, filepath.Base(path))
	}
	return text, nil
}

// await runs fn in the background and gives up when ctx ends.
// Used for library calls that take no context.
func await(ctx context.Context, fn func() (string, error)) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := fn()
		ch <- result{text, err}
	}()
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

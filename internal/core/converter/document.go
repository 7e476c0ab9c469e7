package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DocumentConverter handles office formats (docx, odt, rtf). docconv is tried
// first; pandoc is the fallback when docconv fails or returns too little text.
type DocumentConverter struct {
	runner  CommandRunner
	extract TextExtractor
	opts    Options
	log     *zap.Logger
}

func NewDocumentConverter(runner CommandRunner, opts Options, log *zap.Logger) *DocumentConverter {
	opts.setDefaults()
	return &DocumentConverter{runner: runner, extract: docconvExtract, opts: opts, log: log}
}

func (c *DocumentConverter) Convert(ctx context.Context, src string, outDir string) (string, error) {
	text, err := c.extract(ctx, src)
	if err == nil && c.enough(text) {
		return writeText(outDir, src, strings.TrimSpace(text))
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	c.log.Info("docconv result unusable, falling back to pandoc",
		zap.String("src", filepath.Base(src)),
		zap.Int("chars", utf8.RuneCountInString(strings.TrimSpace(text))),
		zap.Error(err),
	)

	out := filepath.Join(outDir, textName(src))
	tctx, cancel := context.WithTimeout(ctx, c.opts.ToolTimeout)
	defer cancel()
	if _, err := c.runner.Run(tctx, "pandoc", src, "-t", "plain", "-o", out); err != nil {
		return "", fmt.Errorf("pandoc %s: %w", filepath.Base(src), err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		return "", fmt.Errorf("read pandoc output: %w", err)
	}
	if !c.enough(string(b)) {
		return "", fmt.Errorf("%w: %s has %d chars, need more than %d",
			ErrNoText, filepath.Base(src), utf8.RuneCount(b), c.opts.MinTextChars)
	}
	return out, nil
}

func (c *DocumentConverter) enough(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > c.opts.MinTextChars
}

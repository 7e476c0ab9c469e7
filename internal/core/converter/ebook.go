package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/core"
)

// EbookConverter renders ebooks to PDF with calibre's ebook-convert and then
// hands the PDF to the PDF converter.
type EbookConverter struct {
	runner CommandRunner
	pdf    core.Converter
	opts   Options
	log    *zap.Logger
}

func NewEbookConverter(runner CommandRunner, pdf core.Converter, opts Options, log *zap.Logger) *EbookConverter {
	opts.setDefaults()
	return &EbookConverter{runner: runner, pdf: pdf, opts: opts, log: log}
}

func (c *EbookConverter) Convert(ctx context.Context, src string, outDir string) (string, error) {
	pdfPath := filepath.Join(outDir, filepath.Base(src)+".pdf")

	tctx, cancel := context.WithTimeout(ctx, c.opts.ToolTimeout)
	defer cancel()
	if _, err := c.runner.Run(tctx, "ebook-convert", src, pdfPath); err != nil {
		return "", fmt.Errorf("ebook-convert %s: %w", filepath.Base(src), err)
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("ebook-convert produced no pdf at %s: %w", pdfPath, err)
	}
	c.log.Debug("ebook rendered to pdf", zap.String("src", filepath.Base(src)), zap.String("pdf", pdfPath))

	text, err := c.pdf.Convert(ctx, pdfPath, outDir)
	if err != nil {
		return "", err
	}
	out := filepath.Join(outDir, textName(src))
	if err := os.Rename(text, out); err != nil {
		return "", fmt.Errorf("store ebook text: %w", err)
	}
	return out, nil
}

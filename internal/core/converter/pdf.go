package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// TextExtractor pulls the embedded text layer out of a document.
type TextExtractor func(ctx context.Context, path string) (string, error)

// PDFConverter reads the PDF text layer with pdftotext and falls back to OCR
// (pdftoppm + tesseract) when the layer is empty, as with scanned books.
// Pages are separated by form feeds in the output.
type PDFConverter struct {
	runner    CommandRunner
	extract   TextExtractor
	pageCount func(path string) (int, error)
	opts      Options
	log       *zap.Logger
}

func NewPDFConverter(runner CommandRunner, opts Options, log *zap.Logger) *PDFConverter {
	opts.setDefaults()
	c := &PDFConverter{
		runner:    runner,
		pageCount: api.PageCountFile,
		opts:      opts,
		log:       log,
	}
	c.extract = c.textLayer
	return c
}

// textLayer runs pdftotext under the tool timeout. Page breaks are kept.
func (c *PDFConverter) textLayer(ctx context.Context, path string) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, c.opts.ToolTimeout)
	defer cancel()
	out, err := c.runner.Run(tctx, "pdftotext", "-q", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// docconvExtract converts with docconv using the mime type implied by the extension.
func docconvExtract(ctx context.Context, path string) (string, error) {
	return await(ctx, func() (string, error) {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()

		res, err := docconv.Convert(f, docconv.MimeTypeByExtension(path), false)
		if err != nil {
			return "", fmt.Errorf("docconv: %w", err)
		}
		return res.Body, nil
	})
}

func (c *PDFConverter) Convert(ctx context.Context, src string, outDir string) (string, error) {
	text, err := c.extract(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("pdf text layer: %w", err)
		}
		c.log.Warn("pdf text layer extraction failed, trying OCR", zap.String("src", filepath.Base(src)), zap.Error(err))
	}

	if strings.TrimSpace(text) == "" {
		text, err = c.ocr(ctx, src)
		if err != nil {
			return "", fmt.Errorf("ocr %s: %w", filepath.Base(src), err)
		}
	}
	return writeText(outDir, src, text)
}

var pageImageRe = regexp.MustCompile(`^page-(\d+)\.png$`)

func (c *PDFConverter) ocr(ctx context.Context, src string) (string, error) {
	pages, err := c.pageCount(src)
	if err != nil {
		// pdfcpu is stricter than poppler; a parse failure here is not fatal.
		c.log.Warn("pdf page count unavailable", zap.String("src", filepath.Base(src)), zap.Error(err))
		pages = 0
	}
	want := pages
	if c.opts.OCRMaxPages > 0 && (want == 0 || want > c.opts.OCRMaxPages) {
		want = c.opts.OCRMaxPages
	}
	c.log.Info("running OCR", zap.String("src", filepath.Base(src)), zap.Int("pages", pages), zap.Int("rendering", want), zap.String("lang", c.opts.OCRLang))

	work, err := os.MkdirTemp("", "inboxpress-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr workdir: %w", err)
	}
	defer os.RemoveAll(work)

	args := []string{"-r", strconv.Itoa(c.opts.OCRDPI), "-png"}
	if want > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(want))
	}
	args = append(args, src, filepath.Join(work, "page"))

	tctx, cancel := context.WithTimeout(ctx, c.opts.ToolTimeout)
	defer cancel()
	if _, err := c.runner.Run(tctx, "pdftoppm", args...); err != nil {
		return "", err
	}

	images, err := pageImages(work)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("%w: pdftoppm rendered no pages", ErrNoText)
	}
	// With a known page count a short render means pages would silently go missing.
	if pages > 0 && len(images) < want {
		return "", fmt.Errorf("%w: pdftoppm rendered %d of %d pages", ErrNoText, len(images), want)
	}

	var b strings.Builder
	for _, img := range images {
		base := strings.TrimSuffix(img, filepath.Ext(img))
		if _, err := c.runner.Run(tctx, "tesseract", img, base, "-l", c.opts.OCRLang); err != nil {
			return "", err
		}
		page, err := os.ReadFile(base + ".txt")
		if err != nil {
			return "", fmt.Errorf("read ocr output: %w", err)
		}
		b.Write(page)
		b.WriteString("\f")
	}

	text := strings.TrimRight(b.String(), "\f")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: OCR produced empty text", ErrNoText)
	}
	return text, nil
}

// pageImages lists the rendered pages of dir in page order.
func pageImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		m := pageImageRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pages = append(pages, page{n: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLConverter keeps the visible text of a saved web page.
type HTMLConverter struct {
	opts Options
}

func NewHTMLConverter(opts Options) *HTMLConverter {
	opts.setDefaults()
	return &HTMLConverter{opts: opts}
}

func (c *HTMLConverter) Convert(ctx context.Context, src string, outDir string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", filepath.Base(src), err)
	}
	doc.Find("script, style, noscript, template, svg").Remove()

	var lines []string
	add := func(s string) {
		if l := strings.Join(strings.Fields(s), " "); l != "" {
			lines = append(lines, l)
		}
	}

	add(doc.Find("title").First().Text())
	body := doc.Find("body")
	blocks := body.Find("h1, h2, h3, h4, h5, h6, p, li, blockquote, pre, td")
	if blocks.Length() == 0 {
		for _, l := range strings.Split(body.Text(), "\n") {
			add(l)
		}
	} else {
		blocks.Each(func(_ int, s *goquery.Selection) {
			// nested blocks (li > p) are emitted by their innermost element
			if s.Find("p, li, blockquote, pre").Length() > 0 {
				return
			}
			add(s.Text())
		})
	}

	text := strings.Join(lines, "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrNoText, filepath.Base(src))
	}
	return writeText(outDir, src, text)
}

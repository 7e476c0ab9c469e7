package ingestion_engine

import (
	"bufio"
	"context"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// streamExtract converts an io.Reader into a stream of small text fragments.
//
// r:           the text source.
// maxFragLen:  cap in characters; long lines split into multiple fragments.
// out:         receive-only channel of fragments; closed when extraction completes.
//
// Form feeds advance the page counter, starting at page 1.
func (v *Vectorizer) streamExtract(
	ctx context.Context,
	g *errgroup.Group,
	r io.Reader,
	maxFragLen int,
) <-chan fragment {
	out := make(chan fragment, 8)

	g.Go(func() error {
		defer close(out)

		sc := bufio.NewScanner(r)
		// OCR and transcripts can produce very long lines.
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 1<<20)

		page := 1
		emit := func(text string) error {
			select {
			case out <- fragment{Text: text, Page: page}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for sc.Scan() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			for n, part := range strings.Split(sc.Text(), "\f") {
				if n > 0 {
					page++
				}
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}

				runes := []rune(part)
				for len(runes) > maxFragLen {
					if err := emit(string(runes[:maxFragLen])); err != nil {
						return err
					}
					runes = runes[maxFragLen:]
				}
				if err := emit(string(runes)); err != nil {
					return err
				}
			}
		}
		return sc.Err()
	})

	return out
}

package ingestion_engine

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// streamChunk groups incoming fragments into chunks of at most size characters.
// Fragments are joined with newlines. After each chunk the trailing fragments
// that fit in overlap characters seed the next one.
func (v *Vectorizer) streamChunk(
	ctx context.Context,
	g *errgroup.Group,
	frags <-chan fragment,
	size int,
	overlap int,
) <-chan chunk {
	out := make(chan chunk, 8)

	g.Go(func() error {
		defer close(out)

		var (
			buf    []fragment
			bufLen int // characters of buf joined with "\n"
			fresh  int // fragments not yet emitted in any chunk
			page   int // page of the first fresh fragment
			pos    int
		)

		joinedLen := func(n, extra int) int {
			if n == 0 {
				return extra
			}
			return bufLen + 1 + extra
		}

		recount := func() {
			bufLen = 0
			for i, f := range buf {
				if i > 0 {
					bufLen++
				}
				bufLen += utf8.RuneCountInString(f.Text)
			}
		}

		flush := func() error {
			texts := make([]string, len(buf))
			for i, f := range buf {
				texts[i] = f.Text
			}
			text := strings.Join(texts, "\n")
			ch := chunk{Pos: pos, Text: text, Page: page, TokenCnt: approxTokens(text)}
			pos++

			select {
			case out <- ch:
			case <-ctx.Done():
				return ctx.Err()
			}

			// keep the tail that fits in overlap
			keep := len(buf)
			total := 0
			for j := len(buf) - 1; j >= 0; j-- {
				n := utf8.RuneCountInString(buf[j].Text)
				if j < len(buf)-1 {
					n++
				}
				if total+n > overlap {
					break
				}
				total += n
				keep = j
			}
			buf = append([]fragment(nil), buf[keep:]...)
			recount()
			fresh = 0
			return nil
		}

		for f := range frags {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			n := utf8.RuneCountInString(f.Text)
			if len(buf) > 0 && joinedLen(len(buf), n) > size && fresh > 0 {
				if err := flush(); err != nil {
					return err
				}
			}
			for len(buf) > 0 && joinedLen(len(buf), n) > size {
				buf = buf[1:]
				recount()
			}

			if fresh == 0 {
				page = f.Page
			}
			buf = append(buf, f)
			bufLen = joinedLen(len(buf)-1, n)
			fresh++
		}

		if fresh > 0 {
			return flush()
		}
		return nil
	})

	return out
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

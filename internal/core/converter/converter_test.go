package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/models"
)

// fakeRunner records invocations and lets each test simulate tool output.
type fakeRunner struct {
	calls     [][]string
	deadlines []bool
	output    map[string]string // stdout per tool name
	fn        func(name string, args []string) error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
	out := []byte(f.output[name])
	if f.fn == nil {
		return out, nil
	}
	return out, f.fn(name, args)
}

func (f *fakeRunner) tools() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c[0])
	}
	return out
}

type stubConverter struct {
	name string
	got  string
}

func (s *stubConverter) Convert(_ context.Context, src, outDir string) (string, error) {
	s.got = src
	return writeText(outDir, src, "from "+s.name)
}

func touch(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := map[string]models.FileClass{
		"report.pdf":      models.ClassText,
		"NOTES.TXT":       models.ClassText,
		"letter.docx":     models.ClassText,
		"page.htm":        models.ClassText,
		"book.epub":       models.ClassEbook,
		"book.AZW3":       models.ClassEbook,
		"talk.mp3":        models.ClassAudio,
		"memo.m4a":        models.ClassAudio,
		"photo.jpg":       models.ClassUnknown,
		"archive.tar.gz":  models.ClassUnknown,
		"no_extension":    models.ClassUnknown,

		"processing_state_x.json": models.ClassUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, Classify(filepath.Join("/inbox", name)), name)
	}
}

func TestService_NeedsConversion(t *testing.T) {
	t.Parallel()
	s := NewServiceWith(Converters{}, zap.NewNop())

	assert.False(t, s.NeedsConversion("/inbox/notes.txt"))
	assert.False(t, s.NeedsConversion("/inbox/photo.jpg"))
	assert.True(t, s.NeedsConversion("/inbox/report.pdf"))
	assert.True(t, s.NeedsConversion("/inbox/talk.mp3"))
}

func TestService_ConvertDispatch(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	pdf := &stubConverter{name: "pdf"}
	doc := &stubConverter{name: "doc"}
	html := &stubConverter{name: "html"}
	ebook := &stubConverter{name: "ebook"}
	audio := &stubConverter{name: "audio"}
	s := NewServiceWith(Converters{PDF: pdf, Document: doc, HTML: html, Ebook: ebook, Audio: audio}, zap.NewNop())

	cases := []struct {
		src  string
		want *stubConverter
	}{
		{"/in/a.pdf", pdf},
		{"/in/b.odt", doc},
		{"/in/c.HTML", html},
		{"/in/d.mobi", ebook},
		{"/in/e.flac", audio},
	}
	for _, tc := range cases {
		path, err := s.Convert(context.Background(), tc.src, out)
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.src, tc.want.got)
		assert.Equal(t, filepath.Join(out, filepath.Base(tc.src)+".txt"), path)
	}

	_, err := s.Convert(context.Background(), "/in/photo.png", out)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestPDFConverter_NativeTextLayer(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	runner := &fakeRunner{}

	c := NewPDFConverter(runner, Options{}, zap.NewNop())
	c.extract = func(context.Context, string) (string, error) { return "Chapter one\nSome real text.", nil }

	path, err := c.Convert(context.Background(), "/in/report.pdf", out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "report.pdf.txt"), path)
	assert.Empty(t, runner.calls, "OCR must not run when the text layer is present")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Some real text.")
}

func TestPDFConverter_TextLayerKeepsPageBreaks(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	runner := &fakeRunner{output: map[string]string{
		"pdftotext": "Page one text.\fPage two text.\fPage three text.\f",
	}}

	path, err := NewPDFConverter(runner, Options{}, zap.NewNop()).Convert(context.Background(), "/in/report.pdf", out)
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"pdftotext", "-q", "-layout", "-enc", "UTF-8", "/in/report.pdf", "-"}, runner.calls[0])
	assert.True(t, runner.deadlines[0], "pdftotext must run under the tool timeout")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\f"))
}

func TestPDFConverter_OCRFallbackForScans(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	runner := &fakeRunner{}
	runner.fn = func(name string, args []string) error {
		switch name {
		case "pdftoppm":
			prefix := args[len(args)-1]
			touch(t, prefix+"-2.png", "img")
			touch(t, prefix+"-1.png", "img")
			touch(t, prefix+"-10.png", "img")
		case "tesseract":
			base := args[1]
			touch(t, base+".txt", "text of "+filepath.Base(base)+"\n")
		}
		return nil
	}

	c := NewPDFConverter(runner, Options{OCRLang: "fra"}, zap.NewNop())
	c.extract = func(context.Context, string) (string, error) { return "  \n\f ", nil }
	c.pageCount = func(string) (int, error) { return 0, errors.New("not a pdf") }

	path, err := c.Convert(context.Background(), "/in/scan.pdf", out)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(b)
	assert.NotEmpty(t, strings.TrimSpace(text))
	assert.Less(t, strings.Index(text, "page-1"), strings.Index(text, "page-2"))
	assert.Less(t, strings.Index(text, "page-2"), strings.Index(text, "page-10"))
	assert.Equal(t, []string{"pdftoppm", "tesseract", "tesseract", "tesseract"}, runner.tools())
	assert.Contains(t, runner.calls[1], "fra")
}

func TestPDFConverter_OCREmptyIsError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{fn: func(name string, args []string) error {
		switch name {
		case "pdftoppm":
			touch(t, args[len(args)-1]+"-1.png", "img")
		case "tesseract":
			touch(t, args[1]+".txt", "   ")
		}
		return nil
	}}
	c := NewPDFConverter(runner, Options{}, zap.NewNop())
	c.extract = func(context.Context, string) (string, error) { return "", nil }
	c.pageCount = func(string) (int, error) { return 1, nil }

	_, err := c.Convert(context.Background(), "/in/blank.pdf", t.TempDir())
	require.ErrorIs(t, err, ErrNoText)
}

func TestPDFConverter_ShortRenderIsError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pages    int
		maxPages int
		rendered int
		wantLast string
	}{
		{name: "missing pages", pages: 3, rendered: 2, wantLast: "3"},
		{name: "capped render short", pages: 10, maxPages: 4, rendered: 3, wantLast: "4"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			runner := &fakeRunner{}
			runner.fn = func(name string, args []string) error {
				if name == "pdftoppm" {
					for i := 1; i <= tc.rendered; i++ {
						touch(t, fmt.Sprintf("%s-%d.png", args[len(args)-1], i), "img")
					}
				}
				return nil
			}
			c := NewPDFConverter(runner, Options{OCRMaxPages: tc.maxPages}, zap.NewNop())
			c.extract = func(context.Context, string) (string, error) { return "", nil }
			c.pageCount = func(string) (int, error) { return tc.pages, nil }

			_, err := c.Convert(context.Background(), "/in/scan.pdf", t.TempDir())
			require.ErrorIs(t, err, ErrNoText)
			assert.ErrorContains(t, err, fmt.Sprintf("rendered %d of %s pages", tc.rendered, tc.wantLast))
			assert.Equal(t, []string{"pdftoppm"}, runner.tools(), "no OCR on a short render")

			ppm := runner.calls[0]
			i := indexOf(ppm, "-l")
			require.GreaterOrEqual(t, i, 0)
			assert.Equal(t, tc.wantLast, ppm[i+1])
		})
	}
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}

func TestDocumentConverter_PandocFallback(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	long := strings.Repeat("Un paragraphe utile. ", 20)

	runner := &fakeRunner{fn: func(name string, args []string) error {
		require.Equal(t, "pandoc", name)
		touch(t, args[len(args)-1], long)
		return nil
	}}
	c := NewDocumentConverter(runner, Options{}, zap.NewNop())
	c.extract = func(context.Context, string) (string, error) { return "too short", nil }

	path, err := c.Convert(context.Background(), "/in/letter.docx", out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "letter.docx.txt"), path)
	assert.Equal(t, []string{"pandoc", "/in/letter.docx", "-t", "plain", "-o", path}, runner.calls[0])
}

func TestDocumentConverter_TooLittleText(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{fn: func(_ string, args []string) error {
		touch(t, args[len(args)-1], "short")
		return nil
	}}
	c := NewDocumentConverter(runner, Options{}, zap.NewNop())
	c.extract = func(context.Context, string) (string, error) { return "", errors.New("unrtf missing") }

	_, err := c.Convert(context.Background(), "/in/note.rtf", t.TempDir())
	require.ErrorIs(t, err, ErrNoText)
}

func TestHTMLConverter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := touch(t, filepath.Join(dir, "page.html"), `<html><head><title>Gestion du temps</title>
<script>var x = "hidden";</script><style>p{color:red}</style></head>
<body><h1>Bien planifier</h1><p>Planifier   sa semaine
 le dimanche.</p><ul><li><p>Bloquer des créneaux</p></li></ul></body></html>`)

	path, err := NewHTMLConverter(Options{}).Convert(context.Background(), src, dir)
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(b)
	assert.Contains(t, text, "Gestion du temps")
	assert.Contains(t, text, "Planifier sa semaine le dimanche.")
	assert.Equal(t, 1, strings.Count(text, "Bloquer des créneaux"))
	assert.NotContains(t, text, "hidden")
	assert.NotContains(t, text, "color:red")
}

func TestAudioConverter_TranscriptPath(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	runner := &fakeRunner{fn: func(name string, args []string) error {
		require.Equal(t, "whisper", name)
		touch(t, filepath.Join(args[len(args)-1], "talk.txt"), "bonjour à tous")
		return nil
	}}
	path, err := NewAudioConverter(runner, Options{}, zap.NewNop()).Convert(context.Background(), "/in/talk.mp3", out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "talk.mp3.txt"), path)
	assert.Contains(t, runner.calls[0], "--output_dir")
	assert.NoFileExists(t, filepath.Join(out, "talk.txt"))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "whisper scratch dir must be removed")
}

func TestAudioConverter_EmptyTranscript(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	runner := &fakeRunner{fn: func(_ string, args []string) error {
		touch(t, filepath.Join(args[len(args)-1], "silence.txt"), "\n")
		return nil
	}}
	_, err := NewAudioConverter(runner, Options{}, zap.NewNop()).Convert(context.Background(), "/in/silence.wav", out)
	require.ErrorIs(t, err, ErrNoText)
}

func TestEbookConverter_ChainsThroughPDF(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	runner := &fakeRunner{fn: func(name string, args []string) error {
		require.Equal(t, "ebook-convert", name)
		touch(t, args[1], "%PDF-1.4")
		return nil
	}}
	pdf := &stubConverter{name: "pdf"}

	path, err := NewEbookConverter(runner, pdf, Options{}, zap.NewNop()).Convert(context.Background(), "/in/book.epub", out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "book.epub.pdf"), pdf.got)
	assert.Equal(t, filepath.Join(out, "book.epub.txt"), path)
	assert.FileExists(t, path)
}

func TestEbookConverter_ToolFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{fn: func(string, []string) error { return errors.New("exit status 1") }}
	_, err := NewEbookConverter(runner, &stubConverter{}, Options{}, zap.NewNop()).
		Convert(context.Background(), "/in/broken.epub", t.TempDir())
	require.ErrorContains(t, err, "ebook-convert broken.epub")
}

package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AudioConverter transcribes speech with the whisper CLI. whisper names its
// output after the stem, so it writes into a scratch dir and the transcript
// is moved to <outDir>/<name>.txt.
type AudioConverter struct {
	runner CommandRunner
	opts   Options
	log    *zap.Logger
}

func NewAudioConverter(runner CommandRunner, opts Options, log *zap.Logger) *AudioConverter {
	opts.setDefaults()
	return &AudioConverter{runner: runner, opts: opts, log: log}
}

func (c *AudioConverter) Convert(ctx context.Context, src string, outDir string) (string, error) {
	work, err := os.MkdirTemp(outDir, ".whisper-*")
	if err != nil {
		return "", fmt.Errorf("create whisper workdir: %w", err)
	}
	defer os.RemoveAll(work)

	tctx, cancel := context.WithTimeout(ctx, c.opts.ToolTimeout)
	defer cancel()

	_, err = c.runner.Run(tctx, "whisper", src,
		"--model", c.opts.WhisperModel,
		"--language", c.opts.WhisperLanguage,
		"--output_format", "txt",
		"--output_dir", work,
	)
	if err != nil {
		return "", fmt.Errorf("whisper %s: %w", filepath.Base(src), err)
	}

	transcript := filepath.Join(work, stem(src)+".txt")
	if _, err := readText(transcript); err != nil {
		return "", fmt.Errorf("transcript for %s: %w", filepath.Base(src), err)
	}
	out := filepath.Join(outDir, textName(src))
	if err := os.Rename(transcript, out); err != nil {
		return "", fmt.Errorf("store transcript: %w", err)
	}
	c.log.Info("transcribed", zap.String("src", filepath.Base(src)), zap.String("model", c.opts.WhisperModel))
	return out, nil
}

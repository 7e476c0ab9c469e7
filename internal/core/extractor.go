package core

import (
	"context"

	"github.com/markdave123-py/inboxpress/internal/models"
)

// Converter turns one input file into plain text.
// It writes the text under outDir and returns the path of the produced .txt file.
type Converter interface {
	Convert(ctx context.Context, src string, outDir string) (string, error)
}

// ConverterRouter picks the converter matching a file and reports whether a
// file needs converting at all (plain text does not).
type ConverterRouter interface {
	Classify(path string) models.FileClass
	NeedsConversion(path string) bool
	Converter
}

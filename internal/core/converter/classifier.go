package converter

import (
	"path/filepath"
	"strings"

	"github.com/markdave123-py/inboxpress/internal/models"
)

var extensionClasses = map[string]models.FileClass{
	".pdf":  models.ClassText,
	".txt":  models.ClassText,
	".docx": models.ClassText,
	".rtf":  models.ClassText,
	".odt":  models.ClassText,
	".html": models.ClassText,
	".htm":  models.ClassText,

	".epub": models.ClassEbook,
	".mobi": models.ClassEbook,
	".azw":  models.ClassEbook,
	".azw3": models.ClassEbook,
	".fb2":  models.ClassEbook,
	".lit":  models.ClassEbook,
	".pdb":  models.ClassEbook,

	".mp3":  models.ClassAudio,
	".wav":  models.ClassAudio,
	".m4a":  models.ClassAudio,
	".flac": models.ClassAudio,
	".ogg":  models.ClassAudio,
	".aac":  models.ClassAudio,
}

// Classify maps a path to its file class by extension only.
func Classify(path string) models.FileClass {
	if c, ok := extensionClasses[ext(path)]; ok {
		return c
	}
	return models.ClassUnknown
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

package pipeline

import (
	"os"

	"github.com/markdave123-py/inboxpress/internal/models"
)

// Progress counts the files of each lifecycle directory. Pending counts only
// supported files in the root; the other directories count every regular file.
func Progress(l Layout, classify func(string) models.FileClass) (models.Progress, error) {
	var (
		p   models.Progress
		err error
	)
	if p.Pending, err = countFiles(l.Pending(), classify); err != nil {
		return p, err
	}
	if p.Processing, err = countFiles(l.Processing(), nil); err != nil {
		return p, err
	}
	if p.Done, err = countFiles(l.Done(), nil); err != nil {
		return p, err
	}
	if p.Failed, err = countFiles(l.Failed(), nil); err != nil {
		return p, err
	}
	if total := p.Done + p.Pending; total > 0 {
		p.Percent = float64(p.Done) / float64(total) * 100
	}
	return p, nil
}

func countFiles(dir string, classify func(string) models.FileClass) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if classify != nil && classify(e.Name()) == models.ClassUnknown {
			continue
		}
		n++
	}
	return n, nil
}

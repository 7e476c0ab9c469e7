package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	a, err := OpenAuditLog(path)
	require.NoError(t, err)
	a.Transition("report.pdf_1700000000", "report.pdf", "conversion")
	a.Failure("report.pdf_1700000000", "report.pdf", "vectorization", errors.New("vectorization: boom"))
	require.NoError(t, a.Close())

	// reopening must append, not truncate
	a, err = OpenAuditLog(path)
	require.NoError(t, err)
	a.Transition("report.pdf_1700000000", "report.pdf", "finalization")
	require.NoError(t, a.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		entries = append(entries, m)
	}
	require.NoError(t, sc.Err())
	require.Len(t, entries, 3)

	assert.Equal(t, "conversion", entries[0]["stage"])
	assert.Equal(t, "report.pdf", entries[0]["filename"])
	assert.NotEmpty(t, entries[0]["ts"])
	assert.Equal(t, "stage_failed", entries[1]["event"])
	assert.Contains(t, entries[1]["error"], "vectorization")
	assert.Equal(t, "finalization", entries[2]["stage"])
}

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		l := New(mode)
		require.NotNil(t, l)
		l.Debug("probe")
	}
}

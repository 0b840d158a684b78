package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhirpath/logging"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBatchMode(t *testing.T) {
	resourcePath := writeFile(t, "patient.json", `{
		"resourceType": "Patient",
		"name": [{"given": ["Peter"], "family": "Chalmers"}]
	}`)
	logger := logging.NewLogger(logging.LevelError, io.Discard)

	t.Run("evaluates every line", func(t *testing.T) {
		exprPath := writeFile(t, "exprs.txt", `// comment lines are skipped
name.given
name.family

name.count() = 1
`)
		err := BatchMode(exprPath, resourcePath, DefaultConfig(), logger)
		assert.NoError(t, err)
	})

	t.Run("reports failing lines", func(t *testing.T) {
		exprPath := writeFile(t, "bad.txt", "name.given\n1 +\n")
		err := BatchMode(exprPath, resourcePath, DefaultConfig(), logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 expression(s) failed")
	})

	t.Run("missing expression file", func(t *testing.T) {
		err := BatchMode(filepath.Join(t.TempDir(), "nope.txt"), resourcePath, DefaultConfig(), logger)
		assert.Error(t, err)
	})

	t.Run("missing resource file", func(t *testing.T) {
		exprPath := writeFile(t, "exprs.txt", "1 + 1\n")
		err := BatchMode(exprPath, filepath.Join(t.TempDir(), "nope.json"), DefaultConfig(), logger)
		assert.Error(t, err)
	})

	t.Run("no resource evaluates pure expressions", func(t *testing.T) {
		exprPath := writeFile(t, "pure.txt", "2 + 3 * 4\n'abc'.upper()\n")
		err := BatchMode(exprPath, "", DefaultConfig(), logger)
		assert.NoError(t, err)
	})
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"bartetl/pkg/etl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnceJSONKeepsStdoutClean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("BARTETL_API_KEY", "test-key")
	t.Setenv("BARTETL_API_BASE_URL", srv.URL)
	t.Setenv("BARTETL_MAX_ATTEMPTS", "1")
	t.Setenv("BARTETL_LOG_LEVEL", "error")
	t.Setenv("BARTETL_SQLITE_PATH", filepath.Join(dir, "bart.db"))
	t.Setenv("BARTETL_CHECKPOINT_PATH", filepath.Join(dir, "checkpoint.json"))
	t.Cleanup(func() { onceJSON = false })

	var stdout, stderr bytes.Buffer
	code := execute([]string{"once", "--json", "--no-color"}, &stdout, &stderr)

	assert.Equal(t, 1, code)

	var res etl.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res), "stdout must hold only the JSON result: %q", stdout.String())
	assert.Equal(t, etl.StatusError, res.Status)
	assert.Contains(t, res.Message, "failed to extract stations")

	assert.Contains(t, stderr.String(), "Error: failed to extract stations")
}

func TestExecuteReportsErrorsOnStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"no-such-command"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Error:")
}

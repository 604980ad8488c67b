package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "bundler.log")

	l, err := New(&Config{LogFile: file, MaxSize: 1, Console: &console})
	require.NoError(t, err)

	l.WithBundle("bundle-1").Info("Bundle submitted")
	l.Debug("hidden at info level")
	require.NoError(t, l.Sync())

	assert.Contains(t, console.String(), "Bundle submitted")
	assert.NotContains(t, console.String(), "hidden at info level")

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "bundle-1", entry["bundle_id"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Contains(t, entry, "timestamp")
}

func TestWithOperation_CorrelationID(t *testing.T) {
	var console bytes.Buffer
	l, err := New(&Config{Console: &console, Development: true})
	require.NoError(t, err)

	l.WithOperation("assemble").Debug("first")
	l.WithOperation("assemble").Debug("second")

	out := console.String()
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.Equal(t, 2, strings.Count(out, "correlation_id"))

	done := l.TrackPerformance("pack")
	done()
	assert.Contains(t, console.String(), "Operation completed")
}

func TestWithWallet(t *testing.T) {
	var console bytes.Buffer
	l, err := New(&Config{Console: &console, Development: true})
	require.NoError(t, err)

	l.WithWallet("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin").Info("order resolved")
	assert.Contains(t, console.String(), "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
}

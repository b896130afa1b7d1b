package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/ripfetch/internal/utils"
)

var _ utils.Observer = (*Console)(nil)
var _ utils.Observer = (*Logger)(nil)

func TestConsole_LineMode(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	assert.False(t, c.live)

	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0644))

	c.Started("https://a.test/a.bin")
	c.TotalBytes("https://a.test/a.bin", 2048)
	c.BytesCompleted("https://a.test/a.bin", 2048)
	c.Completed("https://a.test/a.bin", path)
	c.Started("https://a.test/b")
	c.Errored("https://a.test/b", errors.New("boom"))
	c.Exists("https://a.test/c", "/tmp/c")
	c.LimitReached()

	out := buf.String()
	assert.Contains(t, out, "Saved "+path)
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "Failed https://a.test/b: boom")
	assert.Contains(t, out, "Exists /tmp/c")
	assert.Contains(t, out, "Download limit reached")
	assert.Equal(t, 4, strings.Count(out, "\n"))

	s := c.Summary()
	assert.Equal(t, Summary{Total: 3, Succeeded: 1, Warnings: 1, Failed: 1}, s)
}

func TestConsole_StopPrintsSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Start()
	c.Errored("https://a.test/x", errors.New("HTTP 404"))
	c.Interrupted("https://a.test/y")
	c.Stop()

	out := buf.String()
	assert.Contains(t, out, "Completed 0 of 2")
	assert.Contains(t, out, "Skipped 1 of 2")
	assert.Contains(t, out, "Failed 1 of 2")
	assert.Contains(t, out, "Errors:")
	assert.Contains(t, out, "Error: HTTP 404")
}

func TestProgressBar(t *testing.T) {
	bar := progressBar(512, 1024, 2*time.Second, 10)
	assert.Contains(t, bar, "50.0%")
	assert.Contains(t, bar, "512 B / 1.0 KiB")
	assert.Contains(t, bar, "256 B/s")

	unknown := progressBar(4096, -1, 0, 10)
	assert.Contains(t, unknown, "4.0 KiB")
	assert.NotContains(t, unknown, "%")

	over := progressBar(4096, 1024, time.Second, 10)
	assert.Contains(t, over, "100.0%")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Started("https://a.test/x")
	l.Completed("https://a.test/x", "/tmp/x")
	l.Errored("https://a.test/y", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "/tmp/x", first["path"])
	assert.Equal(t, "output/logger", first["op"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "error", second["level"])
	assert.Equal(t, "boom", second["error"])
}

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWritesCast(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")

	var buf bytes.Buffer
	rec := NewRecorderWithWriter(&buf)
	start := time.Unix(1700000000, 0)
	rec.start = start
	offsets := []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}
	rec.now = func() time.Time {
		d := offsets[0]
		offsets = offsets[1:]
		return start.Add(d)
	}

	require.NoError(t, rec.WriteHeader(100, 30))
	require.NoError(t, rec.RecordInput("ls\r"))
	require.NoError(t, rec.RecordOutput("a.txt\r\n"))
	require.NoError(t, rec.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var header castHeader
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	assert.Equal(t, castHeader{
		Version:   2,
		Width:     100,
		Height:    30,
		Timestamp: 1700000000,
		Env:       map[string]string{"TERM": "xterm-256color"},
	}, header)

	assert.Equal(t, `[0.5,"i","ls\r"]`, lines[1])
	assert.Equal(t, `[1.5,"o","a.txt\r\n"]`, lines[2])
}

func TestRecorderRejectsWritesAfterClose(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorderWithWriter(&buf)
	require.NoError(t, rec.Close())

	assert.Error(t, rec.RecordOutput("x"))
	assert.Zero(t, buf.Len())
}

func TestNewRecorderCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cast")

	rec, err := NewRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.WriteHeader(80, 24))
	require.NoError(t, rec.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"version":2,"width":80,"height":24`))
}

func TestNewRecorderBadPath(t *testing.T) {
	_, err := NewRecorder(filepath.Join(t.TempDir(), "missing", "session.cast"))
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	// Packages
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func Test_openPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("h"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("bb"), 0o644))

	files, err := openPaths([]string{dir}, false)
	require.NoError(t, err)
	t.Cleanup(func() { closeFiles(files) })
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)

	_, err = openPaths([]string{filepath.Join(dir, "missing")}, false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func Test_progress(t *testing.T) {
	var buf bytes.Buffer
	p := &progress{w: &buf, names: map[uint64]string{}}
	p.add(1, "a.txt")

	sink := p.Sink()
	sink.OnProgress(1, 0.5)
	sink.OnDone(1, 1500*time.Millisecond)
	sink.OnFailed(1, errors.New("quota exceeded"))

	out := buf.String()
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, " 50.0%")
	assert.Contains(t, out, "done in 1.5s")
	assert.Contains(t, out, "failed: quota exceeded")
}

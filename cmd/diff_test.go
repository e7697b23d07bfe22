package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueDiff(t *testing.T) {
	assert.Empty(t, ValueDiff("k", "same", "same"))

	out := ValueDiff("k", "a\nb\n", "a\nc\n")
	assert.Contains(t, out, "--- k (stored)")
	assert.Contains(t, out, "+++ k (new)")
	assert.Contains(t, out, "@@")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 bytes", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
	assert.Equal(t, "1.0 GB", formatSize(1024*1024*1024))
}

func TestStoreSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 5), 0600))

	size, err := storeSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(15), size)

	size, err = storeSize(filepath.Join(dir, "a"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

package handles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenGetRelease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	f, err := os.Create(path)
	require.NoError(t, err)

	tbl := New()
	fh := tbl.Open(f, os.O_RDWR, "f.txt")

	e, ok := tbl.Get(fh)
	require.True(t, ok)
	assert.Equal(t, "f.txt", e.RealPath)
	assert.True(t, e.Writable)
	assert.Equal(t, 1, tbl.Count())

	require.NoError(t, tbl.Release(fh))
	assert.Equal(t, 0, tbl.Count())

	_, ok = tbl.Get(fh)
	assert.False(t, ok)
}

func TestReleaseUnknownHandleIsNoOp(t *testing.T) {
	tbl := New()
	assert.NoError(t, tbl.Release(999))
}

func TestGetUnknownHandleNotFound(t *testing.T) {
	tbl := New()
	_, ok := tbl.Get(999)
	assert.False(t, ok)
}

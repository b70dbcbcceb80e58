package registry

import (
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
)

func TestRootBoundAtInode1(t *testing.T) {
	r := New()
	path, ok := r.Resolve(RootInodeID)
	assert.True(t, ok)
	assert.Equal(t, "", path)
}

func TestBindMintsStableInode(t *testing.T) {
	r := New()
	ino1 := r.Bind("a.txt")
	ino2 := r.Bind("a.txt")
	assert.Equal(t, ino1, ino2)
	assert.NotEqual(t, RootInodeID, ino1)
}

func TestResolveChild(t *testing.T) {
	r := New()
	dirIno := r.Bind("dir")
	path, ok := r.ResolveChild(dirIno, "inner")
	assert.True(t, ok)
	assert.Equal(t, "dir/inner", path)
}

func TestRenameRewritesDescendants(t *testing.T) {
	r := New()
	dirIno := r.Bind("a")
	innerIno := r.Bind("a/inner")

	r.Rename("a", "b")

	path, ok := r.Resolve(dirIno)
	assert.True(t, ok)
	assert.Equal(t, "b", path)

	path, ok = r.Resolve(innerIno)
	assert.True(t, ok)
	assert.Equal(t, "b/inner", path)
}

func TestForgetRemovesBinding(t *testing.T) {
	r := New()
	ino := r.Bind("f.txt")
	r.Forget(ino)

	_, ok := r.Resolve(ino)
	assert.False(t, ok)
}

func TestForgetUnknownInodeIsNoOp(t *testing.T) {
	r := New()
	r.Forget(fuseops.InodeID(9999))
	assert.Equal(t, 1, r.Count())
}

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/izefs/ize/internal/clock"
	"github.com/izefs/ize/internal/handles"
	"github.com/izefs/ize/internal/observer"
	"github.com/izefs/ize/internal/project"
	"github.com/izefs/ize/internal/registry"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/stretchr/testify/require"
)

// recordingSink captures every notification the engine fires, so tests
// can assert both the real filesystem effect and the recorded opcode
// without standing up the recorder/opqueue/backend chain.
type recordingSink struct {
	observer.NoopSink
	creates []string
	writes  []string
	mkdirs  []string
	renames [][2]string
}

func (s *recordingSink) OnCreate(path string, mode uint32, content []byte, ts time.Time) error {
	s.creates = append(s.creates, path)
	return nil
}

func (s *recordingSink) OnWrite(path string, offset int64, data []byte, ts time.Time) error {
	s.writes = append(s.writes, path)
	return nil
}

func (s *recordingSink) OnMkdir(path string, mode uint32, ts time.Time) error {
	s.mkdirs = append(s.mkdirs, path)
	return nil
}

func (s *recordingSink) OnRename(oldPath, newPath string, isDir bool, ts time.Time) error {
	s.renames = append(s.renames, [2]string{oldPath, newPath})
	return nil
}

func newTestFS(t *testing.T) (*FS, *recordingSink, string) {
	t.Helper()

	dir := t.TempDir()
	src, err := project.OpenSource(dir)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	sink := &recordingSink{}
	bus := observer.New()
	bus.Register(sink)

	engine := New(src, registry.New(), handles.New(), bus, &clock.RealClock{}, false)
	return engine, sink, dir
}

func TestCreateFileCreatesRealFileAndNotifies(t *testing.T) {
	engine, sink, dir := newTestFS(t)
	ctx := context.Background()

	op := &fuseops.CreateFileOp{Parent: registry.RootInodeID, Name: "hello.txt", Mode: 0o644}
	require.NoError(t, engine.CreateFile(ctx, op))

	_, err := os.Stat(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, []string{"hello.txt"}, sink.creates)

	releaseOp := &fuseops.ReleaseFileHandleOp{Handle: op.Handle}
	require.NoError(t, engine.ReleaseFileHandle(ctx, releaseOp))
}

func TestWriteFileWritesThroughHandleAndNotifies(t *testing.T) {
	engine, sink, dir := newTestFS(t)
	ctx := context.Background()

	createOp := &fuseops.CreateFileOp{Parent: registry.RootInodeID, Name: "f.txt", Mode: 0o644}
	require.NoError(t, engine.CreateFile(ctx, createOp))

	writeOp := &fuseops.WriteFileOp{Handle: createOp.Handle, Offset: 0, Data: []byte("hello")}
	require.NoError(t, engine.WriteFile(ctx, writeOp))

	got, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	require.Equal(t, []string{"f.txt"}, sink.writes)
}

func TestMkDirAndReadDirRoundTrip(t *testing.T) {
	engine, sink, _ := newTestFS(t)
	ctx := context.Background()

	mkdirOp := &fuseops.MkDirOp{Parent: registry.RootInodeID, Name: "sub", Mode: 0o755}
	require.NoError(t, engine.MkDir(ctx, mkdirOp))
	require.Equal(t, []string{"sub"}, sink.mkdirs)

	openOp := &fuseops.OpenDirOp{Inode: registry.RootInodeID}
	require.NoError(t, engine.OpenDir(ctx, openOp))

	readOp := &fuseops.ReadDirOp{
		Inode:  registry.RootInodeID,
		Handle: openOp.Handle,
		Dst:    make([]byte, 4096),
	}
	require.NoError(t, engine.ReadDir(ctx, readOp))
	require.Positive(t, readOp.BytesRead)
}

func TestRenameMovesFileAndRewritesRegistry(t *testing.T) {
	engine, sink, dir := newTestFS(t)
	ctx := context.Background()

	createOp := &fuseops.CreateFileOp{Parent: registry.RootInodeID, Name: "old.txt", Mode: 0o644}
	require.NoError(t, engine.CreateFile(ctx, createOp))

	renameOp := &fuseops.RenameOp{
		OldParent: registry.RootInodeID,
		OldName:   "old.txt",
		NewParent: registry.RootInodeID,
		NewName:   "new.txt",
	}
	require.NoError(t, engine.Rename(ctx, renameOp))

	_, err := os.Stat(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "old.txt"))
	require.True(t, os.IsNotExist(err))
	require.Equal(t, [][2]string{{"old.txt", "new.txt"}}, sink.renames)

	path, ok := engine.reg.Resolve(createOp.Entry.Child)
	require.True(t, ok)
	require.Equal(t, "new.txt", path)
}

func TestReadOnlyRejectsMutation(t *testing.T) {
	dir := t.TempDir()
	src, err := project.OpenSource(dir)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	bus := observer.New()
	engine := New(src, registry.New(), handles.New(), bus, &clock.RealClock{}, true)

	op := &fuseops.MkDirOp{Parent: registry.RootInodeID, Name: "nope", Mode: 0o755}
	err = engine.MkDir(context.Background(), op)
	require.Error(t, err)
}

var _ fuseutil.FileSystem = (*FS)(nil)

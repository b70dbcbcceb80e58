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

// Package fs implements C3, the passthrough engine: it serves every FUSE
// op by performing the equivalent *at syscall against the preserved
// source-directory descriptor, then — once the real operation has
// succeeded — notifies the observer bus so the mutation is durably
// recorded. No mutation is ever recorded before the real filesystem
// confirms it happened, and a failure to record turns the kernel reply
// itself into an error rather than silently losing the change.
package fs

import (
	"context"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/izefs/ize/common"
	"github.com/izefs/ize/internal/clock"
	"github.com/izefs/ize/internal/handles"
	"github.com/izefs/ize/internal/logger"
	"github.com/izefs/ize/internal/observer"
	"github.com/izefs/ize/internal/project"
	"github.com/izefs/ize/internal/registry"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sys/unix"
)

var _ fuseutil.FileSystem = (*FS)(nil)

// FS is the passthrough engine described in §4.3 of SPEC_FULL.md. Every
// method resolves a kernel inode/handle pair to a real path or
// descriptor and issues the corresponding *at syscall against src; the
// Registry and Table it holds are the only state the kernel's view of
// the filesystem is built from.
type FS struct {
	fuseutil.NotImplementedFileSystem

	src      *project.SourceFD
	reg      *registry.Registry
	handles  *handles.Table
	dirs     *dirHandleTable
	bus      *observer.Bus
	clk      clock.Clock
	readOnly bool
}

// New returns an FS rooted at src, binding its Registry's root to the
// empty relative path. The FS emits notifications on bus for every
// successful mutation; readOnly suppresses every method that would
// mutate (CreateFile, WriteFile, MkDir, Unlink, RmDir, Rename,
// CreateSymlink, CreateLink, SetInodeAttributes) with EROFS, mirroring
// the way the kernel itself refuses writes on a read-only mount.
func New(src *project.SourceFD, reg *registry.Registry, ht *handles.Table, bus *observer.Bus, clk clock.Clock, readOnly bool) *FS {
	return &FS{
		src:      src,
		reg:      reg,
		handles:  ht,
		dirs:     newDirHandleTable(),
		bus:      bus,
		clk:      clk,
		readOnly: readOnly,
	}
}

// now returns the injected clock's current time, falling back to the
// wall clock if none was supplied.
func (fs *FS) now() time.Time {
	if fs.clk == nil {
		return time.Now()
	}
	return fs.clk.Now()
}

// resolve looks up the relative path bound to ino, translating an
// unbound inode into ENOENT — the only legitimate reason the kernel
// would reference an inode the Registry doesn't know about is a stale
// cache entry racing a Forget.
func (fs *FS) resolve(ino fuseops.InodeID) (string, error) {
	path, ok := fs.reg.Resolve(ino)
	if !ok {
		return "", syscall.ENOENT
	}
	return path, nil
}

// toErrno maps a Go error from a syscall or from the observer bus onto
// the errno the kernel expects. Unrecognized errors become EIO: a
// record-path failure (e.g. the opcode queue overflowing) must not be
// confused with a genuine "no such file" from the kernel's point of
// view, so it is reported as an I/O error rather than guessed at.
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok {
		return errno
	}
	if pe, ok := err.(*os.PathError); ok {
		return toErrno(pe.Err)
	}
	if le, ok := err.(*os.LinkError); ok {
		return toErrno(le.Err)
	}
	return fuse.EIO
}

// attributesFor stats relPath (not following a trailing symlink) and
// converts the result into fuseops.InodeAttributes.
func (fs *FS) attributesFor(relPath string) (fuseops.InodeAttributes, error) {
	var st unix.Stat_t
	name := relPath
	if name == "" {
		name = "."
	}
	if err := unix.Fstatat(fs.src.FD(), name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return fuseops.InodeAttributes{}, err
	}
	return statToAttributes(&st), nil
}

func statToAttributes(st *unix.Stat_t) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(st.Size),
		Nlink: uint64(st.Nlink),
		Mode:  modeFromStat(st.Mode),
		Atime: time.Unix(st.Atim.Sec, st.Atim.Nsec),
		Mtime: time.Unix(st.Mtim.Sec, st.Mtim.Nsec),
		Ctime: time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
		Uid:   st.Uid,
		Gid:   st.Gid,
	}
}

// modeFromStat converts a raw POSIX mode word into an os.FileMode,
// translating the file-type bits the way os.Lstat itself does so
// GetInodeAttributes reports directories and symlinks correctly rather
// than just their permission bits.
func modeFromStat(raw uint32) os.FileMode {
	perm := os.FileMode(raw & 0o7777)
	switch raw & unix.S_IFMT {
	case unix.S_IFDIR:
		return perm | os.ModeDir
	case unix.S_IFLNK:
		return perm | os.ModeSymlink
	case unix.S_IFSOCK:
		return perm | os.ModeSocket
	case unix.S_IFIFO:
		return perm | os.ModeNamedPipe
	case unix.S_IFBLK:
		return perm | os.ModeDevice
	case unix.S_IFCHR:
		return perm | os.ModeDevice | os.ModeCharDevice
	default:
		return perm
	}
}

// childEntry looks up (or mints) the inode for parent/name, stats it,
// and fills out a ChildInodeEntry. It is the shared core of LookUpInode
// and every op that creates a new child (MkDir, CreateFile, ...).
func (fs *FS) childEntry(parentPath, name string) (fuseops.ChildInodeEntry, error) {
	childPath := join(parentPath, name)
	attrs, err := fs.attributesFor(childPath)
	if err != nil {
		return fuseops.ChildInodeEntry{}, err
	}

	ino := fs.reg.Bind(childPath)
	return fuseops.ChildInodeEntry{
		Child:      ino,
		Attributes: attrs,
	}, nil
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

////////////////////////////////////////////////////////////////////////
// Inodes
////////////////////////////////////////////////////////////////////////

func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	logger.Tracef("dispatch: %s", common.OpLookUpInode)
	parentPath, err := fs.resolve(op.Parent)
	if err != nil {
		return toErrno(err)
	}

	entry, err := fs.childEntry(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}
	op.Entry = entry
	return nil
}

func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	logger.Tracef("dispatch: %s", common.OpGetInodeAttributes)
	path, err := fs.resolve(op.Inode)
	if err != nil {
		return toErrno(err)
	}

	attrs, err := fs.attributesFor(path)
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = attrs
	return nil
}

// SetInodeAttributes handles chmod(2), utimes(2), and
// truncate(2)/ftruncate(2) — the kernel funnels all of them through
// this one op, per the modification/size fields it leaves non-nil.
// Ownership changes (chown(2)) are neither applied nor recorded.
// Truncate prefers an already-open, writable handle when one was given
// (ftruncate semantics), falling back to a path-based truncate
// otherwise, matching the table in §4.3 of SPEC_FULL.md.
func (fs *FS) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	logger.Tracef("dispatch: %s", common.OpSetInodeAttributes)
	if fs.readOnly && (op.Size != nil || op.Mode != nil || op.Atime != nil || op.Mtime != nil) {
		return syscall.EROFS
	}

	path, err := fs.resolve(op.Inode)
	if err != nil {
		return toErrno(err)
	}

	ts := fs.now()

	if op.Mode != nil {
		if err := unix.Fchmodat(fs.src.FD(), path, uint32(*op.Mode), 0); err != nil {
			return toErrno(err)
		}
		if err := fs.bus.NotifySetPermissions(path, uint32(*op.Mode), ts); err != nil {
			logger.Errorf("SetInodeAttributes: notify permissions %s: %v", path, err)
			return fuse.EIO
		}
	}

	if op.Atime != nil || op.Mtime != nil {
		times := [2]unix.Timespec{{Nsec: unix.UTIME_OMIT}, {Nsec: unix.UTIME_OMIT}}
		if op.Atime != nil {
			times[0] = unix.NsecToTimespec(op.Atime.UnixNano())
		}
		if op.Mtime != nil {
			times[1] = unix.NsecToTimespec(op.Mtime.UnixNano())
		}
		if err := unix.UtimesNanoAt(fs.src.FD(), path, times[:], unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return toErrno(err)
		}
		if err := fs.bus.NotifySetTimestamps(path, ts); err != nil {
			logger.Errorf("SetInodeAttributes: notify timestamps %s: %v", path, err)
			return fuse.EIO
		}
	}

	if op.Size != nil {
		// Use the kernel-supplied handle when it is open for writing
		// (ftruncate); otherwise reopen by path.
		var entry *handles.Entry
		if op.Handle != nil {
			entry, _ = fs.handles.Get(*op.Handle)
		}
		if entry != nil && entry.Writable {
			if err := entry.File.Truncate(int64(*op.Size)); err != nil {
				return toErrno(err)
			}
		} else if err := fs.truncate(path, int64(*op.Size)); err != nil {
			return err
		}
		if err := fs.bus.NotifyTruncate(path, int64(*op.Size), ts); err != nil {
			logger.Errorf("SetInodeAttributes: notify truncate %s: %v", path, err)
			return fuse.EIO
		}
	}

	attrs, err := fs.attributesFor(path)
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = attrs
	return nil
}

// truncate resizes the file at path to size via the preserved directory
// descriptor. SetInodeAttributes falls back to it when the kernel gave
// no handle, or gave one that is not open for writing.
func (fs *FS) truncate(path string, size int64) error {
	fd, err := unix.Openat(fs.src.FD(), fs.joinSource(path), unix.O_WRONLY, 0)
	if err != nil {
		return toErrno(err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, size); err != nil {
		return toErrno(err)
	}
	return nil
}

func (fs *FS) joinSource(path string) string {
	if path == "" {
		return "."
	}
	return path
}

func (fs *FS) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	logger.Tracef("dispatch: %s", common.OpForgetInode)
	fs.reg.Forget(op.Inode)
	return nil
}

////////////////////////////////////////////////////////////////////////
// Inode creation
////////////////////////////////////////////////////////////////////////

func (fs *FS) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	logger.Tracef("dispatch: %s", common.OpMkDir)
	if fs.readOnly {
		return syscall.EROFS
	}

	parentPath, err := fs.resolve(op.Parent)
	if err != nil {
		return toErrno(err)
	}

	if err := unix.Mkdirat(fs.src.FD(), join(parentPath, op.Name), uint32(op.Mode)); err != nil {
		return toErrno(err)
	}

	entry, err := fs.childEntry(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}
	op.Entry = entry

	if err := fs.bus.NotifyMkdir(join(parentPath, op.Name), uint32(op.Mode), fs.now()); err != nil {
		logger.Errorf("MkDir: notify %s: %v", op.Name, err)
		return fuse.EIO
	}
	return nil
}

// CreateFile creates and opens a regular file in one kernel round trip.
// The observer is notified with the file's (empty) initial content,
// matching the file_create opcode's expectation of a full snapshot.
func (fs *FS) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	logger.Tracef("dispatch: %s", common.OpCreateFile)
	if fs.readOnly {
		return syscall.EROFS
	}

	parentPath, err := fs.resolve(op.Parent)
	if err != nil {
		return toErrno(err)
	}

	childPath := join(parentPath, op.Name)
	fd, err := unix.Openat(fs.src.FD(), childPath, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, uint32(op.Mode))
	if err != nil {
		return toErrno(err)
	}

	file := os.NewFile(uintptr(fd), childPath)
	attrs, err := fs.attributesFor(childPath)
	if err != nil {
		file.Close()
		return toErrno(err)
	}

	ino := fs.reg.Bind(childPath)
	op.Entry = fuseops.ChildInodeEntry{Child: ino, Attributes: attrs}
	op.Handle = fs.handles.Open(file, int(unix.O_RDWR), childPath)

	if err := fs.bus.NotifyCreate(childPath, uint32(op.Mode), nil, fs.now()); err != nil {
		logger.Errorf("CreateFile: notify %s: %v", childPath, err)
		return fuse.EIO
	}
	return nil
}

func (fs *FS) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	logger.Tracef("dispatch: %s", common.OpCreateSymlink)
	if fs.readOnly {
		return syscall.EROFS
	}

	parentPath, err := fs.resolve(op.Parent)
	if err != nil {
		return toErrno(err)
	}

	childPath := join(parentPath, op.Name)
	if err := unix.Symlinkat(op.Target, fs.src.FD(), childPath); err != nil {
		return toErrno(err)
	}

	entry, err := fs.childEntry(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}
	op.Entry = entry

	if err := fs.bus.NotifySymlink(childPath, op.Target, fs.now()); err != nil {
		logger.Errorf("CreateSymlink: notify %s: %v", childPath, err)
		return fuse.EIO
	}
	return nil
}

// CreateLink creates a hard link. target is the already-bound existing
// inode; Registry maps each inode to a single path, so the link's new
// path is bound to a distinct inode of its own, even though both paths
// name the same underlying file.
func (fs *FS) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	logger.Tracef("dispatch: %s", common.OpCreateLink)
	if fs.readOnly {
		return syscall.EROFS
	}

	parentPath, err := fs.resolve(op.Parent)
	if err != nil {
		return toErrno(err)
	}
	existingPath, err := fs.resolve(op.Target)
	if err != nil {
		return toErrno(err)
	}

	childPath := join(parentPath, op.Name)
	if err := unix.Linkat(fs.src.FD(), existingPath, fs.src.FD(), childPath, 0); err != nil {
		return toErrno(err)
	}

	entry, err := fs.childEntry(parentPath, op.Name)
	if err != nil {
		return toErrno(err)
	}
	op.Entry = entry

	if err := fs.bus.NotifyLink(existingPath, childPath, fs.now()); err != nil {
		logger.Errorf("CreateLink: notify %s: %v", childPath, err)
		return fuse.EIO
	}
	return nil
}

////////////////////////////////////////////////////////////////////////
// Renaming
////////////////////////////////////////////////////////////////////////

func (fs *FS) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	logger.Tracef("dispatch: %s", common.OpRename)
	if fs.readOnly {
		return syscall.EROFS
	}

	oldParent, err := fs.resolve(op.OldParent)
	if err != nil {
		return toErrno(err)
	}
	newParent, err := fs.resolve(op.NewParent)
	if err != nil {
		return toErrno(err)
	}

	oldPath := join(oldParent, op.OldName)
	newPath := join(newParent, op.NewName)

	var st unix.Stat_t
	isDir := false
	if err := unix.Fstatat(fs.src.FD(), oldPath, &st, unix.AT_SYMLINK_NOFOLLOW); err == nil {
		isDir = st.Mode&unix.S_IFMT == unix.S_IFDIR
	}

	if err := unix.Renameat(fs.src.FD(), oldPath, fs.src.FD(), newPath); err != nil {
		return toErrno(err)
	}

	fs.reg.Rename(oldPath, newPath)

	if err := fs.bus.NotifyRename(oldPath, newPath, isDir, fs.now()); err != nil {
		logger.Errorf("Rename: notify %s -> %s: %v", oldPath, newPath, err)
		return fuse.EIO
	}
	return nil
}

////////////////////////////////////////////////////////////////////////
// Unlinking
////////////////////////////////////////////////////////////////////////

func (fs *FS) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	logger.Tracef("dispatch: %s", common.OpRmDir)
	if fs.readOnly {
		return syscall.EROFS
	}

	parentPath, err := fs.resolve(op.Parent)
	if err != nil {
		return toErrno(err)
	}

	childPath := join(parentPath, op.Name)
	if err := unix.Unlinkat(fs.src.FD(), childPath, unix.AT_REMOVEDIR); err != nil {
		return toErrno(err)
	}

	if err := fs.bus.NotifyRmdir(childPath, fs.now()); err != nil {
		logger.Errorf("RmDir: notify %s: %v", childPath, err)
		return fuse.EIO
	}
	return nil
}

func (fs *FS) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	logger.Tracef("dispatch: %s", common.OpUnlink)
	if fs.readOnly {
		return syscall.EROFS
	}

	parentPath, err := fs.resolve(op.Parent)
	if err != nil {
		return toErrno(err)
	}

	childPath := join(parentPath, op.Name)
	if err := unix.Unlinkat(fs.src.FD(), childPath, 0); err != nil {
		return toErrno(err)
	}

	if err := fs.bus.NotifyUnlink(childPath, fs.now()); err != nil {
		logger.Errorf("Unlink: notify %s: %v", childPath, err)
		return fuse.EIO
	}
	return nil
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

func (fs *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	logger.Tracef("dispatch: %s", common.OpOpenDir)
	path, err := fs.resolve(op.Inode)
	if err != nil {
		return toErrno(err)
	}

	entries, err := fs.readDirents(path)
	if err != nil {
		return toErrno(err)
	}

	op.Handle = fs.dirs.open(entries)
	return nil
}

// readDirents lists relPath through the preserved descriptor and
// returns fuseutil.Dirents with inode numbers bound in the Registry,
// minting a binding for any child seen for the first time.
func (fs *FS) readDirents(relPath string) ([]fuseutil.Dirent, error) {
	dirFD, err := unix.Openat(fs.src.FD(), fs.joinSource(relPath), unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, err
	}
	dir := os.NewFile(uintptr(dirFD), relPath)
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil, err
	}

	entries := make([]fuseutil.Dirent, 0, len(names))
	for i, name := range names {
		childPath := join(relPath, name)

		var st unix.Stat_t
		if err := unix.Fstatat(fs.src.FD(), childPath, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			continue
		}

		ino := fs.reg.Bind(childPath)
		entries = append(entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  ino,
			Name:   name,
			Type:   directDirentType(st.Mode),
		})
	}
	return entries, nil
}

func directDirentType(mode uint32) fuseutil.DirentType {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return fuseutil.DT_Directory
	case unix.S_IFLNK:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	logger.Tracef("dispatch: %s", common.OpReadDir)
	entries, ok := fs.dirs.get(op.Handle)
	if !ok {
		return syscall.EINVAL
	}

	if int(op.Offset) > len(entries) {
		return nil
	}

	for _, e := range entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *FS) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	logger.Tracef("dispatch: %s", common.OpReleaseDirHandle)
	fs.dirs.release(op.Handle)
	return nil
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

func (fs *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	logger.Tracef("dispatch: %s", common.OpOpenFile)
	path, err := fs.resolve(op.Inode)
	if err != nil {
		return toErrno(err)
	}

	flags := unix.O_RDWR
	if fs.readOnly {
		flags = unix.O_RDONLY
	}

	fd, err := unix.Openat(fs.src.FD(), fs.joinSource(path), flags, 0)
	if err != nil {
		return toErrno(err)
	}

	op.Handle = fs.handles.Open(os.NewFile(uintptr(fd), path), flags, path)
	return nil
}

func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	logger.Tracef("dispatch: %s", common.OpReadFile)
	entry, ok := fs.handles.Get(op.Handle)
	if !ok {
		return syscall.EBADF
	}

	n, err := entry.File.ReadAt(op.Dst, op.Offset)
	op.BytesRead = n
	if err != nil && err != io.EOF {
		return toErrno(err)
	}
	return nil
}

func (fs *FS) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	logger.Tracef("dispatch: %s", common.OpWriteFile)
	if fs.readOnly {
		return syscall.EROFS
	}

	entry, ok := fs.handles.Get(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	if !entry.Writable {
		return syscall.EBADF
	}

	if _, err := entry.File.WriteAt(op.Data, op.Offset); err != nil {
		return toErrno(err)
	}

	if err := fs.bus.NotifyWrite(entry.RealPath, op.Offset, op.Data, fs.now()); err != nil {
		logger.Errorf("WriteFile: notify %s: %v", entry.RealPath, err)
		return fuse.EIO
	}
	return nil
}

func (fs *FS) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	logger.Tracef("dispatch: %s", common.OpSyncFile)
	entry, ok := fs.handles.Get(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	if err := entry.File.Sync(); err != nil {
		return toErrno(err)
	}
	return nil
}

func (fs *FS) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	logger.Tracef("dispatch: %s", common.OpFlushFile)
	entry, ok := fs.handles.Get(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	if err := entry.File.Sync(); err != nil {
		return toErrno(err)
	}
	return nil
}

func (fs *FS) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	logger.Tracef("dispatch: %s", common.OpReleaseFileHandle)
	if err := fs.handles.Release(op.Handle); err != nil {
		logger.Errorf("ReleaseFileHandle: close %d: %v", op.Handle, err)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////
// Symlinks and filesystem stats
////////////////////////////////////////////////////////////////////////

func (fs *FS) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	logger.Tracef("dispatch: %s", common.OpReadSymlink)
	path, err := fs.resolve(op.Inode)
	if err != nil {
		return toErrno(err)
	}

	buf := make([]byte, 4096)
	n, err := unix.Readlinkat(fs.src.FD(), path, buf)
	if err != nil {
		return toErrno(err)
	}
	op.Target = string(buf[:n])
	return nil
}

func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	logger.Tracef("dispatch: %s", common.OpStatFS)
	var st unix.Statfs_t
	if err := unix.Fstatfs(fs.src.FD(), &st); err != nil {
		return toErrno(err)
	}

	op.BlockSize = uint32(st.Bsize)
	op.Blocks = st.Blocks
	op.BlocksFree = st.Bfree
	op.BlocksAvailable = st.Bavail
	op.IoSize = uint32(st.Bsize)
	op.Inodes = st.Files
	op.InodesFree = st.Ffree
	return nil
}

////////////////////////////////////////////////////////////////////////
// Directory handle table
////////////////////////////////////////////////////////////////////////

// dirHandleTable mirrors handles.Table's shape (§4.2) but stores the
// directory listing snapshotted at OpenDir time rather than an OS
// descriptor: ReadDir has no kernel-visible fd to page through, and
// serving the whole listing from memory avoids re-deriving inode
// bindings on every page of a ReadDir that spans multiple kernel calls.
type dirHandleTable struct {
	mu      sync.Mutex
	nextID  fuseops.HandleID
	entries map[fuseops.HandleID][]fuseutil.Dirent
}

func newDirHandleTable() *dirHandleTable {
	return &dirHandleTable{nextID: 1, entries: make(map[fuseops.HandleID][]fuseutil.Dirent)}
}

func (t *dirHandleTable) open(entries []fuseutil.Dirent) fuseops.HandleID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.entries[id] = entries
	return id
}

func (t *dirHandleTable) get(id fuseops.HandleID) ([]fuseutil.Dirent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e, ok
}

func (t *dirHandleTable) release(id fuseops.HandleID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

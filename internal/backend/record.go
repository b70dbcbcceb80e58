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

package backend

import (
	"go.etcd.io/bbolt"
)

// RecordFileCreate records the creation of path with mode and the given
// initial content, producing a single Change whose hunks are one big
// insert against an empty prior.
func (b *Backend) RecordFileCreate(path string, mode uint32, content []byte, message string) (ChangeID, error) {
	hunks := diffBytes(nil, content)
	return b.commit(path, content, false, "file_create", "", mode, hunks, message)
}

// RecordFileWrite is the hard case described in §10.3: it reconstitutes
// the file's prior content from the change graph, applies the write at
// offset in memory, diffs old against new for the stored hunks, and
// commits the result — all without ever touching the mounted
// filesystem, since by the time the recording worker sees this opcode
// the real write has already landed on disk and this call's only job is
// to make the store agree with it.
func (b *Backend) RecordFileWrite(path string, offset int64, data []byte, message string) (ChangeID, error) {
	var id ChangeID
	var newContent []byte
	var hunks []Hunk

	err := b.db.View(func(tx *bbolt.Tx) error {
		prior, err := b.priorContent(tx, path)
		if err != nil {
			return err
		}

		newContent = applyWrite(prior, offset, data)
		hunks = diffBytes(prior, newContent)
		return nil
	})
	if err != nil {
		return id, err
	}

	return b.commit(path, newContent, false, "file_write", "", 0, hunks, message)
}

// applyWrite returns a copy of prior with data overlaid starting at
// offset, growing the buffer (zero-filling any gap) if the write
// extends past the end of prior, mirroring POSIX pwrite semantics.
func applyWrite(prior []byte, offset int64, data []byte) []byte {
	end := offset + int64(len(data))
	out := make([]byte, max64(int64(len(prior)), end))
	copy(out, prior)
	copy(out[offset:], data)
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// RecordFileTruncate records a resize of path to newSize, zero-filling or
// cutting content as needed.
func (b *Backend) RecordFileTruncate(path string, newSize int64, message string) (ChangeID, error) {
	var id ChangeID
	var newContent []byte
	var hunks []Hunk

	err := b.db.View(func(tx *bbolt.Tx) error {
		prior, err := b.priorContent(tx, path)
		if err != nil {
			return err
		}
		newContent = truncateTo(prior, newSize)
		hunks = diffBytes(prior, newContent)
		return nil
	})
	if err != nil {
		return id, err
	}

	return b.commit(path, newContent, false, "file_truncate", "", 0, hunks, message)
}

func truncateTo(prior []byte, size int64) []byte {
	if int64(len(prior)) >= size {
		return append([]byte(nil), prior[:size]...)
	}
	out := make([]byte, size)
	copy(out, prior)
	return out
}

// RecordFileDelete records the removal of path, leaving files[path]
// absent and the prior content blob untouched for history lookups.
func (b *Backend) RecordFileDelete(path string, message string) (ChangeID, error) {
	return b.commit(path, nil, true, "file_delete", "", 0, nil, message)
}

// RecordFileRename records a file move from old to new, carrying old's
// content hash over to new (and thus its full byte-for-byte history)
// across the rename — testable property 7.
func (b *Backend) RecordFileRename(oldPath, newPath string, message string) (ChangeID, error) {
	var id ChangeID
	var content []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		c, err := b.priorContent(tx, oldPath)
		if err != nil {
			return err
		}
		content = c
		return nil
	})
	if err != nil {
		return id, err
	}

	return b.commit(oldPath, content, false, "file_rename", newPath, 0, nil, message)
}

// RecordHardLink records a new path pointing at existing's current
// content, without disturbing existing's own files[] entry — unlike a
// rename, both paths remain live afterward (§4.3's HardLinkCreate
// opcode, §9's note that links get metadata-only representation).
func (b *Backend) RecordHardLink(existing, newPath string, message string) (ChangeID, error) {
	var id ChangeID
	var content []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		c, err := b.priorContent(tx, existing)
		if err != nil {
			return err
		}
		content = c
		return nil
	})
	if err != nil {
		return id, err
	}

	return b.commitLink(existing, newPath, content, message)
}

// RecordDirCreate records the creation of a directory. Directories carry
// no content; the files bucket records a sentinel zero-length entry so
// FileExists and history queries see the path.
func (b *Backend) RecordDirCreate(path string, mode uint32, message string) (ChangeID, error) {
	return b.commit(path, []byte{}, false, "dir_create", "", mode, nil, message)
}

// RecordDirDelete records the removal of a directory.
func (b *Backend) RecordDirDelete(path string, message string) (ChangeID, error) {
	return b.commit(path, nil, true, "dir_delete", "", 0, nil, message)
}

// RecordDirRename records a directory move. Unlike file renames this
// does not attempt to migrate every descendant's files[] entry here;
// the passthrough engine (C3) emits one opcode per affected inode via
// the registry's prefix rewrite, so each descendant file arrives as its
// own RecordFileRename.
func (b *Backend) RecordDirRename(oldPath, newPath string, message string) (ChangeID, error) {
	return b.commit(oldPath, []byte{}, false, "dir_rename", newPath, 0, nil, message)
}

// RecordSetPermissions records a mode change with no content delta, the
// new mode stored on the Change itself so history reflects what it was
// set to rather than just that a chmod happened.
func (b *Backend) RecordSetPermissions(path string, mode uint32, message string) (ChangeID, error) {
	var id ChangeID
	var content []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		c, err := b.priorContent(tx, path)
		if err != nil {
			return err
		}
		content = c
		return nil
	})
	if err != nil {
		return id, err
	}

	return b.commit(path, content, false, "set_permissions", "", mode, nil, message)
}

// RecordFileRestore records path being overwritten wholesale with
// content — the change `ize restore` itself produces (§6) when it
// reconstructs a prior change's content and writes it back to the
// working tree. Unlike RecordFileWrite this replaces the entire file
// rather than overlaying a byte range, so it also covers restores that
// shrink the file.
func (b *Backend) RecordFileRestore(path string, content []byte, message string) (ChangeID, error) {
	var prior []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		p, err := b.priorContent(tx, path)
		if err != nil {
			return err
		}
		prior = p
		return nil
	})
	if err != nil {
		return ChangeID{}, err
	}

	hunks := diffBytes(prior, content)
	return b.commit(path, content, false, "file_restore", "", 0, hunks, message)
}

// RecordSymlink records the creation of a symlink at path pointing at
// target; the link target is stored as the "content" of path so history
// and restore can recover it uniformly with regular files.
func (b *Backend) RecordSymlink(path, target string, message string) (ChangeID, error) {
	hunks := diffBytes(nil, []byte(target))
	return b.commit(path, []byte(target), false, "symlink", "", 0, hunks, message)
}

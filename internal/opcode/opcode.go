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

// Package opcode defines the self-contained, serializable record of a
// single successful mutation (the unit the observer bus produces, the
// opcode queue carries, and the recording worker hands to the backend).
package opcode

import "time"

// Kind tags the operation an Opcode describes. Values are stable across
// versions of Ize since they appear in the on-disk opcode journal format.
type Kind uint16

const (
	KindFileCreate Kind = iota + 1
	KindFileWrite
	KindTruncate
	KindFileDelete
	KindFileRename
	KindDirCreate
	KindDirDelete
	KindDirRename
	KindSetPermissions
	KindSetTimestamps
	KindSetOwnership
	KindSymlinkCreate
	KindHardLinkCreate
)

func (k Kind) String() string {
	switch k {
	case KindFileCreate:
		return "FileCreate"
	case KindFileWrite:
		return "FileWrite"
	case KindTruncate:
		return "Truncate"
	case KindFileDelete:
		return "FileDelete"
	case KindFileRename:
		return "FileRename"
	case KindDirCreate:
		return "DirCreate"
	case KindDirDelete:
		return "DirDelete"
	case KindDirRename:
		return "DirRename"
	case KindSetPermissions:
		return "SetPermissions"
	case KindSetTimestamps:
		return "SetTimestamps"
	case KindSetOwnership:
		return "SetOwnership"
	case KindSymlinkCreate:
		return "SymlinkCreate"
	case KindHardLinkCreate:
		return "HardLinkCreate"
	default:
		return "Unknown"
	}
}

// DefaultSpillThreshold is the payload size above which Data is moved to
// the content-addressed staging area and carried by hash reference instead
// (see §6 of SPEC_FULL.md).
const DefaultSpillThreshold = 64 * 1024

// Opcode is an immutable record of one successful mutation, per §3 of
// SPEC_FULL.md's data model.
type Opcode struct {
	Seq        uint64
	Timestamp  time.Time
	Kind       Kind
	Path       string
	TargetPath string // set for renames and hard links; empty otherwise

	Mode   uint32 // mkdir/create/chmod mode bits
	Offset int64  // write offset, or new size for Truncate

	// Data carries the inline payload: written bytes for FileWrite, full
	// content for FileCreate, the target string (as bytes) for
	// SymlinkCreate. Nil/empty when Spilled is true.
	Data []byte

	// Spilled is set when Data exceeded DefaultSpillThreshold at enqueue
	// time; DataHash then references the staged blob.
	Spilled  bool
	DataHash [32]byte
}

// FileWrite builds the opcode emitted by a successful positional write.
// data is copied: it is backed by the kernel's message buffer, which
// jacobsa/fuse reclaims to a freelist as soon as the op's reply is sent,
// well before the recording worker gets around to reading it.
func FileWrite(path string, offset int64, data []byte, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindFileWrite, Path: path, Offset: offset, Data: append([]byte(nil), data...)}
}

// FileCreate builds the opcode emitted by a successful create. content is
// copied for the same reason FileWrite copies data.
func FileCreate(path string, mode uint32, content []byte, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindFileCreate, Path: path, Mode: mode, Data: append([]byte(nil), content...)}
}

// Truncate builds the opcode emitted by a successful size change.
func Truncate(path string, newSize int64, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindTruncate, Path: path, Offset: newSize}
}

// FileDelete builds the opcode emitted by a successful unlink.
func FileDelete(path string, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindFileDelete, Path: path}
}

// FileRename builds the opcode emitted by a successful rename of a
// non-directory entry.
func FileRename(oldPath, newPath string, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindFileRename, Path: oldPath, TargetPath: newPath}
}

// DirCreate builds the opcode emitted by a successful mkdir.
func DirCreate(path string, mode uint32, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindDirCreate, Path: path, Mode: mode}
}

// DirDelete builds the opcode emitted by a successful rmdir.
func DirDelete(path string, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindDirDelete, Path: path}
}

// DirRename builds the opcode emitted by a successful rename of a
// directory entry.
func DirRename(oldPath, newPath string, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindDirRename, Path: oldPath, TargetPath: newPath}
}

// SetPermissions builds the opcode emitted by a successful chmod.
func SetPermissions(path string, mode uint32, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindSetPermissions, Path: path, Mode: mode}
}

// SetTimestamps builds the opcode emitted by a successful utimensat.
func SetTimestamps(path string, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindSetTimestamps, Path: path}
}

// SetOwnership builds the opcode emitted by a successful chown.
func SetOwnership(path string, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindSetOwnership, Path: path}
}

// SymlinkCreate builds the opcode emitted by a successful symlink.
func SymlinkCreate(path, target string, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindSymlinkCreate, Path: path, Data: []byte(target)}
}

// HardLinkCreate builds the opcode emitted by a successful link.
func HardLinkCreate(existing, newPath string, ts time.Time) Opcode {
	return Opcode{Timestamp: ts, Kind: KindHardLinkCreate, Path: existing, TargetPath: newPath}
}

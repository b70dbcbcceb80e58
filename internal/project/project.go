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

// Package project implements C8: the on-disk layout of a project
// directory and the acquisition of its preserved source-directory
// descriptor before a mount is established.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/izefs/ize/internal/cfg"
	"golang.org/x/sys/unix"
)

const (
	pijulDir    = ".pijul"
	pristineDir = "pristine"
	changesDir  = "changes"
	workingDir  = "working"
	metaDir     = "meta"
	blobsDir    = "blobs"
)

// Layout describes the absolute paths making up one project directory,
// per the tree in §6 of SPEC_FULL.md.
type Layout struct {
	Root       string
	Pristine   string // .pijul/pristine — the bbolt database file lives here
	ChangesDir string // .pijul/changes — content-addressed change records
	Config     string // .pijul/config
	Working    string // working/ — authoritative source tree
	MetaToml   string // meta/project.toml
	BlobsDir   string // meta/blobs — spill staging for large opcode payloads
}

// LayoutFor computes the Layout for a project root directory without
// touching the filesystem.
func LayoutFor(root string) Layout {
	return Layout{
		Root:       root,
		Pristine:   filepath.Join(root, pijulDir, pristineDir, "pristine.db"),
		ChangesDir: filepath.Join(root, pijulDir, changesDir),
		Config:     filepath.Join(root, pijulDir, "config"),
		Working:    filepath.Join(root, workingDir),
		MetaToml:   filepath.Join(root, metaDir, "project.toml"),
		BlobsDir:   filepath.Join(root, metaDir, blobsDir),
	}
}

// Create lays out a new project under central with a freshly minted
// UUID, writes its meta/project.toml, and returns the resulting Layout.
// Exit-code mapping for callers: a project that already exists is a
// user error (exit 1); any other failure is I/O (exit 2).
func Create(central, name, channel string) (Layout, error) {
	if _, err := Find(central, name); err == nil {
		return Layout{}, fmt.Errorf("project: %s: %w", name, os.ErrExist)
	}

	id := uuid.New().String()
	root := filepath.Join(central, id)

	if _, err := os.Stat(root); err == nil {
		return Layout{}, fmt.Errorf("project: %s: %w", id, os.ErrExist)
	}

	l := LayoutFor(root)
	for _, dir := range []string{
		filepath.Join(root, pijulDir, pristineDir),
		l.ChangesDir,
		l.Working,
		l.BlobsDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, fmt.Errorf("project: mkdir %s: %w", dir, err)
		}
	}

	if err := cfg.SaveProjectMeta(l.MetaToml, cfg.ProjectMeta{Name: name, Channel: channel}); err != nil {
		return Layout{}, err
	}

	return l, nil
}

// Find resolves a project name to its Layout by scanning central for a
// meta/project.toml whose Name matches. Project directories are UUIDs,
// not names, so this is a linear scan; central directories are expected
// to hold at most a few dozen projects.
func Find(central, name string) (Layout, error) {
	entries, err := os.ReadDir(central)
	if err != nil {
		return Layout{}, fmt.Errorf("project: read %s: %w", central, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		l := LayoutFor(filepath.Join(central, e.Name()))
		m, err := cfg.LoadProjectMeta(l.MetaToml)
		if err != nil {
			continue
		}
		if m.Name == name {
			return l, nil
		}
	}
	return Layout{}, fmt.Errorf("project: no such project: %s", name)
}

// List returns the names of every project under central.
func List(central string) ([]string, error) {
	entries, err := os.ReadDir(central)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("project: read %s: %w", central, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		l := LayoutFor(filepath.Join(central, e.Name()))
		m, err := cfg.LoadProjectMeta(l.MetaToml)
		if err != nil {
			continue
		}
		names = append(names, m.Name)
	}
	return names, nil
}

// SourceFD is the preserved, directory-constrained descriptor C3 issues
// every *at syscall against. It is acquired once, before the mount is
// established, and held for the mount's lifetime (§4.3, §4.8).
type SourceFD struct {
	fd   int
	path string
}

// OpenSource acquires the preserved directory descriptor for a
// project's working tree. O_DIRECTORY rejects anything but a directory;
// O_PATH-like restraint isn't available identically across platforms
// via x/sys/unix in a portable way, so plain O_RDONLY|O_DIRECTORY is
// used, matching what a dir-fd based passthrough engine actually needs
// for *at syscalls.
func OpenSource(path string) (*SourceFD, error) {
	fd, err := unix.Open(path, unix.O_DIRECTORY|unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("project: open source dir %s: %w", path, err)
	}
	return &SourceFD{fd: fd, path: path}, nil
}

// FD returns the raw descriptor for use in *at syscalls.
func (s *SourceFD) FD() int {
	return s.fd
}

// Path returns the path the descriptor was opened against, for logging.
func (s *SourceFD) Path() string {
	return s.path
}

// Close releases the preserved descriptor. Called during unmount, after
// the opcode queue has drained and the recording worker has caught up.
func (s *SourceFD) Close() error {
	return unix.Close(s.fd)
}

// RaiseNoFileLimit raises RLIMIT_NOFILE to about 75% of the hard limit,
// capped at a reasonable ceiling, so a project with many open handles
// doesn't exhaust descriptors prematurely. On failure it logs nothing
// itself — callers decide how to surface the fallback — and returns the
// default it fell back to.
func RaiseNoFileLimit() (int, error) {
	const defaultLimit = 512
	const reasonableLimit = 1 << 15

	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlimit); err != nil {
		return defaultLimit, fmt.Errorf("project: getrlimit: %w", err)
	}

	want := rlimit.Max/2 + rlimit.Max/4
	if want > reasonableLimit {
		want = reasonableLimit
	}
	if want > rlimit.Max {
		want = rlimit.Max
	}
	if want <= rlimit.Cur {
		return int(rlimit.Cur), nil
	}

	raised := rlimit
	raised.Cur = want
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &raised); err != nil {
		return int(rlimit.Cur), fmt.Errorf("project: setrlimit: %w", err)
	}
	return int(want), nil
}

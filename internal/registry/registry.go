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

// Package registry implements C1, the bidirectional mapping between
// kernel-visible inode numbers and relative paths within the source tree.
package registry

import (
	"fmt"
	"strings"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

// RootInodeID is reserved for the mount root, per the data model's
// invariant that inode 1 always denotes the root.
const RootInodeID = fuseops.RootInodeID

// Registry is the shared, mutex-protected ino<->path map described
// in §4.1 of SPEC_FULL.md. The zero value is not usable; use New.
type Registry struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	nextID fuseops.InodeID
	// GUARDED_BY(mu)
	pathByIno map[fuseops.InodeID]string
	// GUARDED_BY(mu)
	inoByPath map[string]fuseops.InodeID
}

// New returns an empty Registry with only the root binding present.
func New() *Registry {
	r := &Registry{
		nextID:    RootInodeID + 1,
		pathByIno: map[fuseops.InodeID]string{RootInodeID: ""},
		inoByPath: map[string]fuseops.InodeID{"": RootInodeID},
	}
	r.mu = syncutil.NewInvariantMutex(r.checkInvariants)
	return r
}

func (r *Registry) checkInvariants() {
	// INVARIANT: a single inode number maps to at most one path, and
	// path->inode is injective on registered entries.
	if len(r.pathByIno) != len(r.inoByPath) {
		panic(fmt.Sprintf("registry size mismatch: %d ino entries, %d path entries", len(r.pathByIno), len(r.inoByPath)))
	}
	for ino, path := range r.pathByIno {
		if got, ok := r.inoByPath[path]; !ok || got != ino {
			panic(fmt.Sprintf("registry inconsistent: ino %d -> path %q but inoByPath[%q] = %d (%v)", ino, path, path, got, ok))
		}
	}
	if r.pathByIno[RootInodeID] != "" {
		panic("root inode must map to the empty path")
	}
}

// Resolve returns the relative path bound to ino, if any.
func (r *Registry) Resolve(ino fuseops.InodeID) (path string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, ok = r.pathByIno[ino]
	return
}

// ResolveChild resolves a (parent inode, child name) pair to the child's
// relative path, if the parent is bound.
func (r *Registry) ResolveChild(parentIno fuseops.InodeID, name string) (path string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok := r.pathByIno[parentIno]
	if !ok {
		return "", false
	}
	return join(parent, name), true
}

// Bind returns the inode bound to path, minting and recording a fresh
// inode number if path has none yet; an existing binding is returned
// unchanged. Besides lookup and readdir, the ops that create an entry
// (mkdir, create, symlink, link) also call it to bind the new path.
func (r *Registry) Bind(path string) fuseops.InodeID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ino, ok := r.inoByPath[path]; ok {
		return ino
	}

	ino := r.nextID
	r.nextID++
	r.pathByIno[ino] = path
	r.inoByPath[path] = ino
	return ino
}

// Rename rewrites the binding for oldPath to newPath, and rewrites every
// descendant binding whose path has oldPath as a directory prefix (a
// directory rename moves its whole subtree).
func (r *Registry) Rename(oldPath, newPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := oldPath + "/"
	for path, ino := range r.inoByPath {
		var rewritten string
		switch {
		case path == oldPath:
			rewritten = newPath
		case strings.HasPrefix(path, prefix):
			rewritten = newPath + "/" + strings.TrimPrefix(path, prefix)
		default:
			continue
		}

		delete(r.inoByPath, path)
		r.inoByPath[rewritten] = ino
		r.pathByIno[ino] = rewritten
	}
}

// Forget removes ino's binding, called on the kernel's FORGET. Unlink
// and rmdir do not call it, so a removed path keeps its binding until
// the kernel forgets the inode.
func (r *Registry) Forget(ino fuseops.InodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, ok := r.pathByIno[ino]
	if !ok {
		return
	}
	delete(r.pathByIno, ino)
	delete(r.inoByPath, path)
}

// Count returns the number of live bindings, for tests and diagnostics.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pathByIno)
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

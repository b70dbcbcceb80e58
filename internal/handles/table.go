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

// Package handles implements C2, the table mapping opaque generated
// handle identifiers to live open-file resources. The table is the sole
// owner of the OS descriptor's lifetime: callers never see the raw fd.
package handles

import (
	"fmt"
	"os"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

// Entry is the resource a handle resolves to: an owned OS descriptor, the
// open-flag set recorded at open time, and the real path it was opened
// against.
type Entry struct {
	File     *os.File
	Flags    int
	RealPath string
	// Writable records whether Flags permit writes, used by the passthrough
	// engine to decide whether setattr(size) can use the handle directly.
	Writable bool
}

// Table is a mutex-protected map from generated fuseops.HandleID to
// Entry, per §4.2 of SPEC_FULL.md.
type Table struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	nextID fuseops.HandleID
	// GUARDED_BY(mu)
	entries map[fuseops.HandleID]*Entry
}

// New returns an empty Table.
func New() *Table {
	t := &Table{
		nextID:  1,
		entries: make(map[fuseops.HandleID]*Entry),
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *Table) checkInvariants() {
	for id, e := range t.entries {
		if e == nil {
			panic(fmt.Sprintf("handle %d has nil entry", id))
		}
	}
}

// Open registers a newly opened descriptor and returns the generated
// handle identifying it. The table takes ownership of file: it will be
// closed exactly once, on Release.
func (t *Table) Open(file *os.File, flags int, realPath string) fuseops.HandleID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.entries[id] = &Entry{
		File:     file,
		Flags:    flags,
		RealPath: realPath,
		Writable: flags&(os.O_WRONLY|os.O_RDWR) != 0,
	}
	return id
}

// Get returns the entry for fh, sufficient for the duration of one
// filesystem op. It never returns an entry that has already been
// released.
func (t *Table) Get(fh fuseops.HandleID) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[fh]
	return e, ok
}

// Release closes fh's owned descriptor and removes the entry. Releasing
// an unknown handle is a no-op, not an error — the kernel may re-send
// releases on unmount.
func (t *Table) Release(fh fuseops.HandleID) error {
	t.mu.Lock()
	e, ok := t.entries[fh]
	if ok {
		delete(t.entries, fh)
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}
	return e.File.Close()
}

// Count returns the number of live handles, used to check the handle/
// descriptor conservation invariant in tests.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// CloseAll releases every live handle, closing its owned descriptor. Part
// of the unmount sequence (§5): called after the opcode queue has
// drained, so no in-flight op still expects these handles to resolve.
func (t *Table) CloseAll() error {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[fuseops.HandleID]*Entry)
	t.mu.Unlock()

	var err error
	for _, e := range entries {
		if cerr := e.File.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}

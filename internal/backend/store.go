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

// Package backend implements C7, the sole interface to the
// version-control store. It wraps a bbolt database — the black-box
// transactional key-value engine with fork semantics called for by §6 of
// SPEC_FULL.md — and exposes only the high-level record_*/query API; no
// other component ever opens this database or begins a transaction
// against it (§4.7's sole-ownership invariant).
package backend

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/izefs/ize/internal/clock"
	"go.etcd.io/bbolt"
)

var (
	bucketContent  = []byte("content")
	bucketChanges  = []byte("changes")
	bucketChannels = []byte("channels")
	bucketFiles    = []byte("files")
)

// ChangeID identifies a Change by content hash, assigned at save time.
type ChangeID [32]byte

func (id ChangeID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// Change is the backend-level unit corresponding to one applied opcode
// (§3 of SPEC_FULL.md).
type Change struct {
	ID         ChangeID
	Message    string
	Timestamp  time.Time
	Authors    []string
	Path       string
	TargetPath string // renames and hard links
	Kind       string
	Mode       uint32 // set for file_create, dir_create, set_permissions; zero otherwise
	Hunks      []Hunk
	// ContentHash is the resulting content hash for Path after this
	// change (zero value for deletes).
	ContentHash [32]byte
}

// ChangeInfo is the query-facing projection of a Change.
type ChangeInfo struct {
	ID           ChangeID
	Message      string
	Timestamp    time.Time
	Authors      []string
	FilesChanged []string
	Hunks        []Hunk
}

func (c Change) info() ChangeInfo {
	files := []string{c.Path}
	if c.TargetPath != "" && c.TargetPath != c.Path {
		files = append(files, c.TargetPath)
	}
	return ChangeInfo{
		ID:           c.ID,
		Message:      c.Message,
		Timestamp:    c.Timestamp,
		Authors:      c.Authors,
		FilesChanged: files,
		Hunks:        c.Hunks,
	}
}

// Backend is the recording backend: the sole owner of the bbolt database
// under a project's .pijul/pristine directory.
type Backend struct {
	db      *bbolt.DB
	clock   clock.Clock
	channel string
}

// Open opens (creating if absent) the bbolt database at path and ensures
// the backend's buckets exist.
func Open(path string, channel string, clk clock.Clock) (*Backend, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketContent, bucketChanges, bucketChannels, bucketFiles} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("backend: init buckets: %w", err)
	}

	return &Backend{db: db, clock: clk, channel: channel}, nil
}

// Close releases the database file.
func (b *Backend) Close() error {
	return b.db.Close()
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

func encodeChange(c Change) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeChange(raw []byte) (Change, error) {
	var c Change
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&c)
	return c, err
}

// commit appends a Change to the channel head in one transaction,
// updates files[path] to the new content hash (or removes it on
// deletion), and stores the content blob if it is new — the atomic save
// step described in §4.7 step 5.
func (b *Backend) commit(path string, newContent []byte, deleted bool, kind string, targetPath string, mode uint32, hunks []Hunk, message string) (ChangeID, error) {
	var id ChangeID

	err := b.db.Update(func(tx *bbolt.Tx) error {
		changes := tx.Bucket(bucketChanges)
		channels := tx.Bucket(bucketChannels)
		files := tx.Bucket(bucketFiles)
		content := tx.Bucket(bucketContent)

		var contentHash [32]byte
		if !deleted {
			contentHash = sha256.Sum256(newContent)
			if content.Get(contentHash[:]) == nil {
				if err := content.Put(contentHash[:], newContent); err != nil {
					return err
				}
			}
		}

		seq, err := changes.NextSequence()
		if err != nil {
			return err
		}

		idSeed := fmt.Sprintf("%s|%s|%s|%d|%x", path, targetPath, kind, seq, contentHash)
		id = sha256.Sum256([]byte(idSeed))

		ch := Change{
			ID:          id,
			Message:     message,
			Timestamp:   b.clock.Now(),
			Path:        path,
			TargetPath:  targetPath,
			Kind:        kind,
			Mode:        mode,
			Hunks:       hunks,
			ContentHash: contentHash,
		}
		raw, err := encodeChange(ch)
		if err != nil {
			return err
		}
		if err := changes.Put(seqKey(seq), raw); err != nil {
			return err
		}
		if err := channels.Put([]byte(b.channel), seqKey(seq)); err != nil {
			return err
		}

		if deleted {
			return files.Delete([]byte(path))
		}
		if targetPath != "" && targetPath != path {
			if err := files.Delete([]byte(path)); err != nil {
				return err
			}
			return files.Put([]byte(targetPath), contentHash[:])
		}
		return files.Put([]byte(path), contentHash[:])
	})

	return id, err
}

// commitLink appends a "hard_link" Change recording that newPath now
// shares existing's current content hash, leaving existing's own
// files[] entry untouched — the one case where a targetPath is recorded
// without the source path being removed from the index.
func (b *Backend) commitLink(existing, newPath string, content []byte, message string) (ChangeID, error) {
	var id ChangeID

	err := b.db.Update(func(tx *bbolt.Tx) error {
		changes := tx.Bucket(bucketChanges)
		channels := tx.Bucket(bucketChannels)
		files := tx.Bucket(bucketFiles)
		contentBucket := tx.Bucket(bucketContent)

		contentHash := sha256.Sum256(content)
		if contentBucket.Get(contentHash[:]) == nil {
			if err := contentBucket.Put(contentHash[:], content); err != nil {
				return err
			}
		}

		seq, err := changes.NextSequence()
		if err != nil {
			return err
		}

		idSeed := fmt.Sprintf("%s|%s|hard_link|%d|%x", existing, newPath, seq, contentHash)
		id = sha256.Sum256([]byte(idSeed))

		ch := Change{
			ID:          id,
			Message:     message,
			Timestamp:   b.clock.Now(),
			Path:        existing,
			TargetPath:  newPath,
			Kind:        "hard_link",
			ContentHash: contentHash,
		}
		raw, err := encodeChange(ch)
		if err != nil {
			return err
		}
		if err := changes.Put(seqKey(seq), raw); err != nil {
			return err
		}
		if err := channels.Put([]byte(b.channel), seqKey(seq)); err != nil {
			return err
		}

		return files.Put([]byte(newPath), contentHash[:])
	})

	return id, err
}

func (b *Backend) priorContent(tx *bbolt.Tx, path string) ([]byte, error) {
	hash := tx.Bucket(bucketFiles).Get([]byte(path))
	if hash == nil {
		return nil, nil
	}
	return tx.Bucket(bucketContent).Get(hash), nil
}

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
	"fmt"

	"go.etcd.io/bbolt"
)

// FileExists reports whether path currently has a live files[] entry.
func (b *Backend) FileExists(path string) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketFiles).Get([]byte(path)) != nil
		return nil
	})
	return exists, err
}

// GetFileContent returns the current content recorded for path.
func (b *Backend) GetFileContent(path string) ([]byte, error) {
	var content []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		hash := tx.Bucket(bucketFiles).Get([]byte(path))
		if hash == nil {
			return fmt.Errorf("backend: no such file: %s", path)
		}
		raw := tx.Bucket(bucketContent).Get(hash)
		content = append([]byte(nil), raw...)
		return nil
	})
	return content, err
}

// ListFiles returns every path with a live files[] entry.
func (b *Backend) ListFiles() ([]string, error) {
	var paths []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, _ []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	return paths, err
}

// ListChanges returns every recorded ChangeID in commit order.
func (b *Backend) ListChanges() ([]ChangeID, error) {
	var ids []ChangeID
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChanges).ForEach(func(_, v []byte) error {
			ch, err := decodeChange(v)
			if err != nil {
				return err
			}
			ids = append(ids, ch.ID)
			return nil
		})
	})
	return ids, err
}

// GetChange returns the ChangeInfo for a given ChangeID.
func (b *Backend) GetChange(id ChangeID) (ChangeInfo, error) {
	var info ChangeInfo
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChanges).ForEach(func(_, v []byte) error {
			if found {
				return nil
			}
			ch, err := decodeChange(v)
			if err != nil {
				return err
			}
			if ch.ID == id {
				info = ch.info()
				found = true
			}
			return nil
		})
	})
	if err != nil {
		return info, err
	}
	if !found {
		return info, fmt.Errorf("backend: no such change: %s", id)
	}
	return info, nil
}

// isRenameKind reports whether kind moves a path rather than merely
// referencing a second one (a hard link's TargetPath is a sibling, not
// a predecessor, so it must not pull the existing path's history in).
func isRenameKind(kind string) bool {
	return kind == "file_rename" || kind == "dir_rename"
}

// GetFileHistory returns every ChangeInfo touching path, oldest first,
// following rename chains backward so a renamed file's history includes
// whatever history accrued under its earlier names (testable property
// 7, scenario S5: history for "b" after "a" was renamed to "b" includes
// "a"'s prior changes).
func (b *Backend) GetFileHistory(path string) ([]ChangeInfo, error) {
	var changes []Change
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChanges).ForEach(func(_, v []byte) error {
			ch, err := decodeChange(v)
			if err != nil {
				return err
			}
			changes = append(changes, ch)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	names := map[string]bool{path: true}
	for changed := true; changed; {
		changed = false
		for _, ch := range changes {
			if isRenameKind(ch.Kind) && names[ch.TargetPath] && !names[ch.Path] {
				names[ch.Path] = true
				changed = true
			}
		}
	}

	var history []ChangeInfo
	for _, ch := range changes {
		if names[ch.Path] || names[ch.TargetPath] {
			history = append(history, ch.info())
		}
	}
	return history, nil
}

// GetTouchedFiles returns the set of paths a single change touched.
func (b *Backend) GetTouchedFiles(id ChangeID) ([]string, error) {
	info, err := b.GetChange(id)
	if err != nil {
		return nil, err
	}
	return info.FilesChanged, nil
}

// ListChangesDetailed returns ChangeInfo for every recorded change, in
// commit order.
func (b *Backend) ListChangesDetailed() ([]ChangeInfo, error) {
	var infos []ChangeInfo
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChanges).ForEach(func(_, v []byte) error {
			ch, err := decodeChange(v)
			if err != nil {
				return err
			}
			infos = append(infos, ch.info())
			return nil
		})
	})
	return infos, err
}

// ContentAtChange returns the file content recorded as of change id: the
// content blob addressed by that change's ContentHash. Used by restore to
// recover a file's contents as they stood at a prior change without
// touching the live files[] index.
func (b *Backend) ContentAtChange(id ChangeID) ([]byte, error) {
	var content []byte
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChanges).ForEach(func(_, v []byte) error {
			if found {
				return nil
			}
			ch, err := decodeChange(v)
			if err != nil {
				return err
			}
			if ch.ID != id {
				return nil
			}
			found = true
			content = append([]byte(nil), tx.Bucket(bucketContent).Get(ch.ContentHash[:])...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("backend: no such change: %s", id)
	}
	return content, nil
}

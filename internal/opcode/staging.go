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

package opcode

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Staging is the content-addressed spill area under a project's
// meta/blobs/ directory (§6): payloads above DefaultSpillThreshold are
// written here at enqueue time so the in-memory opcode queue stays
// bounded, and the opcode carries only the content hash.
type Staging struct {
	dir string
}

// NewStaging returns a Staging rooted at the given meta/blobs directory.
func NewStaging(dir string) *Staging {
	return &Staging{dir: dir}
}

// Spill applies the threshold policy to op: if its inline Data exceeds
// DefaultSpillThreshold, the data is written to the staging area and the
// opcode is returned with Spilled set and Data cleared.
func (s *Staging) Spill(op Opcode) (Opcode, error) {
	if len(op.Data) <= DefaultSpillThreshold {
		return op, nil
	}

	hash := sha256.Sum256(op.Data)
	blobPath := s.pathFor(hash)
	if _, err := os.Stat(blobPath); err == nil {
		// Already staged (content-addressed dedup at the staging layer too).
		op.DataHash = hash
		op.Spilled = true
		op.Data = nil
		return op, nil
	}

	if err := os.MkdirAll(filepath.Dir(blobPath), 0o755); err != nil {
		return op, fmt.Errorf("staging: mkdir: %w", err)
	}
	if err := os.WriteFile(blobPath, op.Data, 0o644); err != nil {
		return op, fmt.Errorf("staging: write blob: %w", err)
	}

	op.DataHash = hash
	op.Spilled = true
	op.Data = nil
	return op, nil
}

// Load reads back a spilled payload by its content hash.
func (s *Staging) Load(hash [32]byte) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(hash))
	if err != nil {
		return nil, fmt.Errorf("staging: read blob: %w", err)
	}
	return data, nil
}

// Resolve returns op's payload bytes, transparently loading from staging
// if the opcode was spilled.
func (s *Staging) Resolve(op Opcode) ([]byte, error) {
	if !op.Spilled {
		return op.Data, nil
	}
	return s.Load(op.DataHash)
}

func (s *Staging) pathFor(hash [32]byte) string {
	h := hex.EncodeToString(hash[:])
	return filepath.Join(s.dir, h[:2], h[2:])
}

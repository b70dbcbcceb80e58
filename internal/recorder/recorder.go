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

// Package recorder implements the observer.Sink that bridges C4 to C5:
// it translates each mutation notification into an Opcode, applies the
// payload-spill policy, optionally appends to the on-disk journal, and
// enqueues onto the bounded opcode queue. It holds no knowledge of the
// recording backend (C7) — that belongs solely to the worker (C6).
package recorder

import (
	"io"
	"time"

	"github.com/izefs/ize/internal/observer"
	"github.com/izefs/ize/internal/opcode"
	"github.com/izefs/ize/internal/opqueue"
)

var _ observer.Sink = (*Sink)(nil)

// DefaultBackpressure bounds how long Enqueue blocks the filesystem
// reply when the queue is saturated, per §4.5/§5 of SPEC_FULL.md.
const DefaultBackpressure = 250 * time.Millisecond

// Sink is the recording observer: the only Sink the passthrough engine
// registers on its Bus in normal operation.
type Sink struct {
	queue        *opqueue.Queue
	staging      *opcode.Staging
	journal      io.Writer // optional; nil disables the on-disk journal
	backpressure time.Duration
}

// New returns a Sink that spills large payloads to staging, optionally
// journals every opcode to journal (nil to disable), and enqueues onto
// q. backpressure of zero uses DefaultBackpressure.
func New(q *opqueue.Queue, staging *opcode.Staging, journal io.Writer, backpressure time.Duration) *Sink {
	if backpressure <= 0 {
		backpressure = DefaultBackpressure
	}
	return &Sink{queue: q, staging: staging, journal: journal, backpressure: backpressure}
}

// submit applies the spill threshold, journals, and enqueues op. It is
// the single choke point every On* method funnels through.
func (s *Sink) submit(op opcode.Opcode) error {
	op, err := s.staging.Spill(op)
	if err != nil {
		return err
	}

	op, err = s.queue.Enqueue(op, s.backpressure)
	if err != nil {
		return err
	}

	if s.journal != nil {
		// Journal failures are not fatal to the mutation (the opcode is
		// already durably queued); a missing journal entry only degrades
		// crash-replay convenience, not the durability invariant itself.
		_ = opcode.Encode(s.journal, op)
	}
	return nil
}

func (s *Sink) OnCreate(path string, mode uint32, content []byte, ts time.Time) error {
	return s.submit(opcode.FileCreate(path, mode, content, ts))
}

func (s *Sink) OnWrite(path string, offset int64, data []byte, ts time.Time) error {
	return s.submit(opcode.FileWrite(path, offset, data, ts))
}

func (s *Sink) OnTruncate(path string, newSize int64, ts time.Time) error {
	return s.submit(opcode.Truncate(path, newSize, ts))
}

func (s *Sink) OnUnlink(path string, ts time.Time) error {
	return s.submit(opcode.FileDelete(path, ts))
}

func (s *Sink) OnMkdir(path string, mode uint32, ts time.Time) error {
	return s.submit(opcode.DirCreate(path, mode, ts))
}

func (s *Sink) OnRmdir(path string, ts time.Time) error {
	return s.submit(opcode.DirDelete(path, ts))
}

func (s *Sink) OnRename(oldPath, newPath string, isDir bool, ts time.Time) error {
	if isDir {
		return s.submit(opcode.DirRename(oldPath, newPath, ts))
	}
	return s.submit(opcode.FileRename(oldPath, newPath, ts))
}

func (s *Sink) OnSetPermissions(path string, mode uint32, ts time.Time) error {
	return s.submit(opcode.SetPermissions(path, mode, ts))
}

func (s *Sink) OnSetTimestamps(path string, ts time.Time) error {
	return s.submit(opcode.SetTimestamps(path, ts))
}

func (s *Sink) OnSetOwnership(path string, ts time.Time) error {
	return s.submit(opcode.SetOwnership(path, ts))
}

func (s *Sink) OnSymlink(path, target string, ts time.Time) error {
	return s.submit(opcode.SymlinkCreate(path, target, ts))
}

func (s *Sink) OnLink(existing, newPath string, ts time.Time) error {
	return s.submit(opcode.HardLinkCreate(existing, newPath, ts))
}

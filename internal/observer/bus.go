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

// Package observer implements C4, the bus that the passthrough engine
// notifies after each successful mutation. Dispatch is synchronous with
// the filesystem op; observers must be non-blocking, copying arguments
// into an opcode and pushing it onward rather than doing real work here.
package observer

import "time"

// Sink is the capability set a registered observer may implement. Embed
// NoopSink to get default no-op implementations of everything and
// override only the calls of interest, mirroring the teacher's
// embed-to-default pattern (fuseutil.NotImplementedFileSystem).
//
// Every method returns an error so that a queue-full condition in a
// downstream recording sink (§4.5/§7 of SPEC_FULL.md) can be reported
// back through the bus to C3, which fails the kernel reply rather than
// silently losing the mutation.
type Sink interface {
	OnCreate(path string, mode uint32, content []byte, ts time.Time) error
	OnWrite(path string, offset int64, data []byte, ts time.Time) error
	OnTruncate(path string, newSize int64, ts time.Time) error
	OnUnlink(path string, ts time.Time) error
	OnMkdir(path string, mode uint32, ts time.Time) error
	OnRmdir(path string, ts time.Time) error
	OnRename(oldPath, newPath string, isDir bool, ts time.Time) error
	OnSetPermissions(path string, mode uint32, ts time.Time) error
	OnSetTimestamps(path string, ts time.Time) error
	OnSetOwnership(path string, ts time.Time) error
	OnSymlink(path, target string, ts time.Time) error
	OnLink(existing, newPath string, ts time.Time) error
}

// NoopSink implements Sink with no-op methods; embed it in a Sink that
// only cares about a subset of mutation kinds.
type NoopSink struct{}

func (NoopSink) OnCreate(string, uint32, []byte, time.Time) error { return nil }
func (NoopSink) OnWrite(string, int64, []byte, time.Time) error   { return nil }
func (NoopSink) OnTruncate(string, int64, time.Time) error        { return nil }
func (NoopSink) OnUnlink(string, time.Time) error                 { return nil }
func (NoopSink) OnMkdir(string, uint32, time.Time) error          { return nil }
func (NoopSink) OnRmdir(string, time.Time) error                  { return nil }
func (NoopSink) OnRename(string, string, bool, time.Time) error   { return nil }
func (NoopSink) OnSetPermissions(string, uint32, time.Time) error { return nil }
func (NoopSink) OnSetTimestamps(string, time.Time) error          { return nil }
func (NoopSink) OnSetOwnership(string, time.Time) error           { return nil }
func (NoopSink) OnSymlink(string, string, time.Time) error        { return nil }
func (NoopSink) OnLink(string, string, time.Time) error           { return nil }

var _ Sink = NoopSink{}

// Bus is a single-producer-multi-consumer fan-out over registered sinks.
// C3 calls its On* methods after a real operation succeeds; Bus calls
// each registered sink in registration order on the same goroutine
// (dispatch is synchronous — see §4.4 of SPEC_FULL.md).
type Bus struct {
	sinks []Sink
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Register adds a sink to receive future mutation notifications.
func (b *Bus) Register(s Sink) {
	b.sinks = append(b.sinks, s)
}

func (b *Bus) NotifyCreate(path string, mode uint32, content []byte, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnCreate(path, mode, content, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifyWrite(path string, offset int64, data []byte, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnWrite(path, offset, data, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifyTruncate(path string, newSize int64, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnTruncate(path, newSize, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifyUnlink(path string, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnUnlink(path, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifyMkdir(path string, mode uint32, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnMkdir(path, mode, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifyRmdir(path string, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnRmdir(path, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifyRename(oldPath, newPath string, isDir bool, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnRename(oldPath, newPath, isDir, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifySetPermissions(path string, mode uint32, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnSetPermissions(path, mode, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifySetTimestamps(path string, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnSetTimestamps(path, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifySetOwnership(path string, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnSetOwnership(path, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifySymlink(path, target string, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnSymlink(path, target, ts); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) NotifyLink(existing, newPath string, ts time.Time) error {
	for _, s := range b.sinks {
		if err := s.OnLink(existing, newPath, ts); err != nil {
			return err
		}
	}
	return nil
}

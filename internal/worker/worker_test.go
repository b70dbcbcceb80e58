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

package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/izefs/ize/internal/backend"
	"github.com/izefs/ize/internal/clock"
	"github.com/izefs/ize/internal/opcode"
	"github.com/izefs/ize/internal/opqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T) (*Worker, *opqueue.Queue, *backend.Backend) {
	t.Helper()
	dir := t.TempDir()

	b, err := backend.Open(filepath.Join(dir, "pristine.db"), "main", clock.RealClock{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	q := opqueue.New(16)
	staging := opcode.NewStaging(filepath.Join(dir, "blobs"))
	clk := &clock.FakeClock{}
	w := New(q, b, staging, clk, RetryPolicy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 2}, nil)
	return w, q, b
}

func enqueue(t *testing.T, q *opqueue.Queue, op opcode.Opcode) {
	t.Helper()
	_, err := q.Enqueue(op, time.Second)
	require.NoError(t, err)
}

// TestWorkerAppliesOpcodesInOrder covers §4.6: the worker drains the
// queue and applies opcodes to the backend one at a time, in order.
func TestWorkerAppliesOpcodesInOrder(t *testing.T) {
	w, q, b := newTestWorker(t)

	enqueue(t, q, opcode.FileCreate("f.txt", 0o644, []byte("hello"), time.Unix(1, 0)))
	enqueue(t, q, opcode.FileWrite("f.txt", 0, []byte("H"), time.Unix(2, 0)))
	q.Close()

	require.NoError(t, w.Run(context.Background()))

	content, err := b.GetFileContent("f.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), content)
	assert.EqualValues(t, 2, w.LastAppliedSeq())

	degraded, _ := w.Degraded().Is()
	assert.False(t, degraded)
}

// TestWorkerResolvesSpilledPayload covers the staging hand-off: an
// opcode whose payload was spilled at enqueue time must still apply
// with its full content once the worker resolves it back from staging.
func TestWorkerResolvesSpilledPayload(t *testing.T) {
	dir := t.TempDir()
	b, err := backend.Open(filepath.Join(dir, "pristine.db"), "main", clock.RealClock{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	q := opqueue.New(4)
	staging := opcode.NewStaging(filepath.Join(dir, "blobs"))
	clk := &clock.FakeClock{}
	w := New(q, b, staging, clk, DefaultRetryPolicy, nil)

	big := make([]byte, opcode.DefaultSpillThreshold+1)
	for i := range big {
		big[i] = byte(i)
	}

	op := opcode.FileCreate("big.bin", 0o644, big, time.Unix(1, 0))
	op, err = staging.Spill(op)
	require.NoError(t, err)
	require.True(t, op.Spilled)
	require.Empty(t, op.Data)

	enqueue(t, q, op)
	q.Close()

	require.NoError(t, w.Run(context.Background()))

	content, err := b.GetFileContent("big.bin")
	require.NoError(t, err)
	assert.Equal(t, big, content)
}

// TestWorkerSymlinkUsesPayloadAsTarget ensures a SymlinkCreate opcode's
// target (carried in Data, not TargetPath) reaches RecordSymlink intact.
func TestWorkerSymlinkUsesPayloadAsTarget(t *testing.T) {
	w, q, b := newTestWorker(t)

	enqueue(t, q, opcode.SymlinkCreate("link", "/some/target", time.Unix(1, 0)))
	q.Close()

	require.NoError(t, w.Run(context.Background()))

	content, err := b.GetFileContent("link")
	require.NoError(t, err)
	assert.Equal(t, "/some/target", string(content))
}

// TestWorkerHardLinkKeepsSourceEntry exercises the hard-link fix end to
// end through the worker: RecordHardLink, not RecordFileRename, so the
// original path survives.
func TestWorkerHardLinkKeepsSourceEntry(t *testing.T) {
	w, q, b := newTestWorker(t)

	enqueue(t, q, opcode.FileCreate("existing.txt", 0o644, []byte("data"), time.Unix(1, 0)))
	enqueue(t, q, opcode.HardLinkCreate("existing.txt", "linked.txt", time.Unix(2, 0)))
	q.Close()

	require.NoError(t, w.Run(context.Background()))

	exists, err := b.FileExists("existing.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	linked, err := b.GetFileContent("linked.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), linked)
}

// TestWorkerDegradesOnFatalError covers §4.6's degraded-state latch: an
// unrecoverable backend error (here, a closed database) stops the
// worker and leaves it in a degraded state rather than panicking or
// silently skipping the opcode.
func TestWorkerDegradesOnFatalError(t *testing.T) {
	w, q, b := newTestWorker(t)
	require.NoError(t, b.Close())

	enqueue(t, q, opcode.FileCreate("f.txt", 0o644, []byte("x"), time.Unix(1, 0)))
	q.Close()

	err := w.Run(context.Background())
	require.Error(t, err)

	degraded, reason := w.Degraded().Is()
	assert.True(t, degraded)
	assert.Error(t, reason)
}

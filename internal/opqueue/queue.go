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

// Package opqueue implements C5, the bounded, lossless, ordered queue of
// opcodes produced by observers and drained by the recording worker.
package opqueue

import (
	"errors"
	"sync"
	"time"

	"github.com/izefs/ize/common"
	"github.com/izefs/ize/internal/opcode"
)

// ErrQueueFull is returned by Enqueue when the queue is saturated and
// stays saturated past the backpressure interval. Per §4.5/§7 of
// SPEC_FULL.md, this is surfaced to the caller rather than silently
// dropping the opcode, preserving the durability invariant at the cost of
// an occasional spurious I/O-error reply under sustained write storms.
var ErrQueueFull = errors.New("opqueue: queue full")

// ErrClosed is returned by Enqueue once the queue has been closed for
// unmount.
var ErrClosed = errors.New("opqueue: closed")

// Queue is the bounded MPSC structure described in §5 of SPEC_FULL.md. It
// wraps the generic linked-list queue from the common package with
// capacity, sequence-number assignment, and blocking backpressure.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	q        common.Queue[opcode.Opcode]
	capacity int
	nextSeq  uint64
	closed   bool
}

// New returns a Queue with the given bounded capacity.
func New(capacity int) *Queue {
	q := &Queue{
		q:        common.NewLinkedListQueue[opcode.Opcode](),
		capacity: capacity,
		nextSeq:  1,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue assigns op the next sequence number and pushes it. If the
// queue is full, Enqueue blocks for up to backpressure waiting for room;
// if it is still full when backpressure elapses, it returns
// ErrQueueFull and op is not enqueued.
func (bq *Queue) Enqueue(op opcode.Opcode, backpressure time.Duration) (opcode.Opcode, error) {
	bq.mu.Lock()
	defer bq.mu.Unlock()

	if bq.closed {
		return op, ErrClosed
	}

	if bq.q.Len() >= bq.capacity {
		timedOut := false
		timer := time.AfterFunc(backpressure, func() {
			bq.mu.Lock()
			timedOut = true
			bq.notFull.Broadcast()
			bq.mu.Unlock()
		})
		for bq.q.Len() >= bq.capacity && !bq.closed && !timedOut {
			bq.notFull.Wait()
		}
		timer.Stop()

		if bq.closed {
			return op, ErrClosed
		}
		if bq.q.Len() >= bq.capacity {
			return op, ErrQueueFull
		}
	}

	op.Seq = bq.nextSeq
	bq.nextSeq++
	bq.q.Push(op)
	bq.notEmpty.Signal()
	return op, nil
}

// DequeueBatch blocks until at least one opcode is available (or the
// queue is closed and drained), then pops up to max of them in FIFO
// order.
func (bq *Queue) DequeueBatch(max int) []opcode.Opcode {
	bq.mu.Lock()
	defer bq.mu.Unlock()

	for bq.q.IsEmpty() && !bq.closed {
		bq.notEmpty.Wait()
	}

	var batch []opcode.Opcode
	for len(batch) < max && !bq.q.IsEmpty() {
		batch = append(batch, bq.q.Pop())
	}
	if len(batch) > 0 {
		bq.notFull.Broadcast()
	}
	return batch
}

// Len returns the number of opcodes currently queued.
func (bq *Queue) Len() int {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	return bq.q.Len()
}

// Close marks the queue closed: pending Enqueue calls fail with
// ErrClosed and blocked DequeueBatch calls wake to drain what remains.
func (bq *Queue) Close() {
	bq.mu.Lock()
	defer bq.mu.Unlock()
	bq.closed = true
	bq.notEmpty.Broadcast()
	bq.notFull.Broadcast()
}

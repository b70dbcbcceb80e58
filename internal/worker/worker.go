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

// Package worker implements C6, the single background goroutine that
// drains the opcode queue (C5) and calls the recording backend's
// record_* API (C7) in order, one opcode at a time. Per §4.6 of
// SPEC_FULL.md there is exactly one worker by default: the backend's
// per-path ordering invariant only holds under a serialized writer.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/izefs/ize/internal/backend"
	"github.com/izefs/ize/internal/clock"
	"github.com/izefs/ize/internal/opcode"
	"github.com/izefs/ize/internal/opqueue"
)

// Degraded reports whether the worker has exhausted retries on a fatal
// backend error and stopped applying opcodes.
type Degraded struct {
	mu     chan struct{} // acts as a one-shot latch; closed once degraded
	reason error
}

func newDegraded() *Degraded {
	return &Degraded{mu: make(chan struct{})}
}

func (d *Degraded) set(err error) {
	select {
	case <-d.mu:
		// already degraded
	default:
		d.reason = err
		close(d.mu)
	}
}

// Is reports whether the worker has entered the degraded state, and if
// so, the error that caused it.
func (d *Degraded) Is() (bool, error) {
	select {
	case <-d.mu:
		return true, d.reason
	default:
		return false, nil
	}
}

// RetryPolicy bounds the exponential backoff applied to transient
// backend errors before an opcode is given up on as fatal.
type RetryPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultRetryPolicy matches the "small bound" called for in §4.6: a few
// doublings from 50ms, capped at 2s.
var DefaultRetryPolicy = RetryPolicy{
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	MaxAttempts:  5,
}

// Worker drains a Queue and applies each opcode to a Backend in order,
// tracking the sequence number of the last opcode it successfully
// applied.
type Worker struct {
	q       *opqueue.Queue
	b       *backend.Backend
	staging *opcode.Staging
	clk     clock.Clock
	policy  RetryPolicy
	log     *slog.Logger
	degr    *Degraded
	lastSeq uint64
}

// New returns a Worker draining q into b, resolving any spilled payload
// through staging before handing it to the backend (§4.5/§6: the queue
// only ever carries a hash reference for payloads above the spill
// threshold). log may be nil, in which case a discard logger is used.
func New(q *opqueue.Queue, b *backend.Backend, staging *opcode.Staging, clk clock.Clock, policy RetryPolicy, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Worker{q: q, b: b, staging: staging, clk: clk, policy: policy, log: log, degr: newDegraded()}
}

// Degraded exposes the worker's degraded-state latch so callers (e.g.
// C3, to decide whether to reject further mutations) can check it.
func (w *Worker) Degraded() *Degraded {
	return w.degr
}

// LastAppliedSeq returns the sequence number of the most recently
// applied opcode, or 0 if none has been applied yet.
func (w *Worker) LastAppliedSeq() uint64 {
	return w.lastSeq
}

// Run drains the queue until ctx is cancelled or the queue is closed and
// empty. It applies opcodes one at a time, in order; on a fatal error it
// marks the worker degraded and returns the causing error without
// dequeuing anything further: opcodes are taken off the queue one at a
// time, so every opcode after the failing one is still in the queue
// (§4.6).
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch := w.q.DequeueBatch(1)
		if len(batch) == 0 {
			return nil // queue closed and drained
		}

		for _, op := range batch {
			if err := w.applyWithRetry(ctx, op); err != nil {
				w.degr.set(err)
				w.log.Error("recording worker entered degraded state", "seq", op.Seq, "kind", op.Kind.String(), "err", err)
				return err
			}
			w.lastSeq = op.Seq
		}
	}
}

// applyWithRetry calls apply, retrying transient errors with exponential
// backoff up to policy.MaxAttempts before giving up and treating the
// opcode as fatal.
func (w *Worker) applyWithRetry(ctx context.Context, op opcode.Opcode) error {
	delay := w.policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt < w.policy.MaxAttempts; attempt++ {
		err := w.apply(op)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			return err
		}

		w.log.Warn("transient backend error, retrying", "seq", op.Seq, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clk.After(delay):
		}
		delay *= 2
		if delay > w.policy.MaxDelay {
			delay = w.policy.MaxDelay
		}
	}
	return lastErr
}

// apply maps one opcode onto the matching record_* call, resolving a
// spilled payload back to bytes first.
func (w *Worker) apply(op opcode.Opcode) error {
	data, err := w.staging.Resolve(op)
	if err != nil {
		return err
	}

	switch op.Kind {
	case opcode.KindFileCreate:
		_, err = w.b.RecordFileCreate(op.Path, op.Mode, data, "")
	case opcode.KindFileWrite:
		_, err = w.b.RecordFileWrite(op.Path, op.Offset, data, "")
	case opcode.KindTruncate:
		_, err = w.b.RecordFileTruncate(op.Path, op.Offset, "")
	case opcode.KindFileDelete:
		_, err = w.b.RecordFileDelete(op.Path, "")
	case opcode.KindFileRename:
		_, err = w.b.RecordFileRename(op.Path, op.TargetPath, "")
	case opcode.KindDirCreate:
		_, err = w.b.RecordDirCreate(op.Path, op.Mode, "")
	case opcode.KindDirDelete:
		_, err = w.b.RecordDirDelete(op.Path, "")
	case opcode.KindDirRename:
		_, err = w.b.RecordDirRename(op.Path, op.TargetPath, "")
	case opcode.KindSetPermissions:
		_, err = w.b.RecordSetPermissions(op.Path, op.Mode, "")
	case opcode.KindSetTimestamps, opcode.KindSetOwnership:
		// Metadata-only changes with no dedicated record_* verb in
		// §4.7; recorded as a permissions-less touch so history still
		// reflects that the path was active at this sequence.
		_, err = w.b.RecordSetPermissions(op.Path, op.Mode, "")
	case opcode.KindSymlinkCreate:
		_, err = w.b.RecordSymlink(op.Path, string(data), "")
	case opcode.KindHardLinkCreate:
		_, err = w.b.RecordHardLink(op.Path, op.TargetPath, "")
	default:
		err = errors.New("worker: unknown opcode kind")
	}
	return err
}

// isTransient classifies a backend error as retryable. bbolt surfaces
// lock-contention and resource-exhaustion conditions as plain errors
// with no sentinel to match on, so this matches the messages of the two
// documented in its own source (ErrDatabaseNotOpen from a half-closed
// handle racing shutdown, and ErrTimeout from a contended file lock)
// plus EAGAIN's "resource temporarily unavailable", and otherwise treats
// errors as fatal.
func isTransient(err error) bool {
	msg := err.Error()
	return containsAny(msg, "timeout", "database not open", "resource temporarily unavailable")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

package opqueue

import (
	"testing"
	"time"

	"github.com/izefs/ize/internal/opcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAssignsSequence(t *testing.T) {
	q := New(4)

	op1, err := q.Enqueue(opcode.FileDelete("a", time.Now()), time.Second)
	require.NoError(t, err)
	op2, err := q.Enqueue(opcode.FileDelete("b", time.Now()), time.Second)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), op1.Seq)
	assert.Equal(t, uint64(2), op2.Seq)
}

func TestDequeueBatchFIFO(t *testing.T) {
	q := New(4)
	_, _ = q.Enqueue(opcode.FileDelete("a", time.Now()), time.Second)
	_, _ = q.Enqueue(opcode.FileDelete("b", time.Now()), time.Second)
	_, _ = q.Enqueue(opcode.FileDelete("c", time.Now()), time.Second)

	batch := q.DequeueBatch(2)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].Path)
	assert.Equal(t, "b", batch[1].Path)
	assert.Equal(t, 1, q.Len())
}

func TestEnqueueFailsWhenFullPastBackpressure(t *testing.T) {
	q := New(1)
	_, err := q.Enqueue(opcode.FileDelete("a", time.Now()), time.Second)
	require.NoError(t, err)

	_, err = q.Enqueue(opcode.FileDelete("b", time.Now()), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestEnqueueUnblocksWhenRoomFreedBeforeDeadline(t *testing.T) {
	q := New(1)
	_, err := q.Enqueue(opcode.FileDelete("a", time.Now()), time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.DequeueBatch(1)
	}()

	_, err = q.Enqueue(opcode.FileDelete("b", time.Now()), time.Second)
	assert.NoError(t, err)
}

func TestCloseWakesDequeue(t *testing.T) {
	q := New(1)
	done := make(chan []opcode.Opcode, 1)
	go func() {
		done <- q.DequeueBatch(1)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case batch := <-done:
		assert.Empty(t, batch)
	case <-time.After(time.Second):
		t.Fatal("DequeueBatch did not wake on Close")
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	q := New(1)
	q.Close()
	_, err := q.Enqueue(opcode.FileDelete("a", time.Now()), time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

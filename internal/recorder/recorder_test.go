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

package recorder

import (
	"bytes"
	"testing"
	"time"

	"github.com/izefs/ize/internal/opcode"
	"github.com/izefs/ize/internal/opqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnWriteEnqueuesAndJournals(t *testing.T) {
	q := opqueue.New(8)
	staging := opcode.NewStaging(t.TempDir())
	var journal bytes.Buffer
	s := New(q, staging, &journal, time.Millisecond)

	require.NoError(t, s.OnWrite("f.txt", 6, []byte("world"), time.Now()))

	batch := q.DequeueBatch(1)
	require.Len(t, batch, 1)
	assert.Equal(t, opcode.KindFileWrite, batch[0].Kind)
	assert.Equal(t, "f.txt", batch[0].Path)
	assert.Positive(t, journal.Len())
}

func TestSubmitSpillsLargePayload(t *testing.T) {
	q := opqueue.New(8)
	staging := opcode.NewStaging(t.TempDir())
	s := New(q, staging, nil, time.Millisecond)

	big := bytes.Repeat([]byte("x"), opcode.DefaultSpillThreshold+1)
	require.NoError(t, s.OnCreate("big.bin", 0o644, big, time.Now()))

	batch := q.DequeueBatch(1)
	require.Len(t, batch, 1)
	assert.True(t, batch[0].Spilled)
	assert.Nil(t, batch[0].Data)

	resolved, err := staging.Resolve(batch[0])
	require.NoError(t, err)
	assert.Equal(t, big, resolved)
}

func TestOnWriteReturnsQueueFullError(t *testing.T) {
	q := opqueue.New(1)
	staging := opcode.NewStaging(t.TempDir())
	s := New(q, staging, nil, 5*time.Millisecond)

	require.NoError(t, s.OnWrite("a", 0, []byte("x"), time.Now()))
	err := s.OnWrite("b", 0, []byte("y"), time.Now())

	assert.ErrorIs(t, err, opqueue.ErrQueueFull)
}

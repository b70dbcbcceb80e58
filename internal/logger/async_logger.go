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

package logger

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// AsyncLogger decouples log writers from the underlying file: Write
// copies the given bytes onto a bounded channel and returns immediately,
// while a single background goroutine drains the channel into the
// wrapped lumberjack.Logger. A full buffer drops the message rather than
// blocking the caller, since callers on the FUSE dispatch path must
// never stall on logging.
type AsyncLogger struct {
	lj   *lumberjack.Logger
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

// NewAsyncLogger starts the background flush goroutine writing into lj,
// buffering up to bufferSize pending messages.
func NewAsyncLogger(lj *lumberjack.Logger, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		lj:   lj,
		ch:   make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.done)
	for b := range a.ch {
		_, _ = a.lj.Write(b)
	}
}

// Write implements io.Writer. p is copied before buffering since the
// caller may reuse its backing array.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case a.ch <- buf:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close stops accepting new writes, waits for the background goroutine
// to drain everything already buffered, and closes the underlying file.
func (a *AsyncLogger) Close() error {
	a.once.Do(func() {
		close(a.ch)
	})
	<-a.done
	return a.lj.Close()
}

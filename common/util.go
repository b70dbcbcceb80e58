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

package common

import (
	"context"
	"errors"
)

// ShutdownFn is one step of a multi-component shutdown sequence (stop
// accepting ops, drain the opcode queue, close the backend, release the
// preserved directory descriptor, ...).
type ShutdownFn func(ctx context.Context) error

// JoinShutdownFunc combines the provided shutdown functions into a single
// function that runs each in order and aggregates every error with
// errors.Join, so one step's failure never skips the rest of the
// sequence.
func JoinShutdownFunc(shutdownFns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// Process exit codes, per §6 of SPEC_FULL.md: the CLI maps every command
// failure onto one of these so scripts driving ize can branch on cause.
const (
	ExitSuccess      = 0
	ExitUserError    = 1
	ExitIOError      = 2
	ExitBackendError = 3
)

// CLIError pairs an error with the process exit code it should produce,
// so command implementations can report a cause without main deciding
// exit codes by string-matching error text.
type CLIError struct {
	Code int
	Err  error
}

func (e *CLIError) Error() string { return e.Err.Error() }
func (e *CLIError) Unwrap() error { return e.Err }

// NewCLIError wraps err with the exit code a command should report. A
// nil err passed through unchanged so callers can write
// `return NewCLIError(code, err)` without a nil check.
func NewCLIError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &CLIError{Code: code, Err: err}
}

// ExitCode extracts the process exit code for err: ExitSuccess for nil,
// the code carried by a CLIError, or ExitIOError as the catch-all for
// any other error reaching main.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return ExitIOError
}

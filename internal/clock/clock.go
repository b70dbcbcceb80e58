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

// Package clock provides the time source used to stamp opcodes and changes,
// injectable so tests can run without real wall-clock waits.
package clock

import "github.com/jacobsa/timeutil"

// Clock is the source of truth for "now" and for timed waits throughout
// Ize. It is an alias for timeutil.Clock so that RealClock, FakeClock, and
// SimulatedClock below are interchangeable with any code written directly
// against the jacobsa/timeutil contract.
type Clock = timeutil.Clock

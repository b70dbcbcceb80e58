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
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func redirectToBuffer(buf *bytes.Buffer, severity string) {
	lvl := new(slog.LevelVar)
	defaultLogger = slog.New(defaultLoggerFactory.createJSONOrTextHandler(buf, lvl, ""))
	setLoggingLevel(severity, lvl)
	programLevel = lvl
}

func testLogCalls() []func() {
	return []func(){
		func() { Tracef("trace-%s", "x") },
		func() { Debugf("debug-%s", "x") },
		func() { Infof("info-%s", "x") },
		func() { Warnf("warn-%s", "x") },
		func() { Errorf("error-%s", "x") },
	}
}

func outputsAt(t *testing.T, format, severity string) []string {
	t.Helper()
	defaultLoggerFactory.format = format
	var buf bytes.Buffer
	redirectToBuffer(&buf, severity)

	var out []string
	for _, fn := range testLogCalls() {
		fn()
		out = append(out, buf.String())
		buf.Reset()
	}
	return out
}

func TestSeverityFiltersTextFormat(t *testing.T) {
	out := outputsAt(t, "text", SeverityWarn)
	assert.Empty(t, out[0])
	assert.Empty(t, out[1])
	assert.Empty(t, out[2])
	assert.Regexp(t, regexp.MustCompile(`severity=WARNING`), out[3])
	assert.Regexp(t, regexp.MustCompile(`severity=ERROR`), out[4])
}

func TestSeverityOffSuppressesEverything(t *testing.T) {
	out := outputsAt(t, "json", SeverityOff)
	for _, o := range out {
		assert.Empty(t, o)
	}
}

func TestSeverityTraceShowsEverything(t *testing.T) {
	out := outputsAt(t, "text", SeverityTrace)
	assert.Regexp(t, regexp.MustCompile(`severity=TRACE`), out[0])
	assert.Regexp(t, regexp.MustCompile(`severity=DEBUG`), out[1])
	assert.Regexp(t, regexp.MustCompile(`severity=INFO`), out[2])
}

func TestJSONFormatEmitsSeverityField(t *testing.T) {
	out := outputsAt(t, "json", SeverityInfo)
	assert.Regexp(t, regexp.MustCompile(`"severity":"INFO"`), out[2])
}

func TestSetLoggingLevelUnknownDefaultsToInfo(t *testing.T) {
	lvl := new(slog.LevelVar)
	setLoggingLevel("not-a-real-severity", lvl)
	assert.Equal(t, LevelInfo, lvl.Level())
}

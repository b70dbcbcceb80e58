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

package backend

import "github.com/pmezard/go-difflib/difflib"

// Hunk describes one contiguous region where old content and new content
// differ, in byte offsets. Tag is one of "replace", "delete", "insert".
// Equal regions are not recorded as hunks.
type Hunk struct {
	Tag             string
	OldStart, OldEnd int
	NewStart, NewEnd int
}

// diffBytes computes the byte-level hunks turning old into new, via
// difflib's sequence matcher applied to single-byte "lines" so that the
// reported ranges are exact byte offsets rather than line numbers.
func diffBytes(old, new []byte) []Hunk {
	a := splitBytes(old)
	b := splitBytes(new)

	matcher := difflib.NewMatcher(a, b)
	var hunks []Hunk
	for _, oc := range matcher.GetOpCodes() {
		if oc.Tag == 'e' {
			continue
		}
		hunks = append(hunks, Hunk{
			Tag:      tagName(oc.Tag),
			OldStart: oc.I1,
			OldEnd:   oc.I2,
			NewStart: oc.J1,
			NewEnd:   oc.J2,
		})
	}
	return hunks
}

func splitBytes(b []byte) []string {
	out := make([]string, len(b))
	for i, c := range b {
		out[i] = string(c)
	}
	return out
}

func tagName(tag byte) string {
	switch tag {
	case 'r':
		return "replace"
	case 'd':
		return "delete"
	case 'i':
		return "insert"
	default:
		return "equal"
	}
}

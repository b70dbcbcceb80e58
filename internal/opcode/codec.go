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

package opcode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Encode writes op to w using the self-describing on-disk journal format
// from §6: 8-byte sequence, 8-byte timestamp (ns), 2-byte op tag, then
// length-prefixed variable fields (path, target path, mode, offset,
// spilled flag, and either inline data or a 32-byte content hash).
func Encode(w io.Writer, op Opcode) error {
	bw := bufio.NewWriter(w)

	var hdr [18]byte
	binary.LittleEndian.PutUint64(hdr[0:8], op.Seq)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(op.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint16(hdr[16:18], uint16(op.Kind))
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("opcode: write header: %w", err)
	}

	if err := writeString(bw, op.Path); err != nil {
		return err
	}
	if err := writeString(bw, op.TargetPath); err != nil {
		return err
	}

	var rest [13]byte
	binary.LittleEndian.PutUint32(rest[0:4], op.Mode)
	binary.LittleEndian.PutUint64(rest[4:12], uint64(op.Offset))
	if op.Spilled {
		rest[12] = 1
	}
	if _, err := bw.Write(rest[:]); err != nil {
		return fmt.Errorf("opcode: write fields: %w", err)
	}

	if op.Spilled {
		if _, err := bw.Write(op.DataHash[:]); err != nil {
			return fmt.Errorf("opcode: write hash: %w", err)
		}
	} else if err := writeBytes(bw, op.Data); err != nil {
		return err
	}

	return bw.Flush()
}

// Decode reads one Opcode from r in the format written by Encode.
func Decode(r io.Reader) (Opcode, error) {
	var op Opcode

	var hdr [18]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return op, err // may be io.EOF, which callers use to stop reading
	}
	op.Seq = binary.LittleEndian.Uint64(hdr[0:8])
	op.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(hdr[8:16])))
	op.Kind = Kind(binary.LittleEndian.Uint16(hdr[16:18]))

	path, err := readString(r)
	if err != nil {
		return op, fmt.Errorf("opcode: read path: %w", err)
	}
	op.Path = path

	target, err := readString(r)
	if err != nil {
		return op, fmt.Errorf("opcode: read target path: %w", err)
	}
	op.TargetPath = target

	var rest [13]byte
	if _, err := io.ReadFull(r, rest[:]); err != nil {
		return op, fmt.Errorf("opcode: read fields: %w", err)
	}
	op.Mode = binary.LittleEndian.Uint32(rest[0:4])
	op.Offset = int64(binary.LittleEndian.Uint64(rest[4:12]))
	op.Spilled = rest[12] != 0

	if op.Spilled {
		if _, err := io.ReadFull(r, op.DataHash[:]); err != nil {
			return op, fmt.Errorf("opcode: read hash: %w", err)
		}
	} else {
		data, err := readBytes(r)
		if err != nil {
			return op, fmt.Errorf("opcode: read data: %w", err)
		}
		op.Data = data
	}

	return op, nil
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func writeBytes(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("opcode: write length: %w", err)
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("opcode: write bytes: %w", err)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func readBytes(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

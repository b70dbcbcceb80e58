package opcode

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Unix(1700000000, 123).UTC()
	cases := []Opcode{
		FileWrite("a/b.txt", 6, []byte("Rustd"), ts),
		FileCreate("greet.txt", 0o644, []byte("Hello\n"), ts),
		Truncate("f.txt", 5, ts),
		FileDelete("gone.txt", ts),
		FileRename("a/inner", "b/inner", ts),
		DirRename("a", "b", ts),
		SymlinkCreate("link", "target", ts),
		HardLinkCreate("existing", "new", ts),
	}

	for i, want := range cases {
		want.Seq = uint64(i + 1)

		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, want))

		got, err := Decode(&buf)
		require.NoError(t, err)

		assert.Equal(t, want.Seq, got.Seq)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Path, got.Path)
		assert.Equal(t, want.TargetPath, got.TargetPath)
		assert.Equal(t, want.Offset, got.Offset)
		assert.Equal(t, want.Data, got.Data)
		assert.True(t, want.Timestamp.Equal(got.Timestamp))
	}
}

func TestDecodeEOFAtStreamEnd(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FileDelete("x", time.Now())))

	_, err := Decode(&buf)
	require.NoError(t, err)

	_, err = Decode(&buf)
	assert.Error(t, err)
}

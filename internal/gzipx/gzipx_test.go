package gzipx

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, p []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(p)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompressRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("tarball content "), 1000)
	gz := gzipBytes(t, original)

	got, err := Decompress(gz)
	require.NoError(t, err)
	require.Equal(t, original, got)
}

func TestDecompressEmptyInput(t *testing.T) {
	gz := gzipBytes(t, nil)

	got, err := Decompress(gz)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecompressRejectsTooShortInput(t *testing.T) {
	_, err := Decompress([]byte{0x1f})
	require.ErrorIs(t, err, ErrTooShort)
}

func TestIsizeMatchesDecompressedLength(t *testing.T) {
	original := bytes.Repeat([]byte("x"), 4096)
	gz := gzipBytes(t, original)

	hint, err := isize(gz)
	require.NoError(t, err)
	require.Equal(t, uint32(len(original)), hint)
}

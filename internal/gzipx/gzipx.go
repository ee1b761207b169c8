// Package gzipx decompresses gzip tarballs, pre-sizing the output
// buffer from the RFC 1952 ISIZE trailer so io.Copy doesn't have to grow
// and re-copy the buffer as it inflates.
package gzipx

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// ErrTooShort is returned when the input is shorter than the four-byte
// ISIZE trailer. A longer input with no valid gzip header fails later,
// with gzip.NewReader's error.
var ErrTooShort = fmt.Errorf("gzip stream too short to contain an ISIZE trailer")

// isize reads the last four bytes of gz as a little-endian uint32, the
// RFC 1952 ISIZE field: the decompressed length modulo 2^32.
func isize(gz []byte) (uint32, error) {
	if len(gz) < 4 {
		return 0, ErrTooShort
	}
	tail := gz[len(gz)-4:]
	return binary.LittleEndian.Uint32(tail), nil
}

// Decompress inflates gz, pre-allocating the output buffer to the size
// hinted by the ISIZE trailer to avoid reallocation during the copy.
// ISIZE is the decompressed length modulo 2^32, so a stream whose
// uncompressed size exceeds 4GiB would undercount the hint; io.Copy
// still grows the buffer correctly in that case, it just pays for an
// extra reallocation, and npm tarballs never approach that size.
func Decompress(gz []byte) ([]byte, error) {
	hint, err := isize(gz)
	if err != nil {
		return nil, err
	}

	r, err := gzip.NewReader(bytes.NewReader(gz))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := bytes.NewBuffer(make([]byte, 0, hint))
	if _, err := io.Copy(out, r); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

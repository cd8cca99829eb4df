// util.go -- small byte/error helpers shared across the decode pipeline

package pwdb

import (
	"encoding/binary"
	"fmt"
)

// leUint32 reads a 4-byte little-endian unsigned integer. Timestamps
// throughout the file format are u32 little-endian Unix seconds.
func leUint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// errShort formats a short-read/bad-size message.
func errShort(what string, want, got int) error {
	return fmt.Errorf("%s: exp %d bytes, saw %d", what, want, got)
}

// field.go -- length-type-value field decoding shared by header and record runs

package pwdb

import "encoding/binary"

// blockSize is the Twofish cipher block size in bytes. Every field inside
// the encrypted stream is padded up to a multiple of it.
const blockSize = 16

// field is one decoded length-type-value unit out of either the header
// run or a record run. It exists only for the duration of parsing; the
// caller copies whatever it needs out of data before advancing past
// totalSize.
type field struct {
	typeID    byte
	data      []byte
	totalSize int // 4 (length) + 1 (type) + len(data) + padding, rounded up to blockSize
}

// decodeField reads one field starting at the front of b. It returns the
// field and the number of bytes the caller should advance its cursor by
// (field.totalSize). b must contain at least the field plus its padding;
// a declared length that would run past the end of b is reported as
// ErrTruncatedField.
func decodeField(b []byte) (field, error) {
	if len(b) < 5 {
		return field{}, newErr(KindTruncatedField)
	}

	size := binary.LittleEndian.Uint32(b[0:4])
	typeID := b[4]

	raw := 5 + int(size)
	total := roundUpBlock(raw)

	if total > len(b) {
		return field{}, newErr(KindTruncatedField)
	}

	return field{
		typeID:    typeID,
		data:      b[5 : 5+size],
		totalSize: total,
	}, nil
}

// roundUpBlock rounds n up to the next multiple of blockSize.
func roundUpBlock(n int) int {
	r := n % blockSize
	if r == 0 {
		return n
	}
	return n + (blockSize - r)
}

package pwdb

import (
	"bytes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"runtime"
	"testing"

	"golang.org/x/crypto/twofish"
)

// newAsserter is a small assertion helper: a closure that reports the
// caller's file/line on failure instead of pulling in an assertion
// library.
func newAsserter(t *testing.T) func(cond bool, msg string, args ...interface{}) {
	return func(cond bool, msg string, args ...interface{}) {
		if cond {
			return
		}

		_, file, line, ok := runtime.Caller(1)
		if !ok {
			file = "???"
			line = 0
		}

		s := fmt.Sprintf(msg, args...)
		t.Fatalf("%s: %d: Assertion failed: %s\n", file, line, s)
	}
}

// encodeField builds one on-disk TLV field: len:u32_le | type | data | pad.
func encodeField(typeID byte, data []byte) []byte {
	raw := 5 + len(data)
	total := roundUpBlock(raw)

	b := make([]byte, total)
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(data)))
	b[4] = typeID
	copy(b[5:], data)
	return b
}

func leBytes32(sec uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, sec)
	return b
}

// tlv is one field spec used by the test builders below, kept in the
// order it should appear on the wire (the MAC depends on field order).
type tlv struct {
	typeID byte
	data   []byte
}

// writeField appends one field's encoded bytes to plain and, unless it's
// the terminator, feeds its data into mac — mirroring exactly what
// decodeHeader/decodeOneRecord do on the way back in, so a test builder
// and the real decoder always agree on what was MAC'd.
func writeField(plain *bytes.Buffer, mac hash.Hash, f tlv) {
	plain.Write(encodeField(f.typeID, f.data))
	if f.typeID != fieldTerminator && mac != nil {
		mac.Write(f.data)
	}
}

// testDB is a convenience builder for a valid, fully encrypted .psafe3
// byte stream, used because no binary fixtures travel with this module.
// Each test adds the header and record fields it cares about and calls
// build() to get bytes Open can consume.
type testDB struct {
	passphrase   string
	iter         uint32
	headerFields []tlv
	records      [][]tlv // each inner slice gets its own terminator appended
}

func newTestDB(passphrase string) *testDB {
	return &testDB{
		passphrase: passphrase,
		iter:       5,
	}
}

func (d *testDB) addHeaderField(typeID byte, data []byte) {
	d.headerFields = append(d.headerFields, tlv{typeID, data})
}

// addRecord takes an ordered list of (type, data) pairs; order matters
// because the MAC is computed over fields in wire order.
func (d *testDB) addRecord(fields ...tlv) {
	d.records = append(d.records, fields)
}

// build assembles the full encrypted byte stream.
func (d *testDB) build(t *testing.T) []byte {
	t.Helper()

	var salt [32]byte
	if _, err := rand.Read(salt[:]); err != nil {
		t.Fatalf("salt: %s", err)
	}

	stretched := stretchKey([]byte(d.passphrase), salt[:], d.iter)
	keyHash := sha256.Sum256(stretched[:])

	var dataKey, macKey [32]byte
	if _, err := rand.Read(dataKey[:]); err != nil {
		t.Fatalf("dataKey: %s", err)
	}
	if _, err := rand.Read(macKey[:]); err != nil {
		t.Fatalf("macKey: %s", err)
	}

	wrapBlock, err := twofish.NewCipher(stretched[:])
	if err != nil {
		t.Fatalf("wrap cipher: %s", err)
	}
	var wrapped [64]byte
	copy(wrapped[0:32], dataKey[:])
	copy(wrapped[32:64], macKey[:])
	for off := 0; off < 64; off += blockSize {
		wrapBlock.Encrypt(wrapped[off:off+blockSize], wrapped[off:off+blockSize])
	}

	var cbcIV [16]byte
	if _, err := rand.Read(cbcIV[:]); err != nil {
		t.Fatalf("cbcIV: %s", err)
	}

	mac := hmac.New(sha256.New, macKey[:])

	var plain bytes.Buffer
	for _, f := range d.headerFields {
		writeField(&plain, mac, f)
	}
	writeField(&plain, mac, tlv{fieldTerminator, nil})

	for _, rec := range d.records {
		for _, f := range rec {
			writeField(&plain, mac, f)
		}
		writeField(&plain, mac, tlv{fieldTerminator, nil})
	}

	plaintext := plain.Bytes()
	if len(plaintext)%blockSize != 0 {
		t.Fatalf("test bug: assembled plaintext %d bytes, not block aligned", len(plaintext))
	}

	payloadBlock, err := twofish.NewCipher(dataKey[:])
	if err != nil {
		t.Fatalf("payload cipher: %s", err)
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(payloadBlock, cbcIV[:]).CryptBlocks(ciphertext, plaintext)

	tag := mac.Sum(nil)

	var out bytes.Buffer
	out.WriteString("PWS3")
	out.Write(salt[:])
	out.Write(leBytes32(d.iter))
	out.Write(keyHash[:])
	out.Write(wrapped[:])
	out.Write(cbcIV[:])
	out.Write(ciphertext)
	out.Write(eofMarker)
	out.Write(tag)

	return out.Bytes()
}

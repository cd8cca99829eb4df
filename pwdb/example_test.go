package pwdb_test

import (
	"bytes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/twofish"

	"github.com/tkuhlman/pwapwdb/pwdb"
)

// buildExampleFile hand-assembles a minimal, valid .psafe3 byte stream
// using nothing but the package's public surface plus the same cipher and
// hash primitives Open itself uses, so that ExampleOpen below can run against
// a real encrypted buffer without shipping a binary fixture.
func buildExampleFile(passphrase string, id uuid.UUID) []byte {
	const blockSize = 16

	field := func(typeID byte, data []byte) []byte {
		raw := 5 + len(data)
		total := raw + (blockSize-raw%blockSize)%blockSize
		b := make([]byte, total)
		binary.LittleEndian.PutUint32(b[0:4], uint32(len(data)))
		b[4] = typeID
		copy(b[5:], data)
		return b
	}

	var salt [32]byte
	copy(salt[:], bytes.Repeat([]byte{0x42}, 32))
	const iter = 3

	stretch := func() [32]byte {
		h := sha256.New()
		h.Write([]byte(passphrase))
		h.Write(salt[:])
		var out [32]byte
		copy(out[:], h.Sum(nil))
		for i := 0; i < iter; i++ {
			out = sha256.Sum256(out[:])
		}
		return out
	}()
	keyHash := sha256.Sum256(stretch[:])

	var dataKey, macKey [32]byte
	copy(dataKey[:], bytes.Repeat([]byte{0x11}, 32))
	copy(macKey[:], bytes.Repeat([]byte{0x22}, 32))

	wrapBlock, err := twofish.NewCipher(stretch[:])
	if err != nil {
		panic(err)
	}
	var wrapped [64]byte
	copy(wrapped[0:32], dataKey[:])
	copy(wrapped[32:64], macKey[:])
	for off := 0; off < 64; off += blockSize {
		wrapBlock.Encrypt(wrapped[off:off+blockSize], wrapped[off:off+blockSize])
	}

	var cbcIV [16]byte
	copy(cbcIV[:], bytes.Repeat([]byte{0x33}, 16))

	mac := hmac.New(sha256.New, macKey[:])
	macAndField := func(typeID byte, data []byte) []byte {
		mac.Write(data)
		return field(typeID, data)
	}

	var plain bytes.Buffer
	plain.Write(macAndField(0x09, []byte("example vault")))             // database name
	plain.Write(macAndField(0x04, []byte{0, 0, 0, 0}))                  // last save
	plain.Write(field(0xff, nil))                                       // header terminator, not MAC'd

	plain.Write(macAndField(0x01, id[:]))
	plain.Write(macAndField(0x03, []byte("Example entry")))
	plain.Write(macAndField(0x04, []byte("reader")))
	plain.Write(macAndField(0x06, []byte("correct horse battery staple")))
	plain.Write(field(0xff, nil))

	plaintext := plain.Bytes()

	payloadBlock, err := twofish.NewCipher(dataKey[:])
	if err != nil {
		panic(err)
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(payloadBlock, cbcIV[:]).CryptBlocks(ciphertext, plaintext)

	var out bytes.Buffer
	out.WriteString("PWS3")
	out.Write(salt[:])
	iterBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(iterBytes, iter)
	out.Write(iterBytes)
	out.Write(keyHash[:])
	out.Write(wrapped[:])
	out.Write(cbcIV[:])
	out.Write(ciphertext)
	out.WriteString("PWS3-EOFPWS3-EOF")
	out.Write(mac.Sum(nil))

	return out.Bytes()
}

func ExampleOpen() {
	id := uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")
	raw := buildExampleFile("correct horse battery staple", id)

	db, err := pwdb.Open(raw, "correct horse battery staple")
	if err != nil {
		panic(err)
	}

	rec, _ := db.Record(id)
	fmt.Println(rec.Title, rec.Username)

	matches := db.Search("example")
	fmt.Println(len(matches))

	// Output:
	// Example entry reader
	// 1
}

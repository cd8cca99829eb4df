// preamble.go -- fixed-size cleartext prelude, key stretching, key unwrap

package pwdb

import (
	"bytes"
	"crypto/sha256"

	"golang.org/x/crypto/twofish"
)

// preambleSize is the fixed, unencrypted prelude every .psafe3 file
// starts with.
const preambleSize = 152

// magic is the ASCII tag every Password Safe V3 file starts with.
var magic = []byte("PWS3")

// MaxKeyStretchIterations bounds how many extra rounds of SHA-256 Open
// will run while stretching the passphrase. The Password Safe V3 format
// itself places no limit on this field; the cap exists purely so that a
// hostile iteration count can't stall Open indefinitely, and is an
// implementation choice rather than part of the wire format.
const MaxKeyStretchIterations = 100_000

// preamble is the decoded, fixed-size cleartext prelude of a V3 database
// file, plus the key material derived from it. It is retained on the
// Database for debugging/round-trip reference; nothing outside this
// package reads the derived keys back out of it.
type preamble struct {
	salt  [32]byte
	iter  uint32
	cbcIV [16]byte

	stretchedKey [32]byte
	dataKey      [32]byte // K
	macKey       [32]byte // L
}

// decodePreamble parses exactly preambleSize bytes, runs the key
// stretching function, verifies the passphrase against the stored
// key-hash, and unwraps the two inner keys.
func decodePreamble(b []byte, passphrase []byte) (*preamble, error) {
	if len(b) != preambleSize {
		return nil, wrapErr(KindNotAPWS3DB, errShort("preamble", preambleSize, len(b)))
	}

	if !bytes.Equal(b[0:4], magic) {
		return nil, newErr(KindNotAPWS3DB)
	}

	var p preamble
	copy(p.salt[:], b[4:36])
	iter := leUint32(b[36:40])
	keyHash := b[40:72]
	wrapped := b[72:136]
	copy(p.cbcIV[:], b[136:152])

	if iter > MaxKeyStretchIterations {
		return nil, newErr(KindSuspectIterations)
	}
	p.iter = iter

	p.stretchedKey = stretchKey(passphrase, p.salt[:], iter)

	got := sha256.Sum256(p.stretchedKey[:])
	if !bytes.Equal(got[:], keyHash) {
		return nil, newErr(KindInvalidPassword)
	}

	dataKey, macKey, err := unwrapKeys(wrapped, p.stretchedKey[:])
	if err != nil {
		return nil, err
	}
	p.dataKey = dataKey
	p.macKey = macKey

	return &p, nil
}

// stretchKey computes SHA-256(passphrase || salt), then applies SHA-256
// to the digest iter additional times: SHA-256 applied iter+1 times
// total, salted only on the first pass.
func stretchKey(passphrase, salt []byte, iter uint32) [32]byte {
	h := sha256.New()
	h.Write(passphrase)
	h.Write(salt)

	var stretched [32]byte
	copy(stretched[:], h.Sum(nil))
	for i := uint32(0); i < iter; i++ {
		stretched = sha256.Sum256(stretched[:])
	}
	return stretched
}

// unwrapKeys decrypts the 64-byte wrapped blob with Twofish in ECB mode
// (block-by-block, no chaining, no padding) using the stretched key as
// the Twofish key, and splits the result into the data-encryption key
// and the MAC key.
func unwrapKeys(wrapped []byte, stretchedKey []byte) (dataKey, macKey [32]byte, err error) {
	if len(wrapped) != 64 {
		return dataKey, macKey, wrapErr(KindDecryptError, errShort("wrapped key blob", 64, len(wrapped)))
	}

	block, cerr := twofish.NewCipher(stretchedKey)
	if cerr != nil {
		return dataKey, macKey, wrapErr(KindDecryptError, cerr)
	}

	var plain [64]byte
	for off := 0; off < 64; off += blockSize {
		block.Decrypt(plain[off:off+blockSize], wrapped[off:off+blockSize])
	}

	copy(dataKey[:], plain[0:32])
	copy(macKey[:], plain[32:64])
	return dataKey, macKey, nil
}

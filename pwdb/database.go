// database.go -- top-level Open: preamble, EOF scan, decrypt, decode, MAC verify

// Package pwdb decodes the Password Safe V3 (.psafe3) encrypted database
// format: it authenticates a passphrase, verifies the integrity of an
// entire file, decrypts the record payload, and exposes a structured,
// read-only view of the records it contains.
//
// The package performs no I/O of its own. Open takes a fully
// materialized byte buffer and a passphrase and returns a fully
// materialized Database or an error; there is no partial result on
// failure and no write path back to the file format.
package pwdb

import (
	"bytes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/twofish"
)

// minFileSize is the smallest byte count Open will consider: the 152
// byte preamble plus room for at least the EOF marker and HMAC trailer.
const minFileSize = 200

// eofMarker is the 16-byte ASCII sentinel placed between the encrypted
// payload and the trailing HMAC tag.
var eofMarker = []byte("PWS3-EOFPWS3-EOF")

// Database is the root value produced by a successful Open. Every field
// is populated before Open returns, and its record map cannot be changed
// through its exported surface. Record, Records and Search return
// pointers to the stored Record values, so those values are shared with
// the caller rather than copied.
type Database struct {
	preamble *preamble
	header   Header
	lastMod  time.Time
	records  map[uuid.UUID]*Record
}

// Open authenticates passphrase against data, verifies the integrity of
// the whole buffer, decrypts it, and decodes the header and records.
// The returned Database is only ever constructed after the trailing HMAC
// tag has verified; every earlier failure returns a nil Database.
func Open(data []byte, passphrase string) (*Database, error) {
	if len(data) < minFileSize {
		return nil, newErr(KindTooShort)
	}

	pre, err := decodePreamble(data[:preambleSize], []byte(passphrase))
	if err != nil {
		return nil, err
	}

	eofPos, err := findEOF(data)
	if err != nil {
		return nil, err
	}
	tag := data[eofPos+blockSize : eofPos+blockSize+32]

	plaintext, err := cbcDecrypt(pre.dataKey[:], pre.cbcIV[:], data[preambleSize:eofPos])
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, pre.macKey[:])

	header, recordStream, err := decodeHeader(plaintext, mac)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(recordStream, mac)
	if err != nil {
		return nil, err
	}

	// The HMAC is verified only after both header and record decoding
	// have fully completed. A decode error in either stage is returned
	// above, before the tag is checked.
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, newErr(KindHMACMismatch)
	}

	if !header.HasLastSave {
		return nil, newErr(KindMissingLastSave)
	}

	return &Database{
		preamble: pre,
		header:   *header,
		lastMod:  header.LastSave,
		records:  records,
	}, nil
}

// findEOF scans forward from the end of the preamble in block-size
// increments for the EOF sentinel.
func findEOF(data []byte) (int, error) {
	remaining := len(data) - preambleSize
	if remaining%blockSize != 0 {
		return 0, newErr(KindMisalignedEncryptedLen)
	}

	for pos := preambleSize; pos < len(data); pos += blockSize {
		if bytes.Equal(data[pos:pos+blockSize], eofMarker) {
			if pos+blockSize+32 > len(data) {
				return 0, newErr(KindMisalignedEncryptedLen)
			}
			return pos, nil
		}
	}

	return 0, newErr(KindNoEOF)
}

// cbcDecrypt decrypts ciphertext with Twofish in CBC mode, no padding.
func cbcDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%blockSize != 0 {
		return nil, newErr(KindMisalignedEncryptedLen)
	}

	block, err := twofish.NewCipher(key)
	if err != nil {
		return nil, wrapErr(KindDecryptError, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// Header returns the database-wide metadata decoded from the header run.
func (d *Database) Header() Header { return d.header }

// LastModified is the header's last-save time. A database without one
// is rejected as a hard error by Open, so this is always valid on any
// Database it returns.
func (d *Database) LastModified() time.Time { return d.lastMod }

// Record looks up a single record by its UUID.
func (d *Database) Record(id uuid.UUID) (*Record, bool) {
	r, ok := d.records[id]
	return r, ok
}

// Len returns the number of records in the database.
func (d *Database) Len() int { return len(d.records) }

// Records returns a copy of the UUID-to-record mapping. The copy is
// shallow (record pointers are shared) but the map itself is the
// caller's own, so mutating it cannot affect the Database.
func (d *Database) Records() map[uuid.UUID]*Record {
	out := make(map[uuid.UUID]*Record, len(d.records))
	for k, v := range d.records {
		out[k] = v
	}
	return out
}

// Salt returns the random salt from the preamble, retained for
// debugging/round-trip reference. The derived keys and stretched key
// are never exposed here.
func (d *Database) Salt() [32]byte { return d.preamble.salt }

// Iterations returns the key-stretching iteration count from the
// preamble.
func (d *Database) Iterations() uint32 { return d.preamble.iter }

// header.go -- decode the header TLV run into a Header

package pwdb

import (
	"hash"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Header field type tags.
const (
	headerFieldVersion                  byte = 0x00
	headerFieldUUID                     byte = 0x01
	headerFieldPreferences              byte = 0x02
	headerFieldTreeDisplayStatus        byte = 0x03
	headerFieldLastSave                 byte = 0x04
	headerFieldDeprecated               byte = 0x05
	headerFieldLastSaveBy               byte = 0x06
	headerFieldLastSaveUser             byte = 0x07
	headerFieldLastSaveHost             byte = 0x08
	headerFieldName                     byte = 0x09
	headerFieldDescription              byte = 0x0a
	headerFieldFilters                  byte = 0x0b
	headerFieldRecentlyUsed             byte = 0x0f
	headerFieldPasswordPolicy           byte = 0x10
	headerFieldEmptyGroups              byte = 0x11
	headerFieldYubico                   byte = 0x12
	headerFieldLastMasterPasswordUpdate byte = 0x13
	fieldTerminator                     byte = 0xff
)

// Header is a bag of optional scalar attributes describing the database
// as a whole. Every attribute is optional except the terminator itself;
// HasX flags distinguish "absent" from the zero value, since a 32-bit
// timestamp of zero is itself a valid (if unusual) Unix time.
type Header struct {
	Version [2]byte

	UUID    uuid.UUID
	HasUUID bool

	Preferences       string
	TreeDisplayStatus string

	LastSave    time.Time
	HasLastSave bool

	LastSaveBy   string
	LastSaveUser string
	LastSaveHost string

	Name        string
	Description string
	Filters     string

	RecentlyUsed   string
	PasswordPolicy string
	EmptyGroups    string
	Yubico         string

	LastMasterPasswordUpdate    time.Time
	HasLastMasterPasswordUpdate bool
}

// decodeHeader consumes fields from the front of view until the 0xff
// terminator, feeding each field's data (except the terminator's) into
// mac, and returns the populated Header together with the remaining
// bytes (the record stream).
func decodeHeader(view []byte, mac hash.Hash) (*Header, []byte, error) {
	var h Header
	pos := 0
	terminated := false

	for pos < len(view) {
		f, err := decodeField(view[pos:])
		if err != nil {
			return nil, nil, err
		}

		if f.typeID != fieldTerminator {
			mac.Write(f.data)
			if err := applyHeaderField(&h, f); err != nil {
				return nil, nil, err
			}
		}

		pos += f.totalSize

		if f.typeID == fieldTerminator {
			terminated = true
			break
		}
	}

	if !terminated {
		return nil, nil, newErr(KindUnterminatedHeader)
	}

	return &h, view[pos:], nil
}

func applyHeaderField(h *Header, f field) error {
	switch f.typeID {
	case headerFieldVersion:
		if len(f.data) != 2 {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		copy(h.Version[:], f.data)

	case headerFieldUUID:
		if len(f.data) != 16 {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		id, err := uuid.FromBytes(f.data)
		if err != nil {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		h.UUID = id
		h.HasUUID = true

	case headerFieldPreferences:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.Preferences = s

	case headerFieldTreeDisplayStatus:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.TreeDisplayStatus = s

	case headerFieldLastSave:
		t, err := decodeTimestamp(f)
		if err != nil {
			return err
		}
		h.LastSave = t
		h.HasLastSave = true

	case headerFieldDeprecated:
		// Skip-but-MAC: data is already in the running MAC above;
		// there is nothing to record on the Header.

	case headerFieldLastSaveBy:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.LastSaveBy = s

	case headerFieldLastSaveUser:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.LastSaveUser = s

	case headerFieldLastSaveHost:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.LastSaveHost = s

	case headerFieldName:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.Name = s

	case headerFieldDescription:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.Description = s

	case headerFieldFilters:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.Filters = s

	case headerFieldRecentlyUsed:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.RecentlyUsed = s

	case headerFieldPasswordPolicy:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.PasswordPolicy = s

	case headerFieldEmptyGroups:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.EmptyGroups = s

	case headerFieldYubico:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		h.Yubico = s

	case headerFieldLastMasterPasswordUpdate:
		t, err := decodeTimestamp(f)
		if err != nil {
			return err
		}
		h.LastMasterPasswordUpdate = t
		h.HasLastMasterPasswordUpdate = true

	default:
		return fieldTypeErr(KindUnknownHeaderFieldType, f.typeID)
	}

	return nil
}

// decodeUTF8 validates a field's data as UTF-8 and returns it as a
// string. Invalid UTF-8 is a hard decode error rather than a panic.
func decodeUTF8(f field) (string, error) {
	if !utf8.Valid(f.data) {
		return "", fieldTypeErr(KindInvalidUTF8, f.typeID)
	}
	return string(f.data), nil
}

// decodeTimestamp reads a 4-byte little-endian Unix-seconds field.
func decodeTimestamp(f field) (time.Time, error) {
	if len(f.data) != 4 {
		return time.Time{}, fieldTypeErr(KindBadFieldLength, f.typeID)
	}
	sec := leUint32(f.data)
	return time.Unix(int64(sec), 0).UTC(), nil
}

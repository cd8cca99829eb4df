// record.go -- decode the record stream into a uuid-keyed map of Record

package pwdb

import (
	"hash"
	"time"

	"github.com/google/uuid"
)

// Record field type tags.
const (
	recordFieldUUID                   byte = 0x01
	recordFieldGroup                  byte = 0x02
	recordFieldTitle                  byte = 0x03
	recordFieldUsername               byte = 0x04
	recordFieldNotes                  byte = 0x05
	recordFieldPassword               byte = 0x06
	recordFieldCreateTime             byte = 0x07
	recordFieldPasswordModTime        byte = 0x08
	recordFieldLastAccessTime         byte = 0x09
	recordFieldPasswordExpiryTime     byte = 0x0a
	recordFieldReserved0b             byte = 0x0b
	recordFieldLastModTime            byte = 0x0c
	recordFieldURL                    byte = 0x0d
	recordFieldAutotype               byte = 0x0e
	recordFieldPasswordHistory        byte = 0x0f
	recordFieldPasswordPolicy         byte = 0x10
	recordFieldPasswordExpiryInterval byte = 0x11
	recordFieldRunCommand             byte = 0x12
	recordFieldDoubleClickAction      byte = 0x13
	recordFieldEmail                  byte = 0x14
	recordFieldProtectedEntry         byte = 0x15
	recordFieldPasswordSymbols        byte = 0x16
	recordFieldShiftDoubleClickAction byte = 0x17
	recordFieldPasswordPolicyName     byte = 0x18
	recordFieldKeyboardShortcut       byte = 0x19
	recordFieldReserved1a             byte = 0x1a
	recordFieldTwoFactorKey           byte = 0x1b
	recordFieldCreditCardNumber       byte = 0x1c
	recordFieldCreditCardExpiry       byte = 0x1d
	recordFieldCreditCardVerification byte = 0x1e
	recordFieldCreditCardPIN          byte = 0x1f
	recordFieldQRCodeText             byte = 0x20
)

// Record is one credential entry, keyed by its UUID.
type Record struct {
	UUID     uuid.UUID
	Title    string
	Password string
	Group    string
	Username string
	Notes    string
	URL      string
	Email    string
	Autotype string

	CreateTime    time.Time
	HasCreateTime bool

	AccessTime    time.Time
	HasAccessTime bool

	ModTime    time.Time
	HasModTime bool

	PasswordModTime    time.Time
	HasPasswordModTime bool

	PasswordExpiryTime     time.Time
	HasPasswordExpiryTime  bool
	PasswordExpiryInterval [4]byte

	PasswordHistory    string
	PasswordPolicy     string
	PasswordPolicyName string
	PasswordSymbols    string

	RunCommand   string
	TwoFactorKey []byte
	QRCodeText   string

	CreditCardNumber       string
	CreditCardExpiry       string
	CreditCardVerification string
	CreditCardPIN          string

	Protected bool

	DoubleClickAction      [2]byte
	ShiftDoubleClickAction [2]byte
	KeyboardShortcut       [4]byte
}

// decodeRecords consumes the record stream (everything after the header)
// as a concatenation of per-record TLV runs, each terminated by its own
// 0xff sentinel, feeding every field's data (except the terminator's)
// into mac. Records with a duplicate UUID overwrite the earlier one.
func decodeRecords(stream []byte, mac hash.Hash) (map[uuid.UUID]*Record, error) {
	records := make(map[uuid.UUID]*Record)

	pos := 0
	for pos < len(stream) {
		rec, consumed, err := decodeOneRecord(stream[pos:], mac)
		if err != nil {
			return nil, err
		}

		if err := validateRecord(rec); err != nil {
			return nil, err
		}

		records[rec.UUID] = rec
		pos += consumed
	}

	return records, nil
}

// decodeOneRecord decodes fields from the front of view into a single
// Record, stopping at the 0xff terminator (or, failing that, at the end
// of view: a record whose fields run to the end of the stream without a
// terminator is returned as decoded so far, not reported as an error).
// It returns the record and the number of bytes consumed.
func decodeOneRecord(view []byte, mac hash.Hash) (*Record, int, error) {
	rec := &Record{}
	pos := 0

	for pos < len(view) {
		f, err := decodeField(view[pos:])
		if err != nil {
			return nil, 0, err
		}

		if f.typeID != fieldTerminator {
			mac.Write(f.data)
			if err := applyRecordField(rec, f); err != nil {
				return nil, 0, err
			}
		}

		pos += f.totalSize

		if f.typeID == fieldTerminator {
			break
		}
	}

	return rec, pos, nil
}

func applyRecordField(rec *Record, f field) error {
	switch f.typeID {
	case recordFieldUUID:
		if len(f.data) != 16 {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		id, err := uuid.FromBytes(f.data)
		if err != nil {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		rec.UUID = id

	case recordFieldGroup:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.Group = s

	case recordFieldTitle:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.Title = s

	case recordFieldUsername:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.Username = s

	case recordFieldNotes:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.Notes = s

	case recordFieldPassword:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.Password = s

	case recordFieldCreateTime:
		t, err := decodeTimestamp(f)
		if err != nil {
			return err
		}
		rec.CreateTime = t
		rec.HasCreateTime = true

	case recordFieldPasswordModTime:
		t, err := decodeTimestamp(f)
		if err != nil {
			return err
		}
		rec.PasswordModTime = t
		rec.HasPasswordModTime = true

	case recordFieldLastAccessTime:
		t, err := decodeTimestamp(f)
		if err != nil {
			return err
		}
		rec.AccessTime = t
		rec.HasAccessTime = true

	case recordFieldPasswordExpiryTime:
		t, err := decodeTimestamp(f)
		if err != nil {
			return err
		}
		rec.PasswordExpiryTime = t
		rec.HasPasswordExpiryTime = true

	case recordFieldReserved0b, recordFieldReserved1a:
		// Reserved/skip: already MAC'd above, nothing to record.

	case recordFieldLastModTime:
		t, err := decodeTimestamp(f)
		if err != nil {
			return err
		}
		rec.ModTime = t
		rec.HasModTime = true

	case recordFieldURL:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.URL = s

	case recordFieldAutotype:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.Autotype = s

	case recordFieldPasswordHistory:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.PasswordHistory = s

	case recordFieldPasswordPolicy:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.PasswordPolicy = s

	case recordFieldPasswordExpiryInterval:
		if len(f.data) != 4 {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		copy(rec.PasswordExpiryInterval[:], f.data)

	case recordFieldRunCommand:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.RunCommand = s

	case recordFieldDoubleClickAction:
		if len(f.data) != 2 {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		copy(rec.DoubleClickAction[:], f.data)

	case recordFieldEmail:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.Email = s

	case recordFieldProtectedEntry:
		if len(f.data) != 1 {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		rec.Protected = f.data[0] != 0

	case recordFieldPasswordSymbols:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.PasswordSymbols = s

	case recordFieldShiftDoubleClickAction:
		if len(f.data) != 2 {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		copy(rec.ShiftDoubleClickAction[:], f.data)

	case recordFieldPasswordPolicyName:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.PasswordPolicyName = s

	case recordFieldKeyboardShortcut:
		if len(f.data) != 4 {
			return fieldTypeErr(KindBadFieldLength, f.typeID)
		}
		copy(rec.KeyboardShortcut[:], f.data)

	case recordFieldTwoFactorKey:
		rec.TwoFactorKey = append([]byte(nil), f.data...)

	case recordFieldCreditCardNumber:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.CreditCardNumber = s

	case recordFieldCreditCardExpiry:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.CreditCardExpiry = s

	case recordFieldCreditCardVerification:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.CreditCardVerification = s

	case recordFieldCreditCardPIN:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.CreditCardPIN = s

	case recordFieldQRCodeText:
		s, err := decodeUTF8(f)
		if err != nil {
			return err
		}
		rec.QRCodeText = s

	default:
		return fieldTypeErr(KindUnknownRecordFieldType, f.typeID)
	}

	return nil
}

// validateRecord enforces the required-field invariant: UUID must not
// be all-zero, title and password must be non-empty.
func validateRecord(rec *Record) error {
	if rec.UUID == uuid.Nil {
		return missingFieldErr("uuid", rec.Title)
	}
	if rec.Title == "" {
		return missingFieldErr("title", rec.Title)
	}
	if rec.Password == "" {
		return missingFieldErr("password", rec.Title)
	}
	return nil
}

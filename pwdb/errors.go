// errors.go -- typed error Kind hierarchy returned by Open and its stages

package pwdb

import "fmt"

// Kind identifies one of the fatal failure modes of Open. Every error
// Open can return carries exactly one Kind, so callers can branch on
// errors.Is(err, pwdb.ErrInvalidPassword) instead of string-matching.
type Kind int

const (
	_ Kind = iota

	// Size/framing
	KindTooShort
	KindNotAPWS3DB
	KindMisalignedEncryptedLen
	KindNoEOF
	KindTruncatedField
	KindUnterminatedHeader

	// Passphrase/key
	KindSuspectIterations
	KindInvalidPassword

	// Crypto
	KindDecryptError
	KindHMACMismatch

	// Schema
	KindUnknownHeaderFieldType
	KindUnknownRecordFieldType
	KindBadFieldLength
	KindMissingRequiredField
	KindMissingLastSave
	KindInvalidUTF8
)

func (k Kind) String() string {
	switch k {
	case KindTooShort:
		return "TOO_SHORT"
	case KindNotAPWS3DB:
		return "NOT_A_PWS3_DB"
	case KindMisalignedEncryptedLen:
		return "MISALIGNED_ENCRYPTED_LEN"
	case KindNoEOF:
		return "NO_EOF"
	case KindTruncatedField:
		return "TRUNCATED_FIELD"
	case KindUnterminatedHeader:
		return "UNTERMINATED_HEADER"
	case KindSuspectIterations:
		return "SUSPECT_ITERATIONS"
	case KindInvalidPassword:
		return "INVALID_PASSWORD"
	case KindDecryptError:
		return "DECRYPT_ERROR"
	case KindHMACMismatch:
		return "HMAC_MISMATCH"
	case KindUnknownHeaderFieldType:
		return "UNKNOWN_HEADER_FIELD_TYPE"
	case KindUnknownRecordFieldType:
		return "UNKNOWN_RECORD_FIELD_TYPE"
	case KindBadFieldLength:
		return "BAD_FIELD_LENGTH"
	case KindMissingRequiredField:
		return "MISSING_REQUIRED_FIELD"
	case KindMissingLastSave:
		return "MISSING_LAST_SAVE"
	case KindInvalidUTF8:
		return "INVALID_UTF8"
	default:
		return "UNKNOWN"
	}
}

// Error is the one error type the package ever returns from Open and its
// stages. It is fatal by construction: there is no partial Database to
// recover from, and no stage retries internally.
type Error struct {
	Kind Kind

	// Context, populated depending on Kind. Not all fields apply to
	// every Kind; zero values mean "not applicable".
	FieldType byte   // the offending field type, for UNKNOWN_*_FIELD_TYPE / BAD_FIELD_LENGTH / INVALID_UTF8
	Which     string // which required attribute was missing, for MISSING_REQUIRED_FIELD
	Title     string // the record's title, if known, for MISSING_REQUIRED_FIELD

	cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownHeaderFieldType:
		return fmt.Sprintf("%s: field type %#02x", e.Kind, e.FieldType)
	case KindUnknownRecordFieldType:
		return fmt.Sprintf("%s: field type %#02x", e.Kind, e.FieldType)
	case KindBadFieldLength:
		return fmt.Sprintf("%s: field type %#02x", e.Kind, e.FieldType)
	case KindMissingRequiredField:
		if e.Title != "" {
			return fmt.Sprintf("%s: record %q missing %s", e.Kind, e.Title, e.Which)
		}
		return fmt.Sprintf("%s: record missing %s", e.Kind, e.Which)
	default:
		if e.cause != nil {
			return fmt.Sprintf("%s: %s", e.Kind, e.cause)
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, pwdb.ErrInvalidPassword) works against wrapped errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(k Kind) *Error { return &Error{Kind: k} }

func wrapErr(k Kind, cause error) *Error { return &Error{Kind: k, cause: cause} }

func fieldTypeErr(k Kind, t byte) *Error { return &Error{Kind: k, FieldType: t} }

func missingFieldErr(which, title string) *Error {
	return &Error{Kind: KindMissingRequiredField, Which: which, Title: title}
}

// Sentinel values for errors.Is comparisons. Context fields are left
// zero; Is only compares Kind.
var (
	ErrTooShort               = newErr(KindTooShort)
	ErrNotAPWS3DB             = newErr(KindNotAPWS3DB)
	ErrMisalignedEncryptedLen = newErr(KindMisalignedEncryptedLen)
	ErrNoEOF                  = newErr(KindNoEOF)
	ErrTruncatedField         = newErr(KindTruncatedField)
	ErrUnterminatedHeader     = newErr(KindUnterminatedHeader)
	ErrSuspectIterations      = newErr(KindSuspectIterations)
	ErrInvalidPassword        = newErr(KindInvalidPassword)
	ErrDecrypt                = newErr(KindDecryptError)
	ErrHMACMismatch           = newErr(KindHMACMismatch)
	ErrMissingLastSave        = newErr(KindMissingLastSave)
)

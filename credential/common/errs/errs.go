// Package errs defines the failure taxonomy shared by the credential,
// presentation and issuer packages.
//
// Every failing operation returns an *Error carrying a Kind, so callers can
// branch on the category with Is or KindOf while still reaching the
// underlying cause through errors.Is / errors.As.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the normalized failure category.
type Kind int

const (
	// Unknown is returned by KindOf for errors that carry no Kind.
	Unknown Kind = iota

	// InvalidArgument: empty, nil or inconsistent parameters.
	InvalidArgument

	// Unauthorized: the signing key is not an authentication key of the signer.
	Unauthorized

	// NotFound: no resolvable document, or private key absent from the store.
	NotFound

	// Malformed: wire document failed to parse.
	Malformed

	// SubjectMismatch: an embedded credential's subject is not the presentation signer.
	SubjectMismatch

	// Expired: a credential is past its expiration date.
	Expired

	// CryptoError: signing failed, or a signature did not verify.
	CryptoError

	// SerializationError: the canonical form could not be produced.
	SerializationError
)

var kindNames = map[Kind]string{
	Unknown:            "unknown",
	InvalidArgument:    "invalid argument",
	Unauthorized:       "unauthorized",
	NotFound:           "not found",
	Malformed:          "malformed",
	SubjectMismatch:    "subject mismatch",
	Expired:            "expired",
	CryptoError:        "crypto error",
	SerializationError: "serialization error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels, one per kind. An *Error unwraps to the sentinel of its kind, so
// errors.Is(err, errs.ErrExpired) works through any amount of wrapping.
var (
	ErrInvalidArgument = errors.New(InvalidArgument.String())
	ErrUnauthorized    = errors.New(Unauthorized.String())
	ErrNotFound        = errors.New(NotFound.String())
	ErrMalformed       = errors.New(Malformed.String())
	ErrSubjectMismatch = errors.New(SubjectMismatch.String())
	ErrExpired         = errors.New(Expired.String())
	ErrCrypto          = errors.New(CryptoError.String())
	ErrSerialization   = errors.New(SerializationError.String())
)

var sentinels = map[Kind]error{
	InvalidArgument:    ErrInvalidArgument,
	Unauthorized:       ErrUnauthorized,
	NotFound:           ErrNotFound,
	Malformed:          ErrMalformed,
	SubjectMismatch:    ErrSubjectMismatch,
	Expired:            ErrExpired,
	CryptoError:        ErrCrypto,
	SerializationError: ErrSerialization,
}

// Error is a categorized failure of a single operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	unwrapped := make([]error, 0, 2)
	if sentinel, ok := sentinels[e.Kind]; ok {
		unwrapped = append(unwrapped, sentinel)
	}
	if e.Err != nil {
		unwrapped = append(unwrapped, e.Err)
	}
	return unwrapped
}

// New returns an *Error of the given kind for operation op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is New with a formatted cause.
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the outermost Kind from err.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether the outermost Kind of err is kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

package did

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Scheme prefixes every DID string.
	Scheme = "did"

	// DefaultMethod is used by New when no method is given.
	DefaultMethod = "elastos"

	// DefaultKeyFragment names the primary key of documents built by NewDocument.
	DefaultKeyFragment = "primary"
)

var (
	ErrInvalidDID    = errors.New("invalid DID")
	ErrInvalidDIDURL = errors.New("invalid DID URL")
)

// DID is a decentralized identifier of the form did:<method>:<id>.
// The zero value is the empty DID. DIDs are comparable with ==.
type DID struct {
	method string
	id     string
}

// New returns the DID for a method specific id. An empty method means
// DefaultMethod.
func New(method, id string) (DID, error) {
	if method == "" {
		method = DefaultMethod
	}
	if !validMethod(method) {
		return DID{}, fmt.Errorf("%w: bad method %q", ErrInvalidDID, method)
	}
	if !validID(id) {
		return DID{}, fmt.Errorf("%w: bad method specific id %q", ErrInvalidDID, id)
	}
	return DID{method: method, id: id}, nil
}

// Parse parses the string form did:<method>:<id>.
func Parse(s string) (DID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != Scheme {
		return DID{}, fmt.Errorf("%w: %q", ErrInvalidDID, s)
	}
	return New(parts[1], parts[2])
}

// MustParse is Parse that panics on error. Intended for constants and tests.
func MustParse(s string) DID {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d DID) Method() string { return d.method }

// ID returns the method specific id.
func (d DID) ID() string { return d.id }

func (d DID) IsZero() bool { return d == DID{} }

func (d DID) String() string {
	if d.IsZero() {
		return ""
	}
	return Scheme + ":" + d.method + ":" + d.id
}

func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for _, r := range m {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "#?/ \t\r\n")
}

// DIDURL identifies a resource, usually a key, inside a DID document.
type DIDURL struct {
	did      DID
	fragment string
}

// NewURL returns did#fragment. An empty fragment denotes the DID itself.
func NewURL(d DID, fragment string) (DIDURL, error) {
	if d.IsZero() {
		return DIDURL{}, fmt.Errorf("%w: empty DID", ErrInvalidDIDURL)
	}
	if strings.ContainsAny(fragment, "# \t\r\n") {
		return DIDURL{}, fmt.Errorf("%w: bad fragment %q", ErrInvalidDIDURL, fragment)
	}
	return DIDURL{did: d, fragment: fragment}, nil
}

// ParseURL parses an absolute DID URL, or a bare "#fragment" relative to ref.
func ParseURL(s string, ref DID) (DIDURL, error) {
	if strings.HasPrefix(s, "#") {
		if ref.IsZero() {
			return DIDURL{}, fmt.Errorf("%w: relative %q without reference DID", ErrInvalidDIDURL, s)
		}
		return NewURL(ref, s[1:])
	}

	base, fragment, _ := strings.Cut(s, "#")
	d, err := Parse(base)
	if err != nil {
		return DIDURL{}, fmt.Errorf("%w: %v", ErrInvalidDIDURL, err)
	}
	return NewURL(d, fragment)
}

func (u DIDURL) DID() DID { return u.did }

func (u DIDURL) Fragment() string { return u.fragment }

func (u DIDURL) IsZero() bool { return u == DIDURL{} }

func (u DIDURL) String() string {
	if u.fragment == "" {
		return u.did.String()
	}
	return u.did.String() + "#" + u.fragment
}

// Compact abbreviates the URL to "#fragment" when it belongs to ref.
func (u DIDURL) Compact(ref DID) string {
	if u.did == ref && u.fragment != "" {
		return "#" + u.fragment
	}
	return u.String()
}

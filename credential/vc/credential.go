// Package vc implements verifiable credentials: signed claims made by an
// issuer about a subject.
package vc

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pilacorp/go-did-credential/credential/common/crypto"
	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/did"
)

// ProofType tags every proof produced by this module.
const ProofType = "ECDSAsecp256k1"

// TimeLayout is the wire form of issuanceDate, expirationDate and created.
const TimeLayout = "2006-01-02T15:04:05Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// Normalize drops everything finer than a second so that a time survives
// a round trip through TimeLayout unchanged.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Property is a single claim about the subject.
type Property struct {
	Key   string
	Value string
}

// Subject is the entity the credential makes claims about.
type Subject struct {
	id         did.DID
	properties []Property
}

func (s Subject) ID() did.DID { return s.id }

// Properties returns the claims in issuance order.
func (s Subject) Properties() []Property {
	return append([]Property(nil), s.properties...)
}

// Property looks up a claim by key.
func (s Subject) Property(key string) (string, bool) {
	for _, p := range s.properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Proof binds the credential to a key of its issuer.
type Proof struct {
	Type               string
	VerificationMethod did.DIDURL
	Signature          string
}

// Credential is immutable once created or parsed.
type Credential struct {
	id             did.DIDURL
	types          []string
	issuer         did.DID
	issuanceDate   time.Time
	expirationDate time.Time
	subject        Subject
	proof          Proof
}

// Contents represents the unsigned contents of a Credential.
type Contents struct {
	ID             did.DIDURL // Credential identifier, must belong to Subject
	Types          []string   // Credential types, at least one
	Issuer         did.DID    // Issuer identifier
	IssuanceDate   time.Time  // Issuance date
	ExpirationDate time.Time  // Expiration date, after IssuanceDate
	Subject        did.DID    // Subject identifier
	Properties     []Property // Claims, in order
}

// SignFunc signs the canonical signing form and returns a hex signature.
type SignFunc func(data []byte) (string, error)

// NewID returns a fresh credential id owned by subject.
func NewID(subject did.DID) (did.DIDURL, error) {
	return did.NewURL(subject, uuid.NewString())
}

// Create validates contents, signs their signing form with sign and returns
// the credential. method is recorded as the proof's verification method.
func Create(contents Contents, method did.DIDURL, sign SignFunc) (*Credential, error) {
	const op = "vc.Create"

	if sign == nil {
		return nil, errs.Errorf(errs.InvalidArgument, op, "sign function required")
	}
	if method.IsZero() || method.DID() != contents.Issuer {
		return nil, errs.Errorf(errs.InvalidArgument, op, "verification method %q does not belong to issuer %q", method, contents.Issuer)
	}

	c := &Credential{
		id:             contents.ID,
		types:          append([]string(nil), contents.Types...),
		issuer:         contents.Issuer,
		issuanceDate:   Normalize(contents.IssuanceDate),
		expirationDate: Normalize(contents.ExpirationDate),
		subject: Subject{
			id:         contents.Subject,
			properties: append([]Property(nil), contents.Properties...),
		},
	}
	if err := c.validate(); err != nil {
		return nil, errs.New(errs.InvalidArgument, op, err)
	}

	data, err := c.ToJSON(false, true)
	if err != nil {
		return nil, errs.New(errs.SerializationError, op, err)
	}

	signature, err := sign(data)
	if err != nil {
		return nil, errs.New(errs.CryptoError, op, fmt.Errorf("failed to sign credential: %w", err))
	}
	if !crypto.IsSignatureHex(signature) {
		return nil, errs.Errorf(errs.CryptoError, op, "signature is not %d lowercase hex characters", 2*crypto.SignatureBytes)
	}

	c.proof = Proof{
		Type:               ProofType,
		VerificationMethod: method,
		Signature:          signature,
	}
	return c, nil
}

func (c *Credential) validate() error {
	switch {
	case c.id.IsZero():
		return errors.New("credential id is required")
	case c.subject.id.IsZero():
		return errors.New("credential subject is required")
	case c.issuer.IsZero():
		return errors.New("credential issuer is required")
	case c.id.DID() != c.subject.id:
		return fmt.Errorf("credential id %q does not belong to subject %q", c.id, c.subject.id)
	case len(c.types) == 0:
		return errors.New("at least one credential type is required")
	case c.issuanceDate.IsZero() || c.expirationDate.IsZero():
		return errors.New("issuance and expiration dates are required")
	case !c.expirationDate.After(c.issuanceDate):
		return errors.New("expiration date must be after issuance date")
	}

	seenTypes := make(map[string]struct{}, len(c.types))
	for _, t := range c.types {
		if t == "" {
			return errors.New("empty credential type")
		}
		if _, dup := seenTypes[t]; dup {
			return fmt.Errorf("duplicate credential type %q", t)
		}
		seenTypes[t] = struct{}{}
	}

	seenKeys := make(map[string]struct{}, len(c.subject.properties))
	for _, p := range c.subject.properties {
		if p.Key == "" || p.Value == "" {
			return fmt.Errorf("property %q must have a non-empty key and value", p.Key)
		}
		if p.Key == "id" {
			return errors.New(`property key "id" is reserved for the subject`)
		}
		if _, dup := seenKeys[p.Key]; dup {
			return fmt.Errorf("duplicate property %q", p.Key)
		}
		seenKeys[p.Key] = struct{}{}
	}
	return nil
}

func (c *Credential) ID() did.DIDURL { return c.id }

// Types returns a copy of the credential types.
func (c *Credential) Types() []string { return append([]string(nil), c.types...) }

func (c *Credential) Issuer() did.DID { return c.issuer }

func (c *Credential) IssuanceDate() time.Time { return c.issuanceDate }

func (c *Credential) ExpirationDate() time.Time { return c.expirationDate }

// Subject returns a copy of the credential subject.
func (c *Credential) Subject() Subject {
	return Subject{id: c.subject.id, properties: c.subject.Properties()}
}

func (c *Credential) Proof() Proof { return c.proof }

// IsSelfProclaimed reports whether the subject issued the credential.
func (c *Credential) IsSelfProclaimed() bool {
	return c.issuer == c.subject.id
}

// IsExpired reports whether the expiration date has passed.
func (c *Credential) IsExpired() bool {
	return time.Now().After(c.expirationDate)
}

// Verify checks the proof against the issuer's current document. It does
// not look at the expiration date; see IsExpired and IsValid.
func (c *Credential) Verify(resolver did.Resolver) error {
	const op = "vc.Verify"

	if resolver == nil {
		return errs.Errorf(errs.InvalidArgument, op, "resolver required")
	}

	doc, err := resolver.Resolve(c.issuer)
	if err != nil {
		log.WithFields(log.Fields{
			"credential": c.id.String(),
			"issuer":     c.issuer.String(),
		}).WithError(err).Warn("failed to resolve credential issuer")
		return errs.New(errs.NotFound, op, err)
	}

	if c.proof.Type != ProofType {
		return errs.Errorf(errs.CryptoError, op, "unsupported proof type %q", c.proof.Type)
	}
	if !doc.IsAuthenticationKey(c.proof.VerificationMethod) {
		return errs.New(errs.Unauthorized, op, fmt.Errorf("%w: %s", did.ErrNotAuthenticationKey, c.proof.VerificationMethod))
	}

	data, err := c.ToJSON(false, true)
	if err != nil {
		return errs.New(errs.SerializationError, op, err)
	}

	if err := doc.Verify(c.proof.VerificationMethod, c.proof.Signature, data); err != nil {
		return errs.New(errs.CryptoError, op, err)
	}
	return nil
}

// IsValid is Verify followed by the expiry check.
func (c *Credential) IsValid(resolver did.Resolver) error {
	if err := c.Verify(resolver); err != nil {
		return err
	}
	if c.IsExpired() {
		return errs.Errorf(errs.Expired, "vc.IsValid", "credential %s expired at %s", c.id, FormatTime(c.expirationDate))
	}
	return nil
}

// Package vp implements verifiable presentations: ordered sets of
// credentials re-signed by their holder against a relying party's nonce and
// realm.
package vp

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/credential/vc"
	"github.com/pilacorp/go-did-credential/did"
)

// Type is the only accepted presentation type.
const Type = "VerifiablePresentation"

// ProofType tags presentation proofs.
const ProofType = vc.ProofType

// KeyStore signs on behalf of the holder.
type KeyStore interface {
	Sign(signer did.DID, key did.DIDURL, password string, data ...[]byte) (string, error)
}

// Proof binds the presentation to the holder's key and to a challenge.
type Proof struct {
	Type               string
	VerificationMethod did.DIDURL
	Nonce              string
	Realm              string
	Signature          string
}

// Presentation moves from unsigned to signed exactly once.
type Presentation struct {
	typ         string
	holder      did.DID
	signKey     did.DIDURL
	created     time.Time
	credentials []*vc.Credential
	proof       Proof
}

// New creates an unsigned presentation that takes ownership of creds. The
// credentials are not inspected until Verify.
func New(holder did.DID, signKey did.DIDURL, creds []*vc.Credential) (*Presentation, error) {
	const op = "vp.New"

	switch {
	case holder.IsZero():
		return nil, errs.Errorf(errs.InvalidArgument, op, "holder is required")
	case signKey.IsZero():
		return nil, errs.Errorf(errs.InvalidArgument, op, "sign key is required")
	case signKey.DID() != holder:
		return nil, errs.Errorf(errs.InvalidArgument, op, "sign key %s does not belong to %s", signKey, holder)
	case len(creds) == 0:
		return nil, errs.Errorf(errs.InvalidArgument, op, "at least one credential is required")
	}
	for i, c := range creds {
		if c == nil {
			return nil, errs.Errorf(errs.InvalidArgument, op, "credential %d is nil", i)
		}
	}

	return &Presentation{
		typ:         Type,
		holder:      holder,
		signKey:     signKey,
		created:     vc.Normalize(time.Now()),
		credentials: append([]*vc.Credential(nil), creds...),
	}, nil
}

func (p *Presentation) Type() string { return p.typ }

func (p *Presentation) Created() time.Time { return p.created }

// Holder is the DID the presentation was created for. For parsed
// presentations it is the signer.
func (p *Presentation) Holder() did.DID { return p.holder }

// SignKey is the key requested at creation.
func (p *Presentation) SignKey() did.DIDURL { return p.signKey }

// Credentials returns the embedded credentials in order.
func (p *Presentation) Credentials() []*vc.Credential {
	return append([]*vc.Credential(nil), p.credentials...)
}

// Credential returns the embedded credential whose id equals id.
func (p *Presentation) Credential(id did.DIDURL) (*vc.Credential, error) {
	for _, c := range p.credentials {
		if c.ID() == id {
			return c, nil
		}
	}
	return nil, errs.Errorf(errs.NotFound, "vp.Credential", "credential %s not in presentation", id)
}

func (p *Presentation) Proof() Proof { return p.proof }

// Signer is the DID of the proof's verification method, zero until signed.
func (p *Presentation) Signer() did.DID { return p.proof.VerificationMethod.DID() }

func (p *Presentation) VerificationMethod() did.DIDURL { return p.proof.VerificationMethod }

func (p *Presentation) Nonce() string { return p.proof.Nonce }

func (p *Presentation) Realm() string { return p.proof.Realm }

func (p *Presentation) Signature() string { return p.proof.Signature }

func (p *Presentation) IsSigned() bool { return p.proof.Signature != "" }

// Sign signs the presentation with the default public key of holder's
// resolved document. The signature covers the signing form, nonce and
// realm as three separate inputs.
func (p *Presentation) Sign(holder did.DID, resolver did.Resolver, store KeyStore, storePassword, nonce, realm string) error {
	const op = "vp.Sign"

	switch {
	case nonce == "" || realm == "":
		return errs.Errorf(errs.InvalidArgument, op, "nonce and realm are required")
	case holder.IsZero() || holder != p.holder:
		return errs.Errorf(errs.InvalidArgument, op, "holder %q does not match presentation holder %q", holder, p.holder)
	case resolver == nil || store == nil:
		return errs.Errorf(errs.InvalidArgument, op, "resolver and key store are required")
	case p.IsSigned():
		return errs.Errorf(errs.InvalidArgument, op, "presentation is already signed")
	}

	doc, err := resolver.Resolve(holder)
	if err != nil {
		return errs.New(errs.NotFound, op, fmt.Errorf("failed to resolve holder %s: %w", holder, err))
	}
	signKey, err := doc.DefaultPublicKey()
	if err != nil {
		return errs.New(errs.NotFound, op, err)
	}

	data, err := p.ToJSON(false, true)
	if err != nil {
		return errs.New(errs.SerializationError, op, err)
	}

	signature, err := store.Sign(holder, signKey, storePassword, data, []byte(nonce), []byte(realm))
	if err != nil {
		return errs.New(errs.CryptoError, op, fmt.Errorf("failed to sign presentation: %w", err))
	}

	p.proof = Proof{
		Type:               ProofType,
		VerificationMethod: signKey,
		Nonce:              nonce,
		Realm:              realm,
		Signature:          signature,
	}

	log.WithFields(log.Fields{
		"holder":      holder.String(),
		"credentials": len(p.credentials),
		"realm":       realm,
	}).Debug("signed presentation")
	return nil
}

// Verify checks, in order: every credential belongs to the signer, verifies
// and is unexpired; then the holder's signature over the signing form,
// nonce and realm. It stops at the first failure.
func (p *Presentation) Verify(resolver did.Resolver) error {
	err := p.verify(resolver)
	if err != nil {
		log.WithFields(log.Fields{
			"signer": p.Signer().String(),
			"kind":   errs.KindOf(err).String(),
		}).WithError(err).Debug("presentation verification failed")
	}
	return err
}

func (p *Presentation) verify(resolver did.Resolver) error {
	const op = "vp.Verify"

	switch {
	case len(p.credentials) == 0:
		return errs.Errorf(errs.InvalidArgument, op, "presentation has no credentials")
	case !p.IsSigned():
		return errs.Errorf(errs.InvalidArgument, op, "presentation is not signed")
	case resolver == nil:
		return errs.Errorf(errs.InvalidArgument, op, "resolver required")
	}

	signer := p.Signer()
	for _, c := range p.credentials {
		if subject := c.Subject().ID(); subject != signer {
			return errs.Errorf(errs.SubjectMismatch, op, "credential %s is about %s, not signer %s", c.ID(), subject, signer)
		}
		if err := c.Verify(resolver); err != nil {
			return errs.New(errs.CryptoError, op, fmt.Errorf("credential %s: %w", c.ID(), err))
		}
		if c.IsExpired() {
			return errs.Errorf(errs.Expired, op, "credential %s expired at %s", c.ID(), vc.FormatTime(c.ExpirationDate()))
		}
	}

	if p.proof.Type != ProofType {
		return errs.Errorf(errs.CryptoError, op, "unsupported proof type %q", p.proof.Type)
	}

	doc, err := resolver.Resolve(signer)
	if err != nil {
		return errs.New(errs.NotFound, op, fmt.Errorf("failed to resolve signer %s: %w", signer, err))
	}

	data, err := p.ToJSON(false, true)
	if err != nil {
		return errs.New(errs.SerializationError, op, err)
	}

	if err := doc.Verify(p.proof.VerificationMethod, p.proof.Signature, data, []byte(p.proof.Nonce), []byte(p.proof.Realm)); err != nil {
		return errs.New(errs.CryptoError, op, err)
	}
	return nil
}

// Package issuer binds a signer DID and one of its keys to a key store and
// mints signed credentials.
package issuer

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/credential/vc"
	"github.com/pilacorp/go-did-credential/did"
)

// KeyStore is the part of a key store an Issuer needs. Documents come from
// the store's local cache, not from network resolution.
type KeyStore interface {
	LoadDID(id did.DID) (*did.Document, error)
	ContainsPrivateKey(id did.DID, key did.DIDURL) bool
	Sign(signer did.DID, key did.DIDURL, password string, data ...[]byte) (string, error)
}

// Issuer holds copies of the signer DID and signing key. It does not keep
// the signer's document.
type Issuer struct {
	signer  did.DID
	signKey did.DIDURL
	store   KeyStore
	now     func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the source of issuance dates.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// New creates an Issuer for signer. A nil signKey selects the document's
// default public key without checking that it is an authentication key. An
// explicit signKey must be one.
func New(signer did.DID, signKey *did.DIDURL, store KeyStore, opts ...Option) (*Issuer, error) {
	const op = "issuer.New"

	if signer.IsZero() {
		return nil, errs.Errorf(errs.InvalidArgument, op, "signer DID is required")
	}
	if store == nil {
		return nil, errs.Errorf(errs.InvalidArgument, op, "key store is required")
	}

	doc, err := store.LoadDID(signer)
	if err != nil {
		return nil, errs.New(errs.NotFound, op, fmt.Errorf("failed to load document of %s: %w", signer, err))
	}

	var key did.DIDURL
	if signKey == nil {
		if key, err = doc.DefaultPublicKey(); err != nil {
			return nil, errs.New(errs.NotFound, op, err)
		}
	} else {
		key = *signKey
		if !doc.IsAuthenticationKey(key) {
			return nil, errs.New(errs.Unauthorized, op, fmt.Errorf("%w: %s", did.ErrNotAuthenticationKey, key))
		}
	}

	if !store.ContainsPrivateKey(signer, key) {
		return nil, errs.Errorf(errs.NotFound, op, "no private key for %s", key)
	}

	i := &Issuer{
		signer:  signer,
		signKey: key,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *Issuer) Signer() did.DID { return i.signer }

func (i *Issuer) SignKey() did.DIDURL { return i.signKey }

// CreateCredential issues a credential about owner, valid from now until
// expires, signed with the issuer's key.
func (i *Issuer) CreateCredential(
	owner did.DID,
	credentialID did.DIDURL,
	types []string,
	properties []vc.Property,
	expires time.Time,
	storePassword string,
) (*vc.Credential, error) {
	const op = "issuer.CreateCredential"

	now := vc.Normalize(i.now())
	switch {
	case owner.IsZero():
		return nil, errs.Errorf(errs.InvalidArgument, op, "owner is required")
	case credentialID.IsZero():
		return nil, errs.Errorf(errs.InvalidArgument, op, "credential id is required")
	case credentialID.DID() != owner:
		return nil, errs.Errorf(errs.InvalidArgument, op, "credential id %s does not belong to %s", credentialID, owner)
	case len(types) == 0:
		return nil, errs.Errorf(errs.InvalidArgument, op, "at least one type is required")
	case len(properties) == 0:
		return nil, errs.Errorf(errs.InvalidArgument, op, "at least one property is required")
	case storePassword == "":
		return nil, errs.Errorf(errs.InvalidArgument, op, "store password is required")
	case !vc.Normalize(expires).After(now):
		return nil, errs.Errorf(errs.InvalidArgument, op, "expiration %s is not in the future", vc.FormatTime(expires))
	}

	cred, err := vc.Create(vc.Contents{
		ID:             credentialID,
		Types:          types,
		Issuer:         i.signer,
		IssuanceDate:   now,
		ExpirationDate: expires,
		Subject:        owner,
		Properties:     properties,
	}, i.signKey, func(data []byte) (string, error) {
		return i.store.Sign(i.signer, i.signKey, storePassword, data)
	})
	if err != nil {
		log.WithFields(log.Fields{
			"issuer":     i.signer.String(),
			"credential": credentialID.String(),
		}).WithError(err).Warn("failed to issue credential")
		return nil, err
	}

	log.WithFields(log.Fields{
		"issuer":     i.signer.String(),
		"credential": credentialID.String(),
	}).Debug("issued credential")
	return cred, nil
}

// Package didstore is an in-memory key store: it caches DID documents,
// holds signers for their keys behind a store password and keeps the
// credentials a holder has collected.
package didstore

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/pilacorp/go-did-credential/credential/common/crypto"
	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/credential/vc"
	"github.com/pilacorp/go-did-credential/did"
	"github.com/pilacorp/go-did-credential/did/signer"
)

var ErrWrongPassword = errors.New("wrong store password")

// Store manages documents, keys and credentials in a thread-safe manner.
type Store struct {
	password [sha256.Size]byte

	mu          sync.RWMutex
	documents   map[did.DID]*did.Document
	keys        map[did.DIDURL]signer.Signer
	credentials map[did.DIDURL][]byte
	meta        map[did.DIDURL]*CredentialMeta
}

// CredentialMeta is wallet bookkeeping kept beside a stored credential. It is
// never part of the signed credential.
type CredentialMeta struct {
	Alias string
	Extra map[string]string
}

func (m *CredentialMeta) clone() CredentialMeta {
	c := CredentialMeta{Alias: m.Alias}
	if len(m.Extra) > 0 {
		c.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// New initializes an empty store protected by password.
func New(password string) (*Store, error) {
	if password == "" {
		return nil, errs.Errorf(errs.InvalidArgument, "didstore.New", "password cannot be empty")
	}
	return &Store{
		password:    sha256.Sum256([]byte(password)),
		documents:   make(map[did.DID]*did.Document),
		keys:        make(map[did.DIDURL]signer.Signer),
		credentials: make(map[did.DIDURL][]byte),
		meta:        make(map[did.DIDURL]*CredentialMeta),
	}, nil
}

func (s *Store) checkPassword(password string) bool {
	sum := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(sum[:], s.password[:]) == 1
}

// StoreDID caches a copy of doc, replacing an older copy.
func (s *Store) StoreDID(doc *did.Document) error {
	if doc == nil {
		return errs.Errorf(errs.InvalidArgument, "didstore.StoreDID", "document cannot be nil")
	}
	subject, err := doc.Subject()
	if err != nil {
		return errs.New(errs.InvalidArgument, "didstore.StoreDID", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[subject] = doc.Clone()
	return nil
}

// LoadDID returns a copy of the cached document.
func (s *Store) LoadDID(id did.DID) (*did.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, errs.Errorf(errs.NotFound, "didstore.LoadDID", "document for %s not found", id)
	}
	return doc.Clone(), nil
}

// Resolve serves the local cache as a did.Resolver.
func (s *Store) Resolve(id did.DID) (*did.Document, error) {
	return s.LoadDID(id)
}

// StorePrivateKey registers the signer for key. The document of id must be
// stored already and key's public key must match the signer.
func (s *Store) StorePrivateKey(id did.DID, key did.DIDURL, sk signer.Signer) error {
	const op = "didstore.StorePrivateKey"

	if sk == nil {
		return errs.Errorf(errs.InvalidArgument, op, "signer cannot be nil")
	}
	if key.DID() != id {
		return errs.Errorf(errs.InvalidArgument, op, "key %s does not belong to %s", key, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return errs.Errorf(errs.NotFound, op, "document for %s not found", id)
	}
	pub, err := doc.PublicKey(key)
	if err != nil {
		return errs.New(errs.NotFound, op, err)
	}
	if !crypto.SamePublicKey(pub, sk.PublicKey()) {
		return errs.Errorf(errs.InvalidArgument, op, "signer does not match public key %s", key)
	}

	s.keys[key] = sk
	return nil
}

// ContainsPrivateKey reports whether a signer is registered for key of id.
func (s *Store) ContainsPrivateKey(id did.DID, key did.DIDURL) bool {
	if key.DID() != id {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Sign signs the concatenation of data with key of signerID and returns the
// hex encoded [R || S] signature.
func (s *Store) Sign(signerID did.DID, key did.DIDURL, password string, data ...[]byte) (string, error) {
	const op = "didstore.Sign"

	if !s.checkPassword(password) {
		return "", errs.New(errs.CryptoError, op, ErrWrongPassword)
	}
	if key.DID() != signerID {
		return "", errs.Errorf(errs.InvalidArgument, op, "key %s does not belong to %s", key, signerID)
	}

	s.mu.RLock()
	sk, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return "", errs.Errorf(errs.NotFound, op, "private key %s not found", key)
	}

	sig, err := sk.Sign(crypto.Digest(data...))
	if err != nil {
		log.WithFields(log.Fields{"key": key.String()}).WithError(err).Error("signer failed")
		return "", errs.New(errs.CryptoError, op, err)
	}
	if len(sig) < crypto.SignatureBytes {
		return "", errs.Errorf(errs.CryptoError, op, "invalid signature length %d", len(sig))
	}

	return hex.EncodeToString(sig[:crypto.SignatureBytes]), nil
}

// StoreCredential keeps the full form of cred, replacing one with the same id.
// Metadata of a replaced credential is kept.
func (s *Store) StoreCredential(cred *vc.Credential) error {
	const op = "didstore.StoreCredential"

	if cred == nil {
		return errs.Errorf(errs.InvalidArgument, op, "credential cannot be nil")
	}
	data, err := cred.ToJSON(false, false)
	if err != nil {
		return errs.New(errs.SerializationError, op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[cred.ID()] = data
	return nil
}

// LoadCredential returns an independent copy of the stored credential.
func (s *Store) LoadCredential(id did.DIDURL) (*vc.Credential, error) {
	s.mu.RLock()
	data, ok := s.credentials[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.Errorf(errs.NotFound, "didstore.LoadCredential", "credential %s not found", id)
	}

	cred, err := vc.FromJSON(data, id.DID())
	if err != nil {
		return nil, fmt.Errorf("failed to load credential %s: %w", id, err)
	}
	return cred, nil
}

// ListCredentials returns the ids of the credentials owned by owner, sorted.
func (s *Store) ListCredentials(owner did.DID) []did.DIDURL {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]did.DIDURL, 0)
	for id := range s.credentials {
		if id.DID() == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// DeleteCredential removes a credential by id.
func (s *Store) DeleteCredential(id did.DIDURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[id]; !ok {
		return errs.Errorf(errs.NotFound, "didstore.DeleteCredential", "credential %s not found", id)
	}
	delete(s.credentials, id)
	delete(s.meta, id)
	return nil
}

// ContainsCredential reports whether a credential with id is stored.
func (s *Store) ContainsCredential(id did.DIDURL) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.credentials[id]
	return ok
}

// CredentialMeta returns a copy of the metadata of a stored credential.
func (s *Store) CredentialMeta(id did.DIDURL) (CredentialMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.credentials[id]; !ok {
		return CredentialMeta{}, errs.Errorf(errs.NotFound, "didstore.CredentialMeta", "credential %s not found", id)
	}
	if m, ok := s.meta[id]; ok {
		return m.clone(), nil
	}
	return CredentialMeta{}, nil
}

// SetCredentialAlias names a stored credential.
func (s *Store) SetCredentialAlias(id did.DIDURL, alias string) error {
	if alias == "" {
		return errs.Errorf(errs.InvalidArgument, "didstore.SetCredentialAlias", "alias cannot be empty")
	}
	return s.updateMeta("didstore.SetCredentialAlias", id, func(m *CredentialMeta) {
		m.Alias = alias
	})
}

// UnsetCredentialAlias clears the alias of a stored credential.
func (s *Store) UnsetCredentialAlias(id did.DIDURL) error {
	return s.updateMeta("didstore.UnsetCredentialAlias", id, func(m *CredentialMeta) {
		m.Alias = ""
	})
}

// SetCredentialExtra records a named value for a stored credential. An empty
// value removes the name.
func (s *Store) SetCredentialExtra(id did.DIDURL, name, value string) error {
	const op = "didstore.SetCredentialExtra"
	if name == "" {
		return errs.Errorf(errs.InvalidArgument, op, "extra name cannot be empty")
	}
	return s.updateMeta(op, id, func(m *CredentialMeta) {
		if value == "" {
			delete(m.Extra, name)
			return
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[name] = value
	})
}

func (s *Store) updateMeta(op string, id did.DIDURL, update func(m *CredentialMeta)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[id]; !ok {
		return errs.Errorf(errs.NotFound, op, "credential %s not found", id)
	}
	m, ok := s.meta[id]
	if !ok {
		m = &CredentialMeta{}
		s.meta[id] = m
	}
	update(m)
	return nil
}

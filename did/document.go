package did

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"

	"github.com/pilacorp/go-did-credential/credential/common/crypto"
)

// VerificationMethodType is the type assigned to keys added by this package.
const VerificationMethodType = "EcdsaSecp256k1VerificationKey2019"

var (
	ErrKeyNotFound          = errors.New("key not found in DID document")
	ErrNoDefaultKey         = errors.New("DID document has no default public key")
	ErrNotAuthenticationKey = errors.New("key is not an authentication key")
)

// Resolver maps a DID to its current document.
type Resolver interface {
	Resolve(id DID) (*Document, error)
}

// Document is a resolved DID document.
type Document struct {
	Context            []string               `json:"@context,omitempty"`
	ID                 string                 `json:"id"`
	Controller         string                 `json:"controller,omitempty"`
	VerificationMethod []VerificationMethod   `json:"verificationMethod"`
	Authentication     []string               `json:"authentication"`
	AssertionMethod    []string               `json:"assertionMethod,omitempty"`
	DocumentMetadata   map[string]interface{} `json:"didDocumentMetadata,omitempty"`
}

type VerificationMethod struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Controller      string `json:"controller"`
	PublicKeyHex    string `json:"publicKeyHex,omitempty"`
	PublicKeyBase58 string `json:"publicKeyBase58,omitempty"`
}

// PublicKeyBytes decodes whichever key encoding the method carries.
func (vm VerificationMethod) PublicKeyBytes() ([]byte, error) {
	switch {
	case vm.PublicKeyHex != "":
		b, err := hex.DecodeString(strings.TrimPrefix(vm.PublicKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to decode publicKeyHex of %s: %w", vm.ID, err)
		}
		return b, nil
	case vm.PublicKeyBase58 != "":
		b := base58.Decode(vm.PublicKeyBase58)
		if len(b) == 0 {
			return nil, fmt.Errorf("failed to decode publicKeyBase58 of %s", vm.ID)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("verification method %s has no public key", vm.ID)
	}
}

// NewDocument returns a document for subject whose primary key is both a
// verification method and an authentication key.
func NewDocument(subject DID, publicKeyHex string) (*Document, error) {
	if subject.IsZero() {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidDID)
	}
	doc := &Document{
		Context: []string{"https://www.w3.org/ns/did/v1"},
		ID:      subject.String(),
	}
	if err := doc.AddAuthenticationKey(DefaultKeyFragment, publicKeyHex); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseDocument decodes a JSON DID document and checks its id.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DID document JSON: %w", err)
	}
	if _, err := doc.Subject(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Subject returns the DID the document describes.
func (d *Document) Subject() (DID, error) {
	id, err := Parse(d.ID)
	if err != nil {
		return DID{}, fmt.Errorf("invalid document id: %w", err)
	}
	return id, nil
}

// AddPublicKey adds a verification method that is not an authentication key.
func (d *Document) AddPublicKey(fragment, publicKeyHex string) error {
	_, err := d.addKey(fragment, publicKeyHex)
	return err
}

// AddAuthenticationKey adds a verification method and lists it in authentication.
func (d *Document) AddAuthenticationKey(fragment, publicKeyHex string) error {
	id, err := d.addKey(fragment, publicKeyHex)
	if err != nil {
		return err
	}
	d.Authentication = append(d.Authentication, id.String())
	return nil
}

func (d *Document) addKey(fragment, publicKeyHex string) (DIDURL, error) {
	subject, err := d.Subject()
	if err != nil {
		return DIDURL{}, err
	}
	if fragment == "" {
		return DIDURL{}, fmt.Errorf("%w: empty key fragment", ErrInvalidDIDURL)
	}
	id, err := NewURL(subject, fragment)
	if err != nil {
		return DIDURL{}, err
	}
	if _, err := d.method(id); err == nil {
		return DIDURL{}, fmt.Errorf("key %s already exists", id)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return DIDURL{}, fmt.Errorf("failed to decode public key: %w", err)
	}
	if _, err := crypto.ParsePublicKey(raw); err != nil {
		return DIDURL{}, err
	}

	d.VerificationMethod = append(d.VerificationMethod, VerificationMethod{
		ID:           id.String(),
		Type:         VerificationMethodType,
		Controller:   subject.String(),
		PublicKeyHex: hex.EncodeToString(raw),
	})
	return id, nil
}

// DefaultPublicKey is the first verification method controlled by the subject.
func (d *Document) DefaultPublicKey() (DIDURL, error) {
	subject, err := d.Subject()
	if err != nil {
		return DIDURL{}, err
	}
	for _, vm := range d.VerificationMethod {
		id, err := ParseURL(vm.ID, subject)
		if err != nil {
			continue
		}
		controller := vm.Controller
		if controller == "" || controller == subject.String() {
			if id.DID() == subject {
				return id, nil
			}
		}
	}
	return DIDURL{}, ErrNoDefaultKey
}

// IsAuthenticationKey reports whether key is listed in authentication.
func (d *Document) IsAuthenticationKey(key DIDURL) bool {
	subject, err := d.Subject()
	if err != nil {
		return false
	}
	for _, ref := range d.Authentication {
		id, err := ParseURL(ref, subject)
		if err == nil && id == key {
			return true
		}
	}
	return false
}

// PublicKey returns the raw public key of the verification method key.
func (d *Document) PublicKey(key DIDURL) ([]byte, error) {
	vm, err := d.method(key)
	if err != nil {
		return nil, err
	}
	return vm.PublicKeyBytes()
}

func (d *Document) method(key DIDURL) (VerificationMethod, error) {
	subject, err := d.Subject()
	if err != nil {
		return VerificationMethod{}, err
	}
	for _, vm := range d.VerificationMethod {
		id, err := ParseURL(vm.ID, subject)
		if err == nil && id == key {
			return vm, nil
		}
	}
	return VerificationMethod{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
}

// Verify checks signatureHex over the concatenation of data with key.
func (d *Document) Verify(key DIDURL, signatureHex string, data ...[]byte) error {
	pub, err := d.PublicKey(key)
	if err != nil {
		return err
	}
	return crypto.Verify(pub, signatureHex, data...)
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.Context = append([]string(nil), d.Context...)
	c.VerificationMethod = append([]VerificationMethod(nil), d.VerificationMethod...)
	c.Authentication = append([]string(nil), d.Authentication...)
	c.AssertionMethod = append([]string(nil), d.AssertionMethod...)
	if d.DocumentMetadata != nil {
		c.DocumentMetadata = make(map[string]interface{}, len(d.DocumentMetadata))
		for k, v := range d.DocumentMetadata {
			c.DocumentMetadata[k] = v
		}
	}
	return &c
}

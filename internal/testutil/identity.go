// Package testutil builds throwaway identities for package tests.
package testutil

import (
	"encoding/hex"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-credential/credential/common/crypto"
	"github.com/pilacorp/go-did-credential/did"
	"github.com/pilacorp/go-did-credential/did/signer"
)

// Identity is a DID with a freshly generated primary key.
type Identity struct {
	DID        did.DID
	Key        did.DIDURL
	PrivateKey string
	Signer     signer.Signer
	Document   *did.Document
}

// NewIdentity generates a key pair for id ("did:elastos:abc") and a document
// listing it as the primary authentication key.
func NewIdentity(t testing.TB, id string) *Identity {
	t.Helper()

	subject, err := did.Parse(id)
	require.NoError(t, err)

	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	privHex := hex.EncodeToString(ethcrypto.FromECDSA(key))

	doc, err := did.NewDocument(subject, crypto.CompressedPublicKeyHex(&key.PublicKey))
	require.NoError(t, err)

	primary, err := doc.DefaultPublicKey()
	require.NoError(t, err)

	s, err := signer.NewDefaultSigner(privHex)
	require.NoError(t, err)

	return &Identity{
		DID:        subject,
		Key:        primary,
		PrivateKey: privHex,
		Signer:     s,
		Document:   doc,
	}
}

// Sign signs the concatenation of data with the primary key.
func (i *Identity) Sign(data ...[]byte) (string, error) {
	return crypto.Sign(i.PrivateKey, data...)
}

// URL returns the DID URL of fragment inside the identity.
func (i *Identity) URL(t testing.TB, fragment string) did.DIDURL {
	t.Helper()
	u, err := did.NewURL(i.DID, fragment)
	require.NoError(t, err)
	return u
}

package didstore

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-credential/credential/common/crypto"
	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/credential/vc"
	"github.com/pilacorp/go-did-credential/did"
	"github.com/pilacorp/go-did-credential/internal/testutil"
)

const password = "passw0rd"

func newStore(t *testing.T, ids ...*testutil.Identity) *Store {
	t.Helper()
	s, err := New(password)
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, s.StoreDID(id.Document))
		require.NoError(t, s.StorePrivateKey(id.DID, id.Key, id.Signer))
	}
	return s
}

func TestNew(t *testing.T) {
	_, err := New("")
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

func TestDocuments(t *testing.T) {
	alice := testutil.NewIdentity(t, "did:elastos:alice")
	s := newStore(t, alice)

	doc, err := s.LoadDID(alice.DID)
	require.NoError(t, err)
	assert.Equal(t, alice.Document, doc)

	doc.Authentication = nil
	again, err := s.Resolve(alice.DID)
	require.NoError(t, err)
	assert.NotEmpty(t, again.Authentication)

	_, err = s.LoadDID(did.MustParse("did:elastos:bob"))
	assert.True(t, errs.Is(err, errs.NotFound))

	assert.True(t, errs.Is(s.StoreDID(nil), errs.InvalidArgument))
	assert.True(t, errs.Is(s.StoreDID(&did.Document{ID: "x"}), errs.InvalidArgument))
}

func TestStorePrivateKey(t *testing.T) {
	alice := testutil.NewIdentity(t, "did:elastos:alice")
	bob := testutil.NewIdentity(t, "did:elastos:bob")
	s := newStore(t, alice)

	assert.True(t, s.ContainsPrivateKey(alice.DID, alice.Key))
	assert.False(t, s.ContainsPrivateKey(bob.DID, alice.Key))

	err := s.StorePrivateKey(alice.DID, alice.Key, bob.Signer)
	assert.True(t, errs.Is(err, errs.InvalidArgument), "mismatched signer")

	err = s.StorePrivateKey(bob.DID, bob.Key, bob.Signer)
	assert.True(t, errs.Is(err, errs.NotFound), "document not stored")

	err = s.StorePrivateKey(alice.DID, bob.Key, bob.Signer)
	assert.True(t, errs.Is(err, errs.InvalidArgument))

	err = s.StorePrivateKey(alice.DID, alice.URL(t, "missing"), alice.Signer)
	assert.True(t, errs.Is(err, errs.NotFound))

	assert.True(t, errs.Is(s.StorePrivateKey(alice.DID, alice.Key, nil), errs.InvalidArgument))
}

func TestSign(t *testing.T) {
	alice := testutil.NewIdentity(t, "did:elastos:alice")
	s := newStore(t, alice)

	sig, err := s.Sign(alice.DID, alice.Key, password, []byte("json"), []byte("nonce"), []byte("realm"))
	require.NoError(t, err)
	assert.Len(t, sig, 2*crypto.SignatureBytes)
	assert.NoError(t, alice.Document.Verify(alice.Key, sig, []byte("jsonnoncerealm")))

	_, err = s.Sign(alice.DID, alice.Key, "wrong", []byte("x"))
	assert.True(t, errs.Is(err, errs.CryptoError))
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = s.Sign(alice.DID, alice.URL(t, "other"), password, []byte("x"))
	assert.True(t, errs.Is(err, errs.NotFound))

	_, err = s.Sign(did.MustParse("did:elastos:bob"), alice.Key, password, []byte("x"))
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}

type failingSigner struct{ pub []byte }

func (f failingSigner) Sign([]byte) ([]byte, error) { return nil, errors.New("device locked") }
func (f failingSigner) PublicKey() []byte           { return f.pub }

func TestSignerFailure(t *testing.T) {
	alice := testutil.NewIdentity(t, "did:elastos:alice")
	s := newStore(t)
	require.NoError(t, s.StoreDID(alice.Document))
	require.NoError(t, s.StorePrivateKey(alice.DID, alice.Key, failingSigner{pub: alice.Signer.PublicKey()}))

	_, err := s.Sign(alice.DID, alice.Key, password, []byte("x"))
	assert.True(t, errs.Is(err, errs.CryptoError))
	assert.ErrorContains(t, err, "device locked")
}

func TestConcurrentSign(t *testing.T) {
	alice := testutil.NewIdentity(t, "did:elastos:alice")
	s := newStore(t, alice)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sign(alice.DID, alice.Key, password, []byte("payload"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestCredentials(t *testing.T) {
	alice := testutil.NewIdentity(t, "did:elastos:alice")
	s := newStore(t, alice)

	now := time.Now()
	var issued []*vc.Credential
	for _, fragment := range []string{"b", "a"} {
		cred, err := vc.Create(vc.Contents{
			ID:             alice.URL(t, fragment),
			Types:          []string{"SelfProclaimedCredential"},
			Issuer:         alice.DID,
			IssuanceDate:   now,
			ExpirationDate: now.Add(time.Hour),
			Subject:        alice.DID,
			Properties:     []vc.Property{{Key: "name", Value: "Alice"}},
		}, alice.Key, func(data []byte) (string, error) {
			return s.Sign(alice.DID, alice.Key, password, data)
		})
		require.NoError(t, err)
		require.NoError(t, s.StoreCredential(cred))
		issued = append(issued, cred)
	}

	assert.Equal(t, []did.DIDURL{alice.URL(t, "a"), alice.URL(t, "b")}, s.ListCredentials(alice.DID))
	assert.Empty(t, s.ListCredentials(did.MustParse("did:elastos:bob")))

	loaded, err := s.LoadCredential(alice.URL(t, "b"))
	require.NoError(t, err)
	assert.Equal(t, issued[0], loaded)
	assert.NotSame(t, issued[0], loaded)
	assert.NoError(t, loaded.Verify(s))

	require.NoError(t, s.DeleteCredential(alice.URL(t, "b")))
	_, err = s.LoadCredential(alice.URL(t, "b"))
	assert.True(t, errs.Is(err, errs.NotFound))
	assert.True(t, errs.Is(s.DeleteCredential(alice.URL(t, "b")), errs.NotFound))
	assert.True(t, errs.Is(s.StoreCredential(nil), errs.InvalidArgument))
}

func TestCredentialMeta(t *testing.T) {
	alice := testutil.NewIdentity(t, "did:elastos:alice")
	s := newStore(t, alice)

	now := time.Now()
	issue := func(value string) *vc.Credential {
		cred, err := vc.Create(vc.Contents{
			ID:             alice.URL(t, "profile"),
			Types:          []string{"SelfProclaimedCredential"},
			Issuer:         alice.DID,
			IssuanceDate:   now,
			ExpirationDate: now.Add(time.Hour),
			Subject:        alice.DID,
			Properties:     []vc.Property{{Key: "name", Value: value}},
		}, alice.Key, func(data []byte) (string, error) {
			return s.Sign(alice.DID, alice.Key, password, data)
		})
		require.NoError(t, err)
		return cred
	}
	id := alice.URL(t, "profile")

	assert.False(t, s.ContainsCredential(id))
	assert.True(t, errs.Is(s.SetCredentialAlias(id, "me"), errs.NotFound))
	assert.True(t, errs.Is(s.SetCredentialExtra(id, "color", "blue"), errs.NotFound))
	_, err := s.CredentialMeta(id)
	assert.True(t, errs.Is(err, errs.NotFound))

	require.NoError(t, s.StoreCredential(issue("Alice")))
	assert.True(t, s.ContainsCredential(id))

	meta, err := s.CredentialMeta(id)
	require.NoError(t, err)
	assert.Equal(t, CredentialMeta{}, meta)

	require.NoError(t, s.SetCredentialAlias(id, "me"))
	require.NoError(t, s.SetCredentialExtra(id, "color", "blue"))
	require.NoError(t, s.SetCredentialExtra(id, "shape", "round"))
	assert.True(t, errs.Is(s.SetCredentialAlias(id, ""), errs.InvalidArgument))
	assert.True(t, errs.Is(s.SetCredentialExtra(id, "", "x"), errs.InvalidArgument))

	meta, err = s.CredentialMeta(id)
	require.NoError(t, err)
	assert.Equal(t, "me", meta.Alias)
	assert.Equal(t, map[string]string{"color": "blue", "shape": "round"}, meta.Extra)

	// returned metadata is a copy
	meta.Extra["color"] = "red"
	meta, err = s.CredentialMeta(id)
	require.NoError(t, err)
	assert.Equal(t, "blue", meta.Extra["color"])

	// replacing the credential keeps its metadata
	require.NoError(t, s.StoreCredential(issue("Alice Smith")))
	meta, err = s.CredentialMeta(id)
	require.NoError(t, err)
	assert.Equal(t, "me", meta.Alias)

	require.NoError(t, s.SetCredentialExtra(id, "shape", ""))
	require.NoError(t, s.UnsetCredentialAlias(id))
	meta, err = s.CredentialMeta(id)
	require.NoError(t, err)
	assert.Empty(t, meta.Alias)
	assert.Equal(t, map[string]string{"color": "blue"}, meta.Extra)

	require.NoError(t, s.DeleteCredential(id))
	assert.False(t, s.ContainsCredential(id))
	require.NoError(t, s.StoreCredential(issue("Alice")))
	meta, err = s.CredentialMeta(id)
	require.NoError(t, err)
	assert.Equal(t, CredentialMeta{}, meta)
}

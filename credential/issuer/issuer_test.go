package issuer_test

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-did-credential/credential/common/crypto"
	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/credential/issuer"
	"github.com/pilacorp/go-did-credential/credential/vc"
	"github.com/pilacorp/go-did-credential/did"
	"github.com/pilacorp/go-did-credential/didstore"
	"github.com/pilacorp/go-did-credential/internal/testutil"
)

const password = "passw0rd"

func setup(t *testing.T, id string) (*testutil.Identity, *didstore.Store) {
	t.Helper()
	identity := testutil.NewIdentity(t, id)
	store, err := didstore.New(password)
	require.NoError(t, err)
	require.NoError(t, store.StoreDID(identity.Document))
	require.NoError(t, store.StorePrivateKey(identity.DID, identity.Key, identity.Signer))
	return identity, store
}

func TestSelfProclaimedCredential(t *testing.T) {
	abc, store := setup(t, "did:elastos:abc")

	iss, err := issuer.New(abc.DID, nil, store)
	require.NoError(t, err)
	assert.Equal(t, abc.DID, iss.Signer())
	assert.Equal(t, abc.Key, iss.SignKey())

	id := abc.URL(t, "profile")
	cred, err := iss.CreateCredential(abc.DID, id, []string{"SelfProclaimedCredential"},
		[]vc.Property{{Key: "name", Value: "John"}}, time.Now().Add(3600*time.Second), password)
	require.NoError(t, err)

	sig := cred.Proof().Signature
	assert.Len(t, sig, 2*crypto.SignatureBytes)
	_, err = hex.DecodeString(sig)
	assert.NoError(t, err)

	assert.Equal(t, vc.ProofType, cred.Proof().Type)
	assert.Equal(t, abc.Key, cred.Proof().VerificationMethod)
	assert.Equal(t, abc.DID, cred.Issuer())
	assert.True(t, cred.IsSelfProclaimed())
	assert.NoError(t, cred.Verify(store))
	assert.False(t, cred.IsExpired())
}

func TestIssuedToAnotherSubject(t *testing.T) {
	university, store := setup(t, "did:elastos:university")
	student := did.MustParse("did:elastos:student")

	now := time.Date(2025, 1, 1, 12, 0, 0, 500, time.UTC)
	iss, err := issuer.New(university.DID, &university.Key, store, issuer.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	id, err := vc.NewID(student)
	require.NoError(t, err)

	cred, err := iss.CreateCredential(student, id, []string{"DegreeCredential", "EducationCredential"},
		[]vc.Property{{Key: "degree", Value: "BSc"}, {Key: "school", Value: "MIT"}}, now.Add(24*time.Hour), password)
	require.NoError(t, err)

	assert.Equal(t, now.Truncate(time.Second), cred.IssuanceDate())
	assert.Equal(t, []string{"DegreeCredential", "EducationCredential"}, cred.Types())
	assert.Equal(t, student, cred.Subject().ID())
	assert.False(t, cred.IsSelfProclaimed())
	assert.NoError(t, cred.Verify(store), "verification resolves the issuer, not the subject")
}

func TestNew(t *testing.T) {
	abc, store := setup(t, "did:elastos:abc")
	spare := testutil.NewIdentity(t, "did:elastos:spare")

	// A key present in the document but not listed for authentication.
	doc := abc.Document.Clone()
	require.NoError(t, doc.AddPublicKey("backup", spare.Document.VerificationMethod[0].PublicKeyHex))
	// A second authentication key without private key material.
	require.NoError(t, doc.AddAuthenticationKey("auth2", spare.Document.VerificationMethod[0].PublicKeyHex))
	require.NoError(t, store.StoreDID(doc))

	backup := abc.URL(t, "backup")
	auth2 := abc.URL(t, "auth2")
	other := spare.Key

	tests := []struct {
		name   string
		signer did.DID
		key    *did.DIDURL
		store  issuer.KeyStore
		kind   errs.Kind
	}{
		{"zero signer", did.DID{}, nil, store, errs.InvalidArgument},
		{"nil store", abc.DID, nil, nil, errs.InvalidArgument},
		{"unknown signer", did.MustParse("did:elastos:ghost"), nil, store, errs.NotFound},
		{"non authentication key", abc.DID, &backup, store, errs.Unauthorized},
		{"key of another DID", abc.DID, &other, store, errs.Unauthorized},
		{"missing private key", abc.DID, &auth2, store, errs.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss, err := issuer.New(tt.signer, tt.key, tt.store)
			assert.Nil(t, iss)
			assert.Equal(t, tt.kind, errs.KindOf(err), "got %v", err)
		})
	}
}

func TestDefaultKeyIsNotAuthenticationChecked(t *testing.T) {
	abc := testutil.NewIdentity(t, "did:elastos:abc")

	// Default key listed only as a verification method.
	doc := abc.Document.Clone()
	doc.Authentication = nil

	store, err := didstore.New(password)
	require.NoError(t, err)
	require.NoError(t, store.StoreDID(doc))
	require.NoError(t, store.StorePrivateKey(abc.DID, abc.Key, abc.Signer))

	iss, err := issuer.New(abc.DID, nil, store)
	require.NoError(t, err)
	assert.Equal(t, abc.Key, iss.SignKey())

	_, err = issuer.New(abc.DID, &abc.Key, store)
	assert.True(t, errs.Is(err, errs.Unauthorized))
}

func TestCreateCredentialValidation(t *testing.T) {
	abc, store := setup(t, "did:elastos:abc")
	iss, err := issuer.New(abc.DID, nil, store)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	props := []vc.Property{{Key: "name", Value: "John"}}
	types := []string{"SelfProclaimedCredential"}
	id := abc.URL(t, "profile")

	tests := []struct {
		name     string
		owner    did.DID
		id       did.DIDURL
		types    []string
		props    []vc.Property
		expires  time.Time
		password string
	}{
		{"zero owner", did.DID{}, id, types, props, future, password},
		{"zero id", abc.DID, did.DIDURL{}, types, props, future, password},
		{"id of another owner", did.MustParse("did:elastos:xyz"), id, types, props, future, password},
		{"no types", abc.DID, id, nil, props, future, password},
		{"empty type", abc.DID, id, []string{""}, props, future, password},
		{"no properties", abc.DID, id, types, nil, future, password},
		{"empty property value", abc.DID, id, types, []vc.Property{{Key: "name"}}, future, password},
		{"past expiration", abc.DID, id, types, props, time.Now().Add(-time.Minute), password},
		{"empty password", abc.DID, id, types, props, future, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := iss.CreateCredential(tt.owner, tt.id, tt.types, tt.props, tt.expires, tt.password)
			assert.Nil(t, cred)
			assert.True(t, errs.Is(err, errs.InvalidArgument), "got %v", err)
		})
	}
}

func TestCreateCredentialWrongPassword(t *testing.T) {
	abc, store := setup(t, "did:elastos:abc")
	iss, err := issuer.New(abc.DID, nil, store)
	require.NoError(t, err)

	cred, err := iss.CreateCredential(abc.DID, abc.URL(t, "profile"), []string{"SelfProclaimedCredential"},
		[]vc.Property{{Key: "name", Value: "John"}}, time.Now().Add(time.Hour), "wrong")
	assert.Nil(t, cred)
	assert.True(t, errs.Is(err, errs.CryptoError))
	assert.ErrorIs(t, err, didstore.ErrWrongPassword)
}

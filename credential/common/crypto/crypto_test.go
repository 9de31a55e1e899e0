package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	pub := crypto.CompressPubkey(&key.PublicKey)

	sig, err := Sign(privHex, []byte("payload"), []byte("123456"), []byte("example.com"))
	require.NoError(t, err)
	assert.Len(t, sig, SignatureBytes*2)

	// Parts are concatenated before hashing.
	assert.NoError(t, Verify(pub, sig, []byte("payload123456example.com")))
	assert.NoError(t, Verify(pub, sig, []byte("payload"), []byte("123456"), []byte("example.com")))
	assert.ErrorIs(t, Verify(pub, sig, []byte("payload"), []byte("123456"), []byte("example.org")), ErrInvalidSignature)

	uncompressed := crypto.FromECDSAPub(&key.PublicKey)
	assert.NoError(t, Verify(uncompressed, sig, []byte("payload123456example.com")))
}

func TestSignWith0xPrefix(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign("0x"+hex.EncodeToString(crypto.FromECDSA(key)), []byte("m"))
	require.NoError(t, err)
	assert.NoError(t, Verify(crypto.CompressPubkey(&key.PublicKey), sig, []byte("m")))
}

func TestVerifyRejectsNonCanonicalEncodings(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.CompressPubkey(&key.PublicKey)

	full, err := crypto.Sign(Digest([]byte("m")), key)
	require.NoError(t, err)
	require.Len(t, full, 65)

	canonical := hex.EncodeToString(full[:SignatureBytes])
	require.NoError(t, Verify(pub, canonical, []byte("m")))

	tests := []struct {
		name   string
		sigHex string
	}{
		{"recovery byte", hex.EncodeToString(full)},
		{"appended byte", canonical + "ff"},
		{"uppercase", strings.ToUpper(canonical)},
		{"one uppercase letter", upperFirstLetter(canonical)},
		{"0x prefix", "0x" + canonical[2:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Verify(pub, tt.sigHex, []byte("m")), ErrMalformedSignature)
			assert.False(t, IsSignatureHex(tt.sigHex))
		})
	}
	assert.True(t, IsSignatureHex(canonical))
}

func upperFirstLetter(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
			break
		}
	}
	return string(b)
}

func TestVerifyRejects(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pub := crypto.CompressPubkey(&key.PublicKey)

	sig, err := SignDigest(key, Digest([]byte("m")))
	require.NoError(t, err)

	flipped := append([]byte(nil), sig...)
	flipped[10] ^= 0x01

	tests := []struct {
		name   string
		pub    []byte
		sigHex string
	}{
		{"not hex", pub, "zz"},
		{"short", pub, hex.EncodeToString(sig[:32])},
		{"flipped byte", pub, hex.EncodeToString(flipped)},
		{"bad key", []byte{0x02, 0x01}, hex.EncodeToString(sig)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Verify(tt.pub, tt.sigHex, []byte("m")))
		})
	}
}

func TestSignInvalidKey(t *testing.T) {
	_, err := Sign("not-a-key", []byte("m"))
	assert.Error(t, err)
}

func TestSamePublicKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	assert.True(t, SamePublicKey(crypto.CompressPubkey(&key.PublicKey), crypto.FromECDSAPub(&key.PublicKey)))
	assert.False(t, SamePublicKey(crypto.CompressPubkey(&key.PublicKey), []byte{1}))
	assert.Equal(t, hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey)), CompressedPublicKeyHex(&key.PublicKey))
}

package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureBytes is the length of an encoded proof signature: R || S.
const SignatureBytes = 64

var (
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrMalformedSignature = errors.New("malformed signature")
	ErrInvalidPublicKey   = errors.New("invalid secp256k1 public key")
)

// Digest hashes the concatenation of the given parts with SHA-256.
func Digest(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// Sign signs the concatenation of data with the hex encoded secp256k1
// private key and returns the hex encoded R || S signature.
func Sign(hexPrivateKey string, data ...[]byte) (string, error) {
	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexPrivateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}

	sig, err := SignDigest(privKey, Digest(data...))
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(sig), nil
}

// SignDigest signs a 32 byte digest, dropping the recovery byte.
func SignDigest(privKey *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	signature, err := crypto.Sign(digest, privKey)
	if err != nil {
		return nil, fmt.Errorf("sign error: %w", err)
	}

	return signature[:SignatureBytes], nil
}

// IsSignatureHex reports whether s is the canonical encoding of a proof
// signature: exactly 2*SignatureBytes lowercase hex characters.
func IsSignatureHex(s string) bool {
	if len(s) != 2*SignatureBytes {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Verify checks a hex encoded [R || S] signature over the concatenation of
// data. Any other encoding of the same signature is rejected.
func Verify(publicKey []byte, signatureHex string, data ...[]byte) error {
	if !IsSignatureHex(signatureHex) {
		return fmt.Errorf("%w: want %d lowercase hex characters", ErrMalformedSignature, 2*SignatureBytes)
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("failed to decode signature: %w", err)
	}

	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return err
	}

	if !crypto.VerifySignature(pub.SerializeCompressed(), Digest(data...), sig) {
		return ErrInvalidSignature
	}

	return nil
}

// ParsePublicKey accepts a compressed (33 byte) or uncompressed (65 byte)
// secp256k1 public key.
func ParsePublicKey(publicKey []byte) (*btcec.PublicKey, error) {
	pub, err := btcec.ParsePubKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	return pub, nil
}

// CompressedPublicKeyHex returns the hex of the 33 byte compressed form of pub.
func CompressedPublicKeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.CompressPubkey(pub))
}

// SamePublicKey reports whether two encodings denote the same key.
func SamePublicKey(a, b []byte) bool {
	pa, err := ParsePublicKey(a)
	if err != nil {
		return false
	}
	pb, err := ParsePublicKey(b)
	if err != nil {
		return false
	}

	return bytes.Equal(pa.SerializeCompressed(), pb.SerializeCompressed())
}

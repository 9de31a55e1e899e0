package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces secp256k1 signatures over 32 byte digests.
type Signer interface {
	// Sign returns a 64 byte [R || S] or 65 byte [R || S || V] signature.
	Sign(digest []byte) ([]byte, error)

	// PublicKey returns the compressed public key matching the signing key.
	PublicKey() []byte
}

type DefaultSigner struct {
	priv *ecdsa.PrivateKey
}

func NewDefaultSigner(privHex string) (Signer, error) {
	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &DefaultSigner{priv: priv}, nil
}

func (s *DefaultSigner) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}

	signature, err := crypto.Sign(digest, s.priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length: expected 65 bytes, got %d", len(signature))
	}

	return signature, nil
}

func (s *DefaultSigner) PublicKey() []byte {
	return crypto.CompressPubkey(&s.priv.PublicKey)
}

package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-did-credential/credential/common/crypto"
)

// DefaultRemoteTimeout bounds a single remote signing call.
const DefaultRemoteTimeout = 10 * time.Second

// RemoteSigner is a signer that signs a payload using a remote API.
// The private key never leaves the remote service, so the public key is
// supplied by the caller.
type RemoteSigner struct {
	endpoint  string
	apiKey    string
	publicKey []byte
	client    *http.Client
}

type RemoteOption func(*RemoteSigner)

// WithRemoteHTTPClient replaces the instrumented default client.
func WithRemoteHTTPClient(c *http.Client) RemoteOption {
	return func(s *RemoteSigner) {
		s.client = c
	}
}

// NewRemoteSigner creates a new RemoteSigner.
func NewRemoteSigner(endpoint, apiKey, publicKeyHex string, opts ...RemoteOption) (Signer, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint required")
	}

	pub, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	parsed, err := crypto.ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}

	s := &RemoteSigner{
		endpoint:  endpoint,
		apiKey:    apiKey,
		publicKey: parsed.SerializeCompressed(),
		client: &http.Client{
			Timeout:   DefaultRemoteTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign signs a payload using the remote API.
func (s *RemoteSigner) Sign(payload []byte) ([]byte, error) {
	if len(payload) != 32 {
		return nil, fmt.Errorf("payload must be 32 bytes, got %d", len(payload))
	}

	reqBody, err := json.Marshal(map[string]any{
		"payload_hex": hex.EncodeToString(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		context.Background(),
		http.MethodPost,
		s.endpoint,
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call remote signer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote signer http %d", resp.StatusCode)
	}

	var out struct {
		SignatureHex string `json:"signature_hex"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode remote signer response: %w", err)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(out.SignatureHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureBytes && len(sig) != crypto.SignatureBytes+1 {
		return nil, fmt.Errorf("invalid signature length %d", len(sig))
	}

	return sig, nil
}

func (s *RemoteSigner) PublicKey() []byte {
	return append([]byte(nil), s.publicKey...)
}

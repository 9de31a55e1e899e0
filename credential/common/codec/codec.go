// Package codec packs serialized credentials and presentations into short
// URL-safe strings for QR codes and query parameters.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// MaxDecodedSize bounds the decompressed size accepted by Decode.
const MaxDecodedSize = 1 << 20

var ErrTooLarge = errors.New("decoded payload exceeds size limit")

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	out, err := io.ReadAll(io.LimitReader(gz, MaxDecodedSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > MaxDecodedSize {
		return nil, ErrTooLarge
	}
	return out, nil
}

// Encode gzips data and encodes it as unpadded base64url.
func Encode(data []byte) (string, error) {
	compressed, err := compress(data)
	if err != nil {
		return "", fmt.Errorf("failed to compress: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(compressed), nil
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64url: %w", err)
	}
	out, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}

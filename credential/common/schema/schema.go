// Package schema checks the structure of wire credentials and presentations
// before they are parsed field by field.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const credentialSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "type", "issuanceDate", "expirationDate", "credentialSubject", "proof"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "type": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "issuer": {"type": "string", "minLength": 1},
    "issuanceDate": {"type": "string", "minLength": 1},
    "expirationDate": {"type": "string", "minLength": 1},
    "credentialSubject": {
      "type": "object",
      "required": ["id"],
      "properties": {"id": {"type": "string", "minLength": 1}},
      "additionalProperties": {"type": "string", "minLength": 1}
    },
    "proof": {
      "type": "object",
      "required": ["verificationMethod", "signature"],
      "properties": {
        "type": {"type": "string", "minLength": 1},
        "verificationMethod": {"type": "string", "minLength": 1},
        "signature": {"type": "string", "pattern": "^[0-9a-f]{128}$"}
      }
    }
  }
}`

const presentationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "created", "verifiableCredential", "proof"],
  "properties": {
    "type": {"type": "string"},
    "created": {"type": "string", "minLength": 1},
    "verifiableCredential": {"type": "array", "minItems": 1, "items": {"type": "object"}},
    "proof": {
      "type": "object",
      "required": ["verificationMethod", "nonce", "realm", "signature"],
      "properties": {
        "type": {"type": "string", "minLength": 1},
        "verificationMethod": {"type": "string", "minLength": 1},
        "nonce": {"type": "string", "minLength": 1},
        "realm": {"type": "string", "minLength": 1},
        "signature": {"type": "string", "pattern": "^[0-9a-f]{128}$"}
      }
    }
  }
}`

var (
	compileOnce  sync.Once
	credential   *gojsonschema.Schema
	presentation *gojsonschema.Schema
	compileErr   error
)

func compile() error {
	compileOnce.Do(func() {
		credential, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(credentialSchema))
		if compileErr != nil {
			compileErr = fmt.Errorf("failed to compile credential schema: %w", compileErr)
			return
		}
		presentation, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(presentationSchema))
		if compileErr != nil {
			compileErr = fmt.Errorf("failed to compile presentation schema: %w", compileErr)
		}
	})
	return compileErr
}

// ValidateCredential checks data against the full-form credential schema.
func ValidateCredential(data []byte) error {
	if err := compile(); err != nil {
		return err
	}
	return validate(credential, data, "credential")
}

// ValidatePresentation checks data against the full-form presentation schema.
// Embedded credentials are validated separately.
func ValidatePresentation(data []byte) error {
	if err := compile(); err != nil {
		return err
	}
	return validate(presentation, data, "presentation")
}

func validate(s *gojsonschema.Schema, data []byte, what string) error {
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", what, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s validation failed: %s", what, strings.Join(msgs, "; "))
	}
	return nil
}

package vc

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/pilacorp/go-did-credential/credential/common/codec"
	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/credential/common/jsongen"
	"github.com/pilacorp/go-did-credential/credential/common/schema"
	"github.com/pilacorp/go-did-credential/did"
)

// ToJSON serializes the credential. The member order is fixed:
//
//	id, type, issuer, issuanceDate, expirationDate, credentialSubject, proof
//
// forSigning omits the proof and yields the exact bytes that are signed.
// compact drops the proof type and the issuer of self-proclaimed credentials
// and abbreviates ids owned by the subject or issuer to "#fragment". Compact
// output is for transport only and never signed.
func (c *Credential) ToJSON(compact, forSigning bool) ([]byte, error) {
	b := jsongen.New()

	if compact {
		b.String("id", c.id.Compact(c.subject.id))
	} else {
		b.String("id", c.id.String())
	}

	b.Array("type")
	for _, t := range c.types {
		b.AppendString("type", t)
	}

	if !compact || !c.IsSelfProclaimed() {
		b.String("issuer", c.issuer.String())
	}

	b.String("issuanceDate", FormatTime(c.issuanceDate))
	b.String("expirationDate", FormatTime(c.expirationDate))

	b.String("credentialSubject.id", c.subject.id.String())
	for _, p := range c.subject.properties {
		b.String(jsongen.Path("credentialSubject", p.Key), p.Value)
	}

	if !forSigning {
		if !compact {
			b.String("proof.type", c.proof.Type)
		}
		if compact {
			b.String("proof.verificationMethod", c.proof.VerificationMethod.Compact(c.issuer))
		} else {
			b.String("proof.verificationMethod", c.proof.VerificationMethod.String())
		}
		b.String("proof.signature", c.proof.Signature)
	}

	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential %s: %w", c.id, err)
	}
	return out, nil
}

// MarshalJSON returns the full, non-compact form.
func (c *Credential) MarshalJSON() ([]byte, error) {
	return c.ToJSON(false, false)
}

// String returns the compact full form, or an empty string on failure.
func (c *Credential) String() string {
	out, err := c.ToJSON(true, false)
	if err != nil {
		return ""
	}
	return string(out)
}

// Encode packs the compact form into a URL-safe string.
func (c *Credential) Encode() (string, error) {
	data, err := c.ToJSON(true, false)
	if err != nil {
		return "", errs.New(errs.SerializationError, "vc.Encode", err)
	}
	out, err := codec.Encode(data)
	if err != nil {
		return "", errs.New(errs.SerializationError, "vc.Encode", err)
	}
	return out, nil
}

// Decode parses a credential packed by Encode.
func Decode(s string, ref did.DID) (*Credential, error) {
	data, err := codec.Decode(s)
	if err != nil {
		return nil, errs.New(errs.Malformed, "vc.Decode", err)
	}
	return FromJSON(data, ref)
}

// FromJSON parses a credential in full form, compact or not. ref resolves
// "#fragment" ids; when zero the subject is used. A missing issuer means the
// credential is self-proclaimed and a missing proof type means ProofType.
// The whole document is rejected with errs.Malformed on any error.
func FromJSON(data []byte, ref did.DID) (*Credential, error) {
	c, err := parseCredential(data, ref)
	if err != nil {
		return nil, errs.New(errs.Malformed, "vc.FromJSON", err)
	}
	return c, nil
}

func parseCredential(data []byte, ref did.DID) (*Credential, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}
	if err := schema.ValidateCredential(data); err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(data)
	subjectNode := root.Get("credentialSubject")

	subjectID, err := did.Parse(subjectNode.Get("id").String())
	if err != nil {
		return nil, fmt.Errorf("invalid credentialSubject.id: %w", err)
	}
	if ref.IsZero() {
		ref = subjectID
	}

	c := &Credential{issuer: subjectID}

	if c.id, err = did.ParseURL(root.Get("id").String(), ref); err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}

	root.Get("type").ForEach(func(_, value gjson.Result) bool {
		c.types = append(c.types, value.String())
		return true
	})

	if issuer := root.Get("issuer"); issuer.Exists() {
		if c.issuer, err = did.Parse(issuer.String()); err != nil {
			return nil, fmt.Errorf("invalid issuer: %w", err)
		}
	}

	if c.issuanceDate, err = ParseTime(root.Get("issuanceDate").String()); err != nil {
		return nil, fmt.Errorf("invalid issuanceDate: %w", err)
	}
	if c.expirationDate, err = ParseTime(root.Get("expirationDate").String()); err != nil {
		return nil, fmt.Errorf("invalid expirationDate: %w", err)
	}

	// ForEach walks members in document order, which is signing order.
	c.subject.id = subjectID
	subjectNode.ForEach(func(key, value gjson.Result) bool {
		if key.String() != "id" {
			c.subject.properties = append(c.subject.properties, Property{Key: key.String(), Value: value.String()})
		}
		return true
	})

	proofNode := root.Get("proof")
	c.proof.Type = ProofType
	if t := proofNode.Get("type"); t.Exists() {
		c.proof.Type = t.String()
	}
	if c.proof.VerificationMethod, err = did.ParseURL(proofNode.Get("verificationMethod").String(), c.issuer); err != nil {
		return nil, fmt.Errorf("invalid proof.verificationMethod: %w", err)
	}
	c.proof.Signature = proofNode.Get("signature").String()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

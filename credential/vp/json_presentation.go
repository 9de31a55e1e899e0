package vp

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/pilacorp/go-did-credential/credential/common/codec"
	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/credential/common/jsongen"
	"github.com/pilacorp/go-did-credential/credential/common/schema"
	"github.com/pilacorp/go-did-credential/credential/vc"
	"github.com/pilacorp/go-did-credential/did"
)

// ToJSON serializes the presentation in the order
//
//	type, created, verifiableCredential, proof
//
// Embedded credentials always carry their own proofs. forSigning omits the
// presentation proof; compact omits both type members and abbreviates the
// verification method to "#fragment" when it belongs to the holder.
func (p *Presentation) ToJSON(compact, forSigning bool) ([]byte, error) {
	b := jsongen.New()

	if !compact {
		b.String("type", p.typ)
	}
	b.String("created", vc.FormatTime(p.created))

	b.Array("verifiableCredential")
	for _, c := range p.credentials {
		data, err := c.ToJSON(compact, false)
		if err != nil {
			return nil, err
		}
		b.AppendRaw("verifiableCredential", data)
	}

	if !forSigning {
		if !compact {
			b.String("proof.type", p.proof.Type)
		}
		if compact {
			b.String("proof.verificationMethod", p.proof.VerificationMethod.Compact(p.holder))
		} else {
			b.String("proof.verificationMethod", p.proof.VerificationMethod.String())
		}
		b.String("proof.nonce", p.proof.Nonce)
		b.String("proof.realm", p.proof.Realm)
		b.String("proof.signature", p.proof.Signature)
	}

	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize presentation: %w", err)
	}
	return out, nil
}

// MarshalJSON returns the full, non-compact form.
func (p *Presentation) MarshalJSON() ([]byte, error) {
	return p.ToJSON(false, false)
}

// Encode packs the full form into a URL-safe string. The compact form is
// not used because FromJSON requires the presentation type.
func (p *Presentation) Encode() (string, error) {
	data, err := p.ToJSON(false, false)
	if err != nil {
		return "", errs.New(errs.SerializationError, "vp.Encode", err)
	}
	out, err := codec.Encode(data)
	if err != nil {
		return "", errs.New(errs.SerializationError, "vp.Encode", err)
	}
	return out, nil
}

// Decode parses a presentation packed by Encode.
func Decode(s string, ref did.DID) (*Presentation, error) {
	data, err := codec.Decode(s)
	if err != nil {
		return nil, errs.New(errs.Malformed, "vp.Decode", err)
	}
	return FromJSON(data, ref)
}

// FromJSON parses a signed presentation in full, non-compact form. ref
// resolves "#fragment" references; it is normally the expected holder.
// Nothing is returned unless every part parses.
func FromJSON(data []byte, ref did.DID) (*Presentation, error) {
	p, err := parsePresentation(data, ref)
	if err != nil {
		return nil, errs.New(errs.Malformed, "vp.FromJSON", err)
	}
	return p, nil
}

func parsePresentation(data []byte, ref did.DID) (*Presentation, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("JSON string is empty")
	}
	if err := schema.ValidatePresentation(data); err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(data)

	if typ := root.Get("type").String(); typ != Type {
		return nil, fmt.Errorf("unexpected presentation type %q", typ)
	}

	created, err := vc.ParseTime(root.Get("created").String())
	if err != nil {
		return nil, fmt.Errorf("invalid created: %w", err)
	}

	var creds []*vc.Credential
	root.Get("verifiableCredential").ForEach(func(_, value gjson.Result) bool {
		var c *vc.Credential
		c, err = vc.FromJSON([]byte(value.Raw), ref)
		if err != nil {
			return false
		}
		creds = append(creds, c)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("invalid verifiableCredential[%d]: %w", len(creds), err)
	}

	proofNode := root.Get("proof")
	proof := Proof{
		Type:      ProofType,
		Nonce:     proofNode.Get("nonce").String(),
		Realm:     proofNode.Get("realm").String(),
		Signature: proofNode.Get("signature").String(),
	}
	if t := proofNode.Get("type"); t.Exists() {
		proof.Type = t.String()
	}
	if proof.VerificationMethod, err = did.ParseURL(proofNode.Get("verificationMethod").String(), ref); err != nil {
		return nil, fmt.Errorf("invalid proof.verificationMethod: %w", err)
	}

	return &Presentation{
		typ:         Type,
		holder:      proof.VerificationMethod.DID(),
		signKey:     proof.VerificationMethod,
		created:     created,
		credentials: creds,
		proof:       proof,
	}, nil
}

// Package jsongen builds JSON documents member by member on top of sjson.
//
// sjson appends a member that does not exist yet at the end of its object,
// so the output follows call order. The signing form of credentials and
// presentations depends on exactly that order.
package jsongen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var ErrInvalidRaw = errors.New("jsongen: invalid raw JSON value")

// pathEscaper escapes the characters sjson and gjson give a meaning in paths.
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`*`, `\*`,
	`?`, `\?`,
)

// Key escapes a member name for use as one path component.
func Key(name string) string {
	return pathEscaper.Replace(name)
}

// Path joins member names into a path, escaping each of them.
func Path(names ...string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = Key(n)
	}
	return strings.Join(escaped, ".")
}

// Builder accumulates a JSON object. The first error sticks and is returned
// by Bytes; later calls are no-ops.
type Builder struct {
	doc []byte
	err error
}

// New returns a builder holding an empty object.
func New() *Builder {
	return &Builder{doc: []byte("{}")}
}

func (b *Builder) set(path string, raw []byte) *Builder {
	if b.err != nil {
		return b
	}
	out, err := sjson.SetRawBytes(b.doc, path, raw)
	if err != nil {
		b.err = fmt.Errorf("failed to set %q: %w", path, err)
		return b
	}
	b.doc = out
	return b
}

// String sets path to a string value. HTML characters are kept as is.
func (b *Builder) String(path, value string) *Builder {
	if b.err != nil {
		return b
	}
	raw, err := quote(value)
	if err != nil {
		b.err = err
		return b
	}
	return b.set(path, raw)
}

// Raw sets path to an already encoded JSON value.
func (b *Builder) Raw(path string, raw []byte) *Builder {
	if b.err == nil && !gjson.ValidBytes(raw) {
		b.err = fmt.Errorf("%w at %q", ErrInvalidRaw, path)
	}
	return b.set(path, raw)
}

// Array sets path to an empty array.
func (b *Builder) Array(path string) *Builder {
	return b.set(path, []byte("[]"))
}

// AppendString appends a string to the array at path.
func (b *Builder) AppendString(path, value string) *Builder {
	return b.String(path+".-1", value)
}

// AppendRaw appends an encoded JSON value to the array at path.
func (b *Builder) AppendRaw(path string, raw []byte) *Builder {
	return b.Raw(path+".-1", raw)
}

// Bytes returns the document built so far.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return append([]byte(nil), b.doc...), nil
}

func quote(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode string: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pilacorp/go-did-credential/credential/common/errs"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	err := errs.New(errs.NotFound, "vp.Sign", cause)

	assert.Equal(t, errs.NotFound, errs.KindOf(err))
	assert.True(t, errs.Is(err, errs.NotFound))
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "vp.Sign: not found: boom", err.Error())

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, errs.NotFound, errs.KindOf(wrapped))

	assert.Equal(t, errs.Unknown, errs.KindOf(cause))
	assert.False(t, errs.Is(nil, errs.Unknown))
}

func TestOutermostKindWins(t *testing.T) {
	inner := errs.Errorf(errs.NotFound, "resolve", "did %s", "did:elastos:x")
	outer := errs.New(errs.CryptoError, "vp.Verify", inner)

	assert.Equal(t, errs.CryptoError, errs.KindOf(outer))
	assert.ErrorIs(t, outer, errs.ErrCrypto)
	assert.ErrorIs(t, outer, errs.ErrNotFound)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "subject mismatch", errs.SubjectMismatch.String())
	assert.Equal(t, "kind(42)", errs.Kind(42).String())
}

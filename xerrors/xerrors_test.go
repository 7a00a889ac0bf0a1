package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, InsufficientFunds, KindOf(New(InsufficientFunds, "wallet %s", "abc")))
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
}

func TestIsRetriable(t *testing.T) {
	assert.True(t, IsRetriable(New(Conflict, "row changed")))
	assert.False(t, IsRetriable(New(Validation, "bad input")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(Internal, cause, "flush failed")
	assert.ErrorIs(t, wrapped, cause)
}

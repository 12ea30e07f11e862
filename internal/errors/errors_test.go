package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "email job lookup")
	assert.Error(t, wrapped)
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Contains(t, wrapped.Error(), "email job lookup")
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestIs(t *testing.T) {
	err := Wrap(Wrap(ErrRateLimited, "dispatch"), "admin email")
	assert.True(t, Is(err, ErrRateLimited))
	assert.False(t, Is(err, ErrConflict))
}

func TestNew(t *testing.T) {
	err := New("boom")
	assert.EqualError(t, err, "boom")
}

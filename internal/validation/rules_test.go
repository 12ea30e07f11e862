package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/goformed/backoffice/internal/errors"
)

func TestNotBlank(t *testing.T) {
	assert.NoError(t, NotBlank.Validate("hello"))
	assert.Error(t, NotBlank.Validate("   "))
	assert.Error(t, NotBlank.Validate(42))
}

func TestEmail(t *testing.T) {
	assert.NoError(t, Email.Validate("customer@example.co.uk"))
	assert.NoError(t, Email.Validate("")) // Required handles empties
	assert.Error(t, Email.Validate("not-an-email"))
	assert.Error(t, Email.Validate("missing@tld"))
}

func TestUUID(t *testing.T) {
	assert.NoError(t, UUID.Validate("9f3c2b52-8a1e-4f0b-9c3d-2f6a1f6f9a10"))
	assert.NoError(t, UUID.Validate(""))
	assert.Error(t, UUID.Validate("1234"))
}

func TestWrapValidationError(t *testing.T) {
	assert.Nil(t, WrapValidationError(nil))

	err := WrapValidationError(assert.AnError)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

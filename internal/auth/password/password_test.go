package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("s3cret-pass")
	require.NoError(t, err)

	assert.True(t, Verify("s3cret-pass", encoded))
	assert.False(t, Verify("other-pass1", encoded))
	assert.False(t, Verify("s3cret-pass", "$bcrypt$whatever"))
}

func TestHashUsesRandomSalt(t *testing.T) {
	first, err := Hash("s3cret-pass")
	require.NoError(t, err)
	second, err := Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("abcdefg1"))
	assert.ErrorIs(t, Validate("short1"), ErrTooWeak)
	assert.ErrorIs(t, Validate("lettersonly"), ErrTooWeak)
	assert.ErrorIs(t, Validate("1234567890"), ErrTooWeak)
}

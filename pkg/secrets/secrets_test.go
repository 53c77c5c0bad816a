package secrets

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "grievance/pkg/domain-errors"
)

func TestToken(t *testing.T) {
	tok, err := Token(32)
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	other, err := Token(32)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestNumericCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for range 100 {
		code, err := NumericCode(6)
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery")
	require.NoError(t, err)

	require.NoError(t, Verify("correct horse battery", hash))

	err = Verify("wrong", hash)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

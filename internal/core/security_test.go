// AngelaMos | 2026
// security_test.go

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("testonly")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword("testonly", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("testonly")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "every digest has its own salt")
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, digest := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA",
	} {
		_, err := VerifyPassword("testonly", digest)
		assert.ErrorIs(t, err, ErrMalformedDigest, digest)
	}
}

func TestVerifyPasswordWithRehash_OutdatedParams(t *testing.T) {
	old := currentArgon
	old.time = 2
	old.salt = []byte("0123456789abcdef")
	old.hash = old.derive("testonly")

	ok, newHash, err := VerifyPasswordWithRehash("testonly", old.String())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, newHash)
	assert.Contains(t, newHash, "m=65536,t=1,p=4")
}

func TestVerifyPasswordWithRehash_Bcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("testonly"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, newHash, err := VerifyPasswordWithRehash("testonly", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, newHash, "bcrypt digests are upgraded")

	ok, err = VerifyPassword("testonly", newHash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, newHash, err = VerifyPasswordWithRehash("wrong", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, newHash)
}

func TestVerifyPasswordWithRehash_CurrentParams(t *testing.T) {
	hash, err := HashPassword("testonly")
	require.NoError(t, err)

	ok, newHash, err := VerifyPasswordWithRehash("testonly", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, newHash)
}

func TestVerifyPasswordTimingSafe_MissingHash(t *testing.T) {
	ok, newHash, err := VerifyPasswordTimingSafe("timing-equalizer", nil)
	require.NoError(t, err)
	assert.False(t, ok, "no account never verifies, even against the dummy digest's password")
	assert.Empty(t, newHash)

	empty := ""
	ok, _, err = VerifyPasswordTimingSafe("anything", &empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateRecoveryToken(t *testing.T) {
	a, err := GenerateRecoveryToken()
	require.NoError(t, err)
	b, err := GenerateRecoveryToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, a)
	assert.NotEqual(t, a, b)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t,
		"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		HashToken("test"),
	)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}

package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte(strings.Repeat("k", keyLength))
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("greenleaf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.NotContains(t, hash, "greenleaf")

	assert.True(t, VerifyPassword(hash, "greenleaf"))
	assert.False(t, VerifyPassword(hash, "greenleag"))
}

func TestHashPassword_LengthBounds(t *testing.T) {
	_, err := HashPassword("12345")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = HashPassword(strings.Repeat("x", maxPasswordLength+1))
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("not-a-hash", "whatever"))
	assert.False(t, VerifyPassword("$argon2id$v=19$m=1,t=1,p=1$!!$!!", "whatever"))
}

func TestTokenService_IssueVerify(t *testing.T) {
	svc, err := NewTokenService(testKey(), time.Hour)
	require.NoError(t, err)

	issued, err := svc.Issue("auth-1", "asha@campus.edu")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Token, "v4.local."))
	assert.True(t, strings.HasPrefix(issued.TokenID, "sess-"))

	claims, err := svc.Verify(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "auth-1", claims.AuthUserID)
	assert.Equal(t, "asha@campus.edu", claims.Email)
	assert.Equal(t, issued.TokenID, claims.TokenID)
}

func TestTokenService_Expired(t *testing.T) {
	svc, err := NewTokenService(testKey(), time.Minute)
	require.NoError(t, err)

	issued, err := svc.Issue("auth-1", "asha@campus.edu")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Verify(issued.Token)
	assert.Error(t, err)
}

func TestTokenService_WrongKey(t *testing.T) {
	svc, err := NewTokenService(testKey(), time.Hour)
	require.NoError(t, err)
	issued, err := svc.Issue("auth-1", "a@b.c")
	require.NoError(t, err)

	other, err := NewTokenService([]byte(strings.Repeat("z", keyLength)), time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(issued.Token)
	assert.Error(t, err)
}

func TestNewTokenService_RejectsBadInput(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService(testKey(), 0)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateKey("", dir)
	require.NoError(t, err)
	assert.Len(t, first, keyLength)

	info, err := os.Stat(filepath.Join(dir, "auth.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrGenerateKey("", dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrGenerateKey_Configured(t *testing.T) {
	key, err := LoadOrGenerateKey(strings.Repeat("ab", keyLength), t.TempDir())
	require.NoError(t, err)
	assert.Len(t, key, keyLength)

	_, err = LoadOrGenerateKey("abcd", t.TempDir())
	assert.Error(t, err)
}

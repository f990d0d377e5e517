package auth

import (
	"testing"
	"time"

	apperrors "dm-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestVerifier_Round_Trip(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("unit-test-secret")

	// Given a freshly issued token
	token, err := verifier.Issue("alice", time.Minute)
	req.NoError(err)

	// When it is verified
	userID, err := verifier.Verify(token)

	// Then the claimed identity comes back
	req.NoError(err)
	req.Equal("alice", userID)
}

func TestVerifier_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	verifier := NewVerifier("unit-test-secret")

	token, err := verifier.Issue("alice", -time.Minute)
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.ErrorIs(err, apperrors.ErrUnauthenticated)
}

func TestVerifier_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)

	token, err := NewVerifier("secret-a").Issue("alice", time.Minute)
	req.NoError(err)

	_, err = NewVerifier("secret-b").Verify(token)
	req.ErrorIs(err, apperrors.ErrUnauthenticated)
}

func TestVerifier_Rejects_Garbage(t *testing.T) {
	req := require.New(t)

	_, err := NewVerifier("unit-test-secret").Verify("not.a.token")
	req.ErrorIs(err, apperrors.ErrUnauthenticated)
}

func TestPassword_Hash_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse battery staple")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	ok, err := ComparePassword("correct horse battery staple", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(ok)
}

func TestPassword_Salts_Differ(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("same input")
	req.NoError(err)
	second, err := HashPassword("same input")
	req.NoError(err)

	req.NotEqual(first, second)
}

func TestComparePassword_Rejects_Malformed_Hash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-an-encoded-hash")
	req.Error(err)
}

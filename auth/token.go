// Package auth implements the identity-verification collaborator: JWT
// issuing and verification plus password hashing helpers. Session issuance
// endpoints live outside this core; the gateway only consumes Verify.
package auth

import (
	"fmt"
	"time"

	"dm-relay/contract"
	apperrors "dm-relay/errors"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "dm-relay"

// Claims is the payload carried inside a signed token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against a shared HMAC secret. The secret
// comes from configuration, never from source.
type Verifier struct {
	key []byte
}

var _ contract.AuthVerifier = (*Verifier)(nil)

func NewVerifier(secret string) *Verifier {
	return &Verifier{key: []byte(secret)}
}

// Issue creates a signed token for userID, valid for ttl.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}

// Verify resolves credentials to a user identifier. Any parse, signature or
// expiry failure maps to ErrUnauthenticated; callers reject the connection
// without registering anything.
func (v *Verifier) Verify(credentials string) (string, error) {
	token, err := jwt.ParseWithClaims(credentials, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return claims.UserID, nil
}

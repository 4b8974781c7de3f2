package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	userID, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestVerifyAcceptsBearerPrefix(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"user_id": 7})

	userID, err := verifier.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)
}

func TestVerifyMissingToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	_, err := verifier.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	token := signToken(t, "other-secret", jwt.MapClaims{"user_id": 42})

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingUserID(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "someone"})

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyNonPositiveUserID(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	token := signToken(t, testSecret, jwt.MapClaims{"user_id": 0})

	_, err := verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	_, err := verifier.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// Package auth resolves bearer tokens to user identities. Token issuance is
// owned by an external service; this side only verifies.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("token is required")
	ErrInvalidToken = errors.New("invalid token")
)

// JWTVerifier validates HMAC-signed JWTs and extracts the user id claim.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates tokenString and returns the user id it was
// issued for. Accepts an optional "Bearer " prefix.
func (v *JWTVerifier) Verify(tokenString string) (uint, error) {
	if tokenString == "" {
		return 0, ErrMissingToken
	}
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

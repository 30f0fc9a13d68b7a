// Package auth issues and checks the HS256 access tokens journal clients
// present to the server.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/diarysync/internal/common"
)

const issuer = "diarysync"

// GenerateToken signs a token for userID. A zero validity means the token
// never expires.
func GenerateToken(userID string, secretKey []byte, validity time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}
	jti, err := common.MakeRandHexString(16)
	if err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:       jti,
		Issuer:   issuer,
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if validity != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(validity))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

// GetUserIDFromToken verifies tokenString and returns its subject.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", common.ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

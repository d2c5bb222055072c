// Package token issues and checks the bearer tokens of the ops HTTP API.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dtroode/sharekeeper/internal/model"
)

// Claims carry the user a token was issued to.
type Claims struct {
	jwt.RegisteredClaims
	UserID    model.UserID `json:"user_id"`
	TokenType string       `json:"typ"`
}

const typeOps = "ops"

// JWT signs and verifies HMAC tokens with a shared secret.
type JWT struct {
	secretKey string
	now       func() time.Time
}

// NewJWT creates a token manager with the provided secret key.
func NewJWT(secretKey string) *JWT {
	return &JWT{secretKey: secretKey, now: time.Now}
}

// Generate issues a token for userID that expires after ttl.
func (j *JWT) Generate(userID model.UserID, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token lifetime must be positive, got %s", ttl)
	}

	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		TokenType: typeOps,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Parse validates the token and returns the user it was issued to.
func (j *JWT) Parse(tokenString string) (model.UserID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("token is invalid")
	}
	if claims.TokenType != typeOps {
		return "", fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	if claims.UserID == "" {
		return "", errors.New("token has no user id")
	}

	return claims.UserID, nil
}

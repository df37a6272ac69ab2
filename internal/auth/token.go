// Package auth issues and verifies the single-use tokens that authorize
// order transfer decisions.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "commerce-engine"

// ErrInvalidToken is returned for tokens that are malformed or carry a bad
// signature.
var ErrInvalidToken = errors.New("invalid transfer token")

// TransferClaims are the claims of a transfer token. The subject is the
// transfer request id.
type TransferClaims struct {
	OrderID string `json:"order_id"`
	jwt.RegisteredClaims
}

// Expired reports whether the token's expiry is at or before now.
func (c *TransferClaims) Expired(now time.Time) bool {
	return c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time)
}

// TokenManager signs and parses transfer tokens with an HMAC secret.
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a token manager for secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Generate creates a signed token for a transfer request.
func (m *TokenManager) Generate(requestID, orderID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &TransferClaims{
		OrderID: orderID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   requestID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign transfer token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature of a token and returns its claims. Expiry is
// not checked here so callers can tell an expired request from a forged
// token; use TransferClaims.Expired.
func (m *TokenManager) Parse(tokenString string) (*TransferClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TransferClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*TransferClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Digest returns the hex SHA-256 of a token. Only digests are stored.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DigestMatches compares a token against a stored digest in constant time.
func DigestMatches(token, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(token)), []byte(digest)) == 1
}

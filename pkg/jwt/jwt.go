package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingKey   = errors.New("no public key configured")
)

// Claims represents the access token claims issued by the user service.
type Claims struct {
	jwt.RegisteredClaims
	UserID       int64  `json:"user-id"`
	UserRole     string `json:"user-role"`
	Username     string `json:"username"`
	EmailAddress string `json:"email-address"`
}

// Verifier validates RSA-signed access tokens against a public key.
type Verifier struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

// NewVerifier creates a verifier for the given public key.
func NewVerifier(publicKey *rsa.PublicKey) (*Verifier, error) {
	if publicKey == nil {
		return nil, ErrMissingKey
	}
	return &Verifier{
		publicKey: publicKey,
		parser:    jwt.NewParser(jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"})),
	}, nil
}

// ValidateToken validates a token and returns claims.
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ParsePublicKey decodes a PEM-encoded RSA public key.
func ParsePublicKey(pem []byte) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// LoadPublicKey reads and decodes a PEM-encoded RSA public key file.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return ParsePublicKey(data)
}

package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaultik/capsulechain/internal/ledger"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthService asserts the wallet principal behind each request. Signature
// verification against the wallet itself happens at the edge (out of scope
// here); this service just binds a verified principal address into a session
// token and gets it back out.
type AuthService struct {
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthService(jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

func (s *AuthService) IssueToken(principal string) (string, time.Time, error) {
	if err := ledger.ValidateAddress(principal); err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(s.jwtExpiry)
	claims := jwt.MapClaims{
		"sub": principal,
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	principal, ok := claims["sub"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	if err := ledger.ValidateAddress(principal); err != nil {
		return "", ErrInvalidToken
	}
	return principal, nil
}

package auth

import (
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const serviceIssuer = "brokerreviews"

type JWTManager struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTManager(secret string, tokenTTL time.Duration) *JWTManager {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	return &JWTManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func (m *JWTManager) GenerateServiceToken(subject, role string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is empty")
	}
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(role) == "" {
		return "", time.Time{}, fmt.Errorf("invalid service token payload")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.tokenTTL)
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    serviceIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign service token: %w", err)
	}

	return signed, expiresAt, nil
}

func (m *JWTManager) ParseServiceToken(raw string) (ServiceClaims, error) {
	if strings.TrimSpace(raw) == "" || len(m.secret) == 0 {
		return ServiceClaims{}, ErrUnauthorized
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(serviceIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || token == nil || !token.Valid {
		return ServiceClaims{}, ErrUnauthorized
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return ServiceClaims{}, ErrUnauthorized
	}

	return ServiceClaims{
		Subject:   claims.Subject,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

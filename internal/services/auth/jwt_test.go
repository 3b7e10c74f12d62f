package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestServiceTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	raw, expiresAt, err := manager.GenerateServiceToken("wordpress", "content_system")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := manager.ParseServiceToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "wordpress" || claims.Role != "content_system" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Fatalf("unexpected expiry: got %s want %s", claims.ExpiresAt, expiresAt)
	}
}

func TestParseServiceTokenRejectsExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Minute)
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return issuedAt }

	raw, _, err := manager.GenerateServiceToken("wordpress", "content_system")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	manager.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := manager.ParseServiceToken(raw); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestParseServiceTokenRejectsForeignSecretAndMethod(t *testing.T) {
	issuer := NewJWTManager("other-secret", time.Hour)
	raw, _, err := issuer.GenerateServiceToken("wordpress", "content_system")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	manager := NewJWTManager("test-secret", time.Hour)
	if _, err := manager.ParseServiceToken(raw); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for foreign secret, got %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "wordpress",
		"role": "content_system",
		"iss":  serviceIssuer,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := manager.ParseServiceToken(unsigned); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for alg none, got %v", err)
	}

	if _, err := manager.ParseServiceToken(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token")
	}
}

func TestGenerateServiceTokenValidatesInput(t *testing.T) {
	if _, _, err := NewJWTManager("", time.Hour).GenerateServiceToken("wp", "content_system"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, _, err := NewJWTManager("s", time.Hour).GenerateServiceToken(" ", "content_system"); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatalf("empty context must not carry identity")
	}

	ctx := WithIdentity(context.Background(), Identity{Subject: "wordpress", Role: "content_system"})
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.Subject != "wordpress" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

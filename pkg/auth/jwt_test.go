package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	userID := uuid.New()

	token, err := manager.GenerateToken(userID, "ext_123", "user@test.local", "pat")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("user id mismatch: %s", claims.UserID)
	}
	if claims.ExternalID != "ext_123" || claims.Email != "user@test.local" || claims.Name != "pat" {
		t.Fatalf("claim payload mismatch: %+v", claims)
	}
	if claims.Issuer != "converse" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("token id not set")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Hour).GenerateToken(uuid.New(), "ext", "e@test.local", "n")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewJWTManager("secret-b", time.Hour).ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)
	token, err := manager.GenerateToken(uuid.New(), "ext", "e@test.local", "n")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := manager.ValidateToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := NewJWTManager("test-secret", time.Hour).ValidateToken("not.a.token"); err == nil {
		t.Fatal("garbage accepted")
	}
}

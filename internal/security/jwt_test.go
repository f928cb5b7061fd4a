package security

import (
	"errors"
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, errGen := GenerateSessionToken("secret", 42, "ops@example.com", true, time.Hour)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	claims, errParse := ParseSessionToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.Email != "ops@example.com" || !claims.IsSuperuser {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, _ := GenerateSessionToken("secret", 1, "a@example.com", false, time.Hour)
	if _, errParse := ParseSessionToken("other", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestSessionTokenExpired(t *testing.T) {
	token, _ := GenerateSessionToken("secret", 1, "a@example.com", false, -time.Minute)
	if _, errParse := ParseSessionToken("secret", token); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestSessionTokenGarbage(t *testing.T) {
	if _, errParse := ParseSessionToken("secret", "not.a.token"); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

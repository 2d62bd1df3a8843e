package utils

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, exp, err := GenerateToken(secret, "user-1", "alex", "admin", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry %v is not in the future", exp)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserId != "user-1" || claims.Username != "alex" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseToken([]byte("wrong-secret"), token); err == nil {
		t.Error("token accepted with wrong secret")
	}
}

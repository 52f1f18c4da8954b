package jwt

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-42", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	userID, err := ExtractUserIDFromToken(token, "secret")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("Expected user-42, got %s", userID)
	}
}

func TestExtractUserIDFromToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-42", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := ExtractUserIDFromToken(token, "other-secret"); err == nil {
		t.Fatal("Expected error for wrong secret")
	}
}

func TestExtractUserIDFromToken_Expired(t *testing.T) {
	token, err := GenerateToken("user-42", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := ExtractUserIDFromToken(token, "secret"); err == nil {
		t.Fatal("Expected error for expired token")
	}
}

func TestExtractUserIDFromToken_Garbage(t *testing.T) {
	if _, err := ExtractUserIDFromToken("not.a.token", "secret"); err == nil {
		t.Fatal("Expected error for malformed token")
	}
}

package token

import (
	"testing"
	"time"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	tok, err := s.Issue("abcd1234", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != "abcd1234" {
		t.Fatalf("id = %q, want abcd1234", id)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s, _ := NewSigner([]byte("test-secret"))
	tok, _ := s.Issue("abcd1234", -time.Minute)
	if _, err := s.Verify(tok); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid for expired token, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a, _ := NewSigner([]byte("secret-a"))
	b, _ := NewSigner([]byte("secret-b"))
	tok, _ := a.Issue("abcd1234", time.Hour)
	if _, err := b.Verify(tok); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid for mismatched secret, got %v", err)
	}
}

func TestNewSignerRejectsEmptySecret(t *testing.T) {
	if _, err := NewSigner(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

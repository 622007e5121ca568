package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerifySessionToken(t *testing.T) {
	m := NewManager("test-secret-key")

	raw, err := m.IssueSessionToken("session-1", "account-2", "counselor", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.VerifySessionToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.JTI != "session-1" || claims.AccountID != "account-2" || claims.Role != "counselor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifySessionToken_Rejects(t *testing.T) {
	m := NewManager("test-secret-key")

	expired, err := m.IssueSessionToken("s", "a", "admin", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.VerifySessionToken(expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	other, err := NewManager("another-secret").IssueSessionToken("s", "a", "admin", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.VerifySessionToken(other); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}

	if _, err := m.VerifySessionToken("not-a-jwt"); err == nil {
		t.Fatalf("expected garbage to fail")
	}
}

func TestHashTokenIsDeterministic(t *testing.T) {
	m := NewManager("test-secret-key")

	if m.HashToken("abc") != m.HashToken("abc") {
		t.Fatalf("hash must be deterministic")
	}
	if m.HashToken("abc") == NewManager("x").HashToken("abc") {
		t.Fatalf("hash must depend on the secret")
	}
}

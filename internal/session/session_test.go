package session

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	token, err := m.Issue("clerk-1", RoleClerk)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	sess, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sess.UserID != "clerk-1" || sess.Role != RoleClerk {
		t.Fatalf("session = %+v", sess)
	}
}

func TestIssueRejectsUnknownRole(t *testing.T) {
	m := NewManager(testSecret, time.Hour)
	if _, err := m.Issue("u1", Role("superuser")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewManager(testSecret, time.Hour)
	if _, err := m.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewManager(testSecret, time.Hour)
	verifier := NewManager("ffffffffffffffffffffffffffffffff", time.Hour)

	token, err := issuer.Issue("u1", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewManager(testSecret, -time.Minute)

	token, err := m.Issue("u1", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestRevoke(t *testing.T) {
	m := NewManager(testSecret, time.Hour)

	token, err := m.Issue("u1", RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := m.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("err = %v, want ErrTokenRevoked", err)
	}

	// Revoking twice is a no-op.
	if err := m.Revoke(token); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	// Other sessions stay valid.
	other, err := m.Issue("u2", RoleClerk)
	if err != nil {
		t.Fatalf("issue other: %v", err)
	}
	if _, err := m.Verify(other); err != nil {
		t.Fatalf("verify other: %v", err)
	}
}

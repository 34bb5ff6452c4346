package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"helpdeskai/pkg/domain"
	"helpdeskai/pkg/store"
)

func newManager(t *testing.T, ttl time.Duration) (*SessionManager, *store.MemoryStore) {
	t.Helper()
	sessions := store.NewMemoryStore()
	counter := 0
	manager, err := NewSessionManager("test-secret", ttl, sessions, func() string {
		counter++
		return fmt.Sprintf("sid-%d", counter)
	})
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	return manager, sessions
}

func TestIssueAndValidate(t *testing.T) {
	manager, _ := newManager(t, time.Hour)
	token, session, err := manager.Issue("admin", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a signed token")
	}
	if session.UserID != "admin" || session.Role != domain.RoleAdmin {
		t.Fatalf("unexpected session: %+v", session)
	}
	identity, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if identity.UserID != "admin" || identity.Role != domain.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	manager, _ := newManager(t, time.Hour)
	token, _, err := manager.Issue("admin", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := manager.Validate(tampered); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for tampered token, got %v", err)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	manager, sessions := newManager(t, time.Hour)
	other, err := NewSessionManager("other-secret", time.Hour, sessions, func() string { return "sid-x" })
	if err != nil {
		t.Fatalf("new other manager: %v", err)
	}
	token, _, err := other.Issue("admin", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue on other manager: %v", err)
	}
	// record exists in the shared store, but the signature does not verify
	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for foreign signature, got %v", err)
	}
}

func TestValidateRequiresStoredRecord(t *testing.T) {
	manager, sessions := newManager(t, time.Hour)
	token, _, err := manager.Issue("admin", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// a token verifying on its own is not enough once the record is gone
	if err := sessions.DeleteSessionByToken(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession without store record, got %v", err)
	}
}

func TestValidateRejectsExpiredRecord(t *testing.T) {
	manager, sessions := newManager(t, time.Hour)
	token, session, err := manager.Issue("admin", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	session.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if err := sessions.CreateSession(session); err != nil {
		t.Fatalf("overwrite session: %v", err)
	}
	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for expired record, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	manager, _ := newManager(t, time.Hour)
	token, _, err := manager.Issue("admin", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := manager.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession after revoke, got %v", err)
	}
	// revoking an unknown token is a no-op
	if err := manager.Revoke("never-issued"); err != nil {
		t.Fatalf("revoke unknown token: %v", err)
	}
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	manager, _ := newManager(t, time.Hour)
	if _, err := manager.Validate(""); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for empty token, got %v", err)
	}
}

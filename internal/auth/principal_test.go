package auth

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gcs/internal/models"
)

func TestAuthenticatorBasicAuth(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a, err := NewAuthenticator([]User{
		{Username: "Alice", PasswordHash: hash, Tenant: "acme"},
		{Username: "bob", PasswordHash: hash, Disabled: true},
	}, false)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}

	req := httptest.NewRequest("GET", "/list", nil)
	req.SetBasicAuth("alice", "correct horse")
	principal, err := a.Principal(req)
	if err != nil {
		t.Fatalf("principal: %v", err)
	}
	if *principal != (models.Principal{Username: "alice", TenantCode: "acme"}) {
		t.Fatalf("unexpected principal %+v", principal)
	}

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong password"},
		{"bob", "correct horse"},
		{"carol", "correct horse"},
	} {
		req := httptest.NewRequest("GET", "/list", nil)
		req.SetBasicAuth(tc.user, tc.pass)
		if _, err := a.Principal(req); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials for %s, got %v", tc.user, err)
		}
	}

	if _, err := a.Principal(httptest.NewRequest("GET", "/list", nil)); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected credentials to be required, got %v", err)
	}
}

func TestAuthenticatorAnonymousAndHeaders(t *testing.T) {
	open, err := NewAuthenticator(nil, false)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	principal, err := open.Principal(httptest.NewRequest("GET", "/list", nil))
	if err != nil || principal != nil {
		t.Fatalf("expected anonymous access, got %+v %v", principal, err)
	}

	trusted, err := NewAuthenticator(nil, true)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	req := httptest.NewRequest("GET", "/list", nil)
	req.Header.Set(HeaderUser, "gateway-user")
	req.Header.Set(HeaderTenant, "T1")
	principal, err = trusted.Principal(req)
	if err != nil {
		t.Fatalf("principal: %v", err)
	}
	if principal.Username != "gateway-user" || principal.TenantCode != "T1" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestLoadUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	doc := "users:\n  - username: alice\n    password_hash: x\n    tenant: acme\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write users: %v", err)
	}
	users, err := LoadUsers(path)
	if err != nil {
		t.Fatalf("load users: %v", err)
	}
	if len(users) != 1 || users[0].Tenant != "acme" {
		t.Fatalf("unexpected users %+v", users)
	}

	if _, err := NewAuthenticator([]User{{Username: "a"}, {Username: "A"}}, false); err == nil {
		t.Fatalf("expected duplicate users to be rejected")
	}
}

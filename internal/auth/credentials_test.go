package auth

import (
	"path/filepath"
	"testing"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "valid", raw: "Admin.User", want: "admin.user"},
		{name: "trim", raw: "  a-user  ", want: "a-user"},
		{name: "invalid chars", raw: "bad space", wantErr: true},
		{name: "trailing dot", raw: "user.", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUsername(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeUsername(%q)=%q want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("password-123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !VerifyPassword(hash, "password-123") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
	if VerifyPassword("", "password-123") {
		t.Fatal("expected empty hash to fail")
	}
	if _, err := HashPassword("short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestUpsertUserReplacesByNormalizedName(t *testing.T) {
	first, err := NewUser("Alice", "acme", "first-password")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	second, err := NewUser("alice", "globex", "second-password")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}

	users := UpsertUser([]User{{Username: "zed"}}, first)
	users = UpsertUser(users, second)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Username != "alice" || users[0].Tenant != "globex" {
		t.Fatalf("expected replaced alice first, got %+v", users[0])
	}
	if !VerifyPassword(users[0].PasswordHash, "second-password") {
		t.Fatal("expected the replacement password")
	}
}

func TestSaveUsersFeedsAuthenticator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	user, err := NewUser("carol", "initech", "carol-password")
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := SaveUsers(path, []User{user}); err != nil {
		t.Fatalf("save: %v", err)
	}

	users, err := LoadUsers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, err := NewAuthenticator(users, false)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	if !a.Required() {
		t.Fatal("expected credentials to be required")
	}
}

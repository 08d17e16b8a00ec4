package auth

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	minPasswordLength = 8
	maxUsernameLength = 32
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._-]*[a-z0-9])?$`)

// User is one configured account. Tenant selects the tenant database for
// tenant-specific environments.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Tenant       string `yaml:"tenant"`
	Disabled     bool   `yaml:"disabled,omitempty"`
}

// UsersFile is the on-disk account list.
type UsersFile struct {
	Users []User `yaml:"users"`
}

// NormalizeUsername returns canonical lowercase username and validates allowed characters.
func NormalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(strings.ToLower(raw))
	if username == "" {
		return "", fmt.Errorf("username is required")
	}
	if len(username) > maxUsernameLength {
		return "", fmt.Errorf("username too long")
	}
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("invalid username")
	}
	return username, nil
}

// HashPassword hashes one plaintext password for the users file.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword verifies plaintext password against a bcrypt hash.
func VerifyPassword(passwordHash, candidate string) bool {
	if strings.TrimSpace(passwordHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}

// NewUser builds an enabled account with a hashed password.
func NewUser(username, tenant, password string) (User, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return User{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	return User{Username: name, PasswordHash: hash, Tenant: strings.TrimSpace(tenant)}, nil
}

// UpsertUser returns users with user added or replacing the account of the
// same normalized name, sorted by username.
func UpsertUser(users []User, user User) []User {
	out := make([]User, 0, len(users)+1)
	for _, existing := range users {
		name, err := NormalizeUsername(existing.Username)
		if err == nil && name == user.Username {
			continue
		}
		out = append(out, existing)
	}
	out = append(out, user)
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// LoadUsers reads an account list.
func LoadUsers(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users %s: %w", path, err)
	}
	var doc UsersFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse users %s: %w", path, err)
	}
	return doc.Users, nil
}

// SaveUsers replaces the account list at path atomically.
func SaveUsers(path string, users []User) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(UsersFile{Users: users}); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

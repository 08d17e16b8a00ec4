package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gcs/internal/models"
)

// Headers set by a trusted gateway in front of the service.
const (
	HeaderUser   = "X-Gcs-User"
	HeaderTenant = "X-Gcs-Tenant"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator resolves the principal of a request.
type Authenticator struct {
	users        map[string]User
	trustHeaders bool
}

// NewAuthenticator builds an authenticator. Usernames are normalized.
func NewAuthenticator(users []User, trustHeaders bool) (*Authenticator, error) {
	a := &Authenticator{users: make(map[string]User, len(users)), trustHeaders: trustHeaders}
	for _, user := range users {
		name, err := NormalizeUsername(user.Username)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", user.Username, err)
		}
		if _, dup := a.users[name]; dup {
			return nil, fmt.Errorf("user %q listed twice", name)
		}
		user.Username = name
		a.users[name] = user
	}
	return a, nil
}

// Required reports whether requests must carry credentials.
func (a *Authenticator) Required() bool {
	return a != nil && len(a.users) > 0
}

// Principal returns the caller of r. It returns nil without error for
// anonymous requests when no accounts are configured.
func (a *Authenticator) Principal(r *http.Request) (*models.Principal, error) {
	if a == nil {
		return nil, nil
	}
	if a.trustHeaders {
		if user := strings.TrimSpace(r.Header.Get(HeaderUser)); user != "" {
			return &models.Principal{Username: user, TenantCode: strings.TrimSpace(r.Header.Get(HeaderTenant))}, nil
		}
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		if a.Required() {
			return nil, ErrInvalidCredentials
		}
		return nil, nil
	}
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, ok := a.users[name]
	if !ok || user.Disabled || !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &models.Principal{Username: user.Username, TenantCode: user.Tenant}, nil
}

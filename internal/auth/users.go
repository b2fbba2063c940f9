package auth

import (
	"net/http"
	"slices"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"insights/pkg/config"
)

// Users authenticates HTTP basic credentials against accounts with bcrypt password hashes.
type Users struct {
	mu       sync.RWMutex
	accounts map[string]config.UserConfig
}

func NewUsers(accounts []config.UserConfig) *Users {
	u := &Users{accounts: make(map[string]config.UserConfig, len(accounts))}
	for _, a := range accounts {
		u.accounts[a.Name] = a
	}
	return u
}

// Save adds or replaces an account, hashing its plain text password.
func (u *Users) Save(name, password string, roles ...string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	acc := u.accounts[name]
	acc.Name, acc.Password = name, string(hash)
	if len(roles) > 0 {
		acc.Roles = roles
	}
	u.accounts[name] = acc
	return nil
}

// Authenticate returns nil without error for requests that carry no credentials.
func (u *Users) Authenticate(r *http.Request) (*Token, error) {
	name, pass, ok := r.BasicAuth()
	if !ok {
		return nil, nil
	}
	u.mu.RLock()
	acc, found := u.accounts[name]
	u.mu.RUnlock()
	if !found || bcrypt.CompareHashAndPassword([]byte(acc.Password), []byte(pass)) != nil {
		return nil, ErrBadCredentials
	}
	return &Token{Name: acc.Name, Roles: slices.Clone(acc.Roles), Contexts: slices.Clone(acc.Contexts)}, nil
}

/*
Package session holds the process-wide authenticated identity and its
persistence collaborator.

This file defines the CookieStore, which persists the access token the way the
web client does: an "accessToken" cookie scoped to the whole application with a
one-day expiry. Since there is no browser here, the cookie is kept in a file.
*/
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// AccessTokenCookieName is the name of the persisted access-token cookie.
	AccessTokenCookieName = "accessToken"

	// AccessTokenCookiePath is the path scope of the cookie.
	AccessTokenCookiePath = "/"

	// AccessTokenTTL is the cookie lifetime.
	AccessTokenTTL = 24 * time.Hour
)

// CookieStore persists the bearer token as a serialized http.Cookie in a file.
type CookieStore struct {
	mu   sync.Mutex
	path string
}

// NewCookieStore returns a CookieStore backed by the given file path.
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// Load returns the persisted token, or an empty string when no cookie exists
// or the stored cookie has expired. An expired cookie is dropped on read.
func (c *CookieStore) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token cookie file: %w", err)
	}

	var cookie http.Cookie
	if err := json.Unmarshal(data, &cookie); err != nil {
		return "", fmt.Errorf("failed to parse token cookie file: %w", err)
	}

	if cookie.Name != AccessTokenCookieName || cookie.Value == "" {
		return "", nil
	}

	if !cookie.Expires.IsZero() && time.Now().After(cookie.Expires) {
		_ = os.Remove(c.path)
		return "", nil
	}

	return cookie.Value, nil
}

// Save persists the token as a fresh cookie with the standard path scope and TTL.
func (c *CookieStore) Save(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cookie := http.Cookie{
		Name:    AccessTokenCookieName,
		Value:   token,
		Path:    AccessTokenCookiePath,
		Expires: time.Now().Add(AccessTokenTTL),
	}

	data, err := json.Marshal(&cookie)
	if err != nil {
		return fmt.Errorf("failed to encode token cookie: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token cookie directory: %w", err)
		}
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token cookie file: %w", err)
	}

	return nil
}

// Drop removes the persisted cookie. Dropping a missing cookie is a no-op.
func (c *CookieStore) Drop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token cookie file: %w", err)
	}
	return nil
}

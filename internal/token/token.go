// Package token resolves the bearer credential used for the chat transport
// and REST calls. It does not mint or refresh tokens; it only reads whatever
// credential the login flow has already stored.
package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store keys checked for the access token, in priority order.
const (
	PrimaryKey = "access"
	AliasKey   = "access_token"
)

// Source supplies a bearer token, or "" when none is available.
type Source interface {
	AccessToken() string
}

// Static is a fixed token Source, used when the token is supplied directly
// (flag or environment).
type Static string

// AccessToken returns the fixed token.
func (s Static) AccessToken() string { return string(s) }

// Getter reads a named credential from some keyed backing store.
type Getter interface {
	Get(key string) string
}

// CookieSource reads a named cookie, returning "" when absent.
type CookieSource func(name string) string

// Chain resolves the access token in priority order: the primary store key,
// the alias store key, then cookies under either name. It never fails; an
// unresolvable token is the empty string and the transport URL simply carries
// an empty token parameter.
type Chain struct {
	Store   Getter
	Cookies CookieSource
}

// AccessToken resolves the token through the lookup chain.
func (c Chain) AccessToken() string {
	if c.Store != nil {
		if tok := c.Store.Get(PrimaryKey); tok != "" {
			return tok
		}
		if tok := c.Store.Get(AliasKey); tok != "" {
			return tok
		}
	}
	if c.Cookies != nil {
		if tok := c.Cookies(PrimaryKey); tok != "" {
			return tok
		}
		if tok := c.Cookies(AliasKey); tok != "" {
			return tok
		}
	}
	return ""
}

// FileStore persists named credentials to a JSON file. Reads are best-effort:
// a missing or unreadable file behaves like an empty store.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed credential store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get returns the credential stored under key, or "".
func (s *FileStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens, err := s.load()
	if err != nil {
		return ""
	}
	return tokens[key]
}

// Set stores a credential under key, creating the file if needed.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens, err := s.load()
	if err != nil {
		return err
	}
	if tokens == nil {
		tokens = map[string]string{}
	}
	tokens[key] = value

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tokens map[string]string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return tokens, nil
}

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultAPIKeyHeader carries admin API keys.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKey is a registered admin key. Only the SHA-256 hash of the key is kept.
type APIKey struct {
	ID        string
	Hash      string
	Principal string
	Roles     []string

	// Capabilities are granted on top of Roles.
	Capabilities []string

	// ExpiresAt is when this key expires (zero = never).
	ExpiresAt time.Time
}

// APIKeyAuthenticator validates keys from a fixed header against a keyring.
type APIKeyAuthenticator struct {
	header string

	mu   sync.RWMutex
	keys map[string]APIKey // by hash
}

// NewAPIKeyAuthenticator creates an authenticator reading header
// (default DefaultAPIKeyHeader) and accepting keys.
func NewAPIKeyAuthenticator(header string, keys ...APIKey) *APIKeyAuthenticator {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	a := &APIKeyAuthenticator{header: header, keys: make(map[string]APIKey, len(keys))}
	for _, k := range keys {
		a.Add(k)
	}
	return a
}

// Add registers a key, replacing any key with the same hash.
func (a *APIKeyAuthenticator) Add(key APIKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[strings.ToLower(key.Hash)] = key
}

// Remove revokes the key with the given hash.
func (a *APIKeyAuthenticator) Remove(hash string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.keys, strings.ToLower(hash))
}

// Authenticate looks the header value up in the keyring.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Identity, error) {
	raw := strings.TrimSpace(r.Header.Get(a.header))
	if raw == "" {
		return nil, ErrMissingCredentials
	}

	a.mu.RLock()
	key, ok := a.keys[HashAPIKey(raw)]
	a.mu.RUnlock()
	switch {
	case !ok:
		return nil, ErrInvalidCredentials
	case !key.ExpiresAt.IsZero() && time.Now().After(key.ExpiresAt):
		return nil, ErrTokenExpired
	}

	return &Identity{
		Principal:    key.Principal,
		Roles:        key.Roles,
		Capabilities: key.Capabilities,
		Method:       MethodAPIKey,
		ExpiresAt:    key.ExpiresAt,
		Claims:       map[string]any{"key_id": key.ID},
	}, nil
}

// HashAPIKey hashes an API key using SHA-256 for storage.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)

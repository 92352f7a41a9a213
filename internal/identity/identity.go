// Package identity maps request credentials to an owner id.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
)

var ErrUnauthorized = errors.New("unauthorized")

// Resolver maps a bearer token to the owner it belongs to.
type Resolver interface {
	Resolve(ctx context.Context, token string) (ownerID string, err error)
}

// TokenLookup is the store side of token resolution (see storage.Store).
type TokenLookup interface {
	OwnerByTokenHash(ctx context.Context, hash string) (ownerID string, ok bool, err error)
}

// HashToken returns the hex sha256 of token. Only hashes are persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Static resolves from a fixed token->owner map (config "auth.tokens"),
// falling back to the store when the token is not in the map.
type Static struct {
	mu     sync.RWMutex
	tokens map[string]string
	store  TokenLookup
}

func NewStatic(tokens map[string]string, store TokenLookup) *Static {
	s := &Static{store: store}
	s.Replace(tokens)
	return s
}

// Replace swaps the configured token map (config hot reload).
func (s *Static) Replace(tokens map[string]string) {
	cp := make(map[string]string, len(tokens))
	for tok, owner := range tokens {
		tok = strings.TrimSpace(tok)
		owner = strings.TrimSpace(owner)
		if tok != "" && owner != "" {
			cp[HashToken(tok)] = owner
		}
	}
	s.mu.Lock()
	s.tokens = cp
	s.mu.Unlock()
}

func (s *Static) Resolve(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthorized
	}
	h := HashToken(token)
	s.mu.RLock()
	owner, ok := s.tokens[h]
	s.mu.RUnlock()
	if ok {
		return owner, nil
	}
	if s.store == nil {
		return "", ErrUnauthorized
	}
	owner, ok, err := s.store.OwnerByTokenHash(ctx, h)
	if err != nil {
		return "", err
	}
	if !ok || owner == "" {
		return "", ErrUnauthorized
	}
	return owner, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

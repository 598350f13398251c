package resolver

import (
	"sync"

	"github.com/giantswarm/tokenresolver/internal/clock"
	"github.com/giantswarm/tokenresolver/pkg/oauth"
)

// TokenCache holds one access token per client name.
type TokenCache struct {
	clock clock.Clock

	mu     sync.RWMutex
	tokens map[string]oauth.CachedAccessToken
}

// NewTokenCache creates an empty cache. A nil clock uses real time.
func NewTokenCache(clk clock.Clock) *TokenCache {
	return &TokenCache{
		clock:  clock.OrReal(clk),
		tokens: make(map[string]oauth.CachedAccessToken),
	}
}

// Get returns the token for clientName if it is still valid.
func (c *TokenCache) Get(clientName string) (oauth.CachedAccessToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tok, ok := c.tokens[clientName]
	if !ok || !tok.Valid(c.clock.Now()) {
		return oauth.CachedAccessToken{}, false
	}
	return tok, true
}

// Set replaces the token for clientName.
func (c *TokenCache) Set(clientName string, tok oauth.CachedAccessToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[clientName] = tok
}

// Evict removes the token for clientName, expired or not.
func (c *TokenCache) Evict(clientName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, clientName)
}

// Len returns the number of entries, expired ones included.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

package custodial

import (
	"sync"

	"github.com/thirdfy/agentkit"
)

// cacheKeySentinel stands in for an absent key id so cache keys are always
// well-formed
const cacheKeySentinel = "default"

// Cache memoizes authenticated wallet API clients per signing credential,
// so repeated sponsorship calls reuse one authenticated handle instead of
// re-deriving key material. Entries are immutable once created and never
// evicted: the number of distinct credential pairs in a process is bounded
// by configuration, not by traffic volume, so the map grows monotonically
// and stays small. Long-lived processes with credential churn would need a
// capacity bound as a deliberate extension.
type Cache struct {
	mu      sync.RWMutex
	clients map[string]*Client

	constructor func(Config, agentkit.AuthorizationCredential) (*Client, error)
}

// NewCache creates an empty client cache
func NewCache() *Cache {
	return NewCacheWithConstructor(NewClient)
}

// NewCacheWithConstructor creates a cache that builds clients with a custom
// constructor. Tests use this to observe how often clients are constructed.
func NewCacheWithConstructor(constructor func(Config, agentkit.AuthorizationCredential) (*Client, error)) *Cache {
	return &Cache{
		clients:     make(map[string]*Client),
		constructor: constructor,
	}
}

// CacheKey derives the cache key for a credential pair
func CacheKey(credential agentkit.AuthorizationCredential) string {
	keyID := credential.KeyID
	if keyID == "" {
		keyID = cacheKeySentinel
	}
	return credential.KeySecret + ":" + keyID
}

// GetOrCreate returns the cached client for a credential pair, creating and
// caching it on first use. Concurrent lookups for the same pair converge on
// one handle (single-writer-wins).
func (c *Cache) GetOrCreate(config Config, credential agentkit.AuthorizationCredential) (*Client, error) {
	key := CacheKey(credential)

	c.mu.RLock()
	client, ok := c.clients[key]
	c.mu.RUnlock()
	if ok {
		return client, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	client, err := c.constructor(config, credential)
	if err != nil {
		return nil, err
	}
	c.clients[key] = client

	return client, nil
}

// Len reports the number of cached clients
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

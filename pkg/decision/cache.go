package decision

import (
	"sync"
	"time"

	"mercator-hq/saturn/pkg/compiler"
)

// Cache holds compiled policies for reuse across evaluations. Reads are
// frequent and concurrent; writes happen only after a compilation, so a
// single RWMutex is enough.
//
// Entries are addressed two ways: by exact (policy_id, version) and by
// policy id alone for "current version" lookups. Invalidation removes
// every version of a policy; entries also expire after the TTL.
type Cache struct {
	mu sync.RWMutex

	// byKey maps policy_id@version to entries.
	byKey map[string]*cacheEntry

	// current maps policy_id to the most recently stored key.
	current map[string]string

	ttl time.Duration
}

type cacheEntry struct {
	compiled *compiler.CompiledPolicy
	storedAt time.Time
}

// NewCache creates a cache. A zero ttl means entries never expire.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		byKey:   make(map[string]*cacheEntry),
		current: make(map[string]string),
		ttl:     ttl,
	}
}

// Get returns the compiled policy for an exact (policy_id, version) pair.
func (c *Cache) Get(policyID, version string) (*compiler.CompiledPolicy, bool) {
	c.mu.RLock()
	entry, ok := c.byKey[policyID+"@"+version]
	c.mu.RUnlock()
	return c.alive(entry, ok)
}

// GetCurrent returns the most recently stored version of a policy.
func (c *Cache) GetCurrent(policyID string) (*compiler.CompiledPolicy, bool) {
	c.mu.RLock()
	entry, ok := c.byKey[c.current[policyID]]
	c.mu.RUnlock()
	return c.alive(entry, ok)
}

func (c *Cache) alive(entry *cacheEntry, ok bool) (*compiler.CompiledPolicy, bool) {
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		return nil, false
	}
	return entry.compiled, true
}

// Put stores a compiled policy and marks it the current version.
func (c *Cache) Put(compiled *compiler.CompiledPolicy) {
	key := compiled.CacheKey()
	c.mu.Lock()
	c.byKey[key] = &cacheEntry{compiled: compiled, storedAt: time.Now()}
	c.current[compiled.PolicyID] = key
	c.mu.Unlock()
}

// Invalidate drops every cached version of a policy. Called on policy
// change notifications; the next evaluation recompiles.
func (c *Cache) Invalidate(policyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.byKey {
		if entry.compiled.PolicyID == policyID {
			delete(c.byKey, key)
		}
	}
	delete(c.current, policyID)
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}

package cache

import "sync"

// PlayerCache maps caller identities to their player database IDs.
// Claims hit this on every request, so lookups must not touch the database
// once a player has been created.
type PlayerCache struct {
	mu      sync.RWMutex
	players map[string]uint
}

// NewPlayerCache creates a new PlayerCache
func NewPlayerCache() *PlayerCache {
	return &PlayerCache{
		players: make(map[string]uint),
	}
}

// Get retrieves a player ID by identity
func (c *PlayerCache) Get(identity string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.players[identity]
	return id, ok
}

// Set stores a player ID by identity
func (c *PlayerCache) Set(identity string, id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[identity] = id
}

// Delete removes a player by identity
func (c *PlayerCache) Delete(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.players, identity)
}

// Len returns the number of cached players
func (c *PlayerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.players)
}

// Reset clears all players from the cache
func (c *PlayerCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players = make(map[string]uint)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

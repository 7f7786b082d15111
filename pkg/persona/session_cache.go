package persona

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SessionCache keeps a bounded in-memory ring of recent interactions per
// user. It is the read-hot path and deliberately volatile: the durable log is
// the source of truth for anything beyond the session window. The set of
// tracked users is itself LRU-bounded so idle users fall out over time.
type SessionCache struct {
	window int

	mu    sync.Mutex
	users *lru.Cache[string, []Interaction]
}

func NewSessionCache(window, maxUsers int) *SessionCache {
	if window <= 0 {
		window = 20
	}
	if maxUsers <= 0 {
		maxUsers = 256
	}
	users, err := lru.New[string, []Interaction](maxUsers)
	if err != nil {
		// Size is validated above; lru only errors on size <= 0.
		panic(err)
	}
	return &SessionCache{window: window, users: users}
}

// Append records one interaction, evicting the oldest entry once the
// per-user window is full.
func (c *SessionCache) Append(userID string, in Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ring, _ := c.users.Get(userID)
	ring = append(ring, in)
	if len(ring) > c.window {
		ring = ring[len(ring)-c.window:]
	}
	c.users.Add(userID, ring)
}

// Recent returns up to count interactions in append order, most recent last.
// Unknown users yield an empty slice.
func (c *SessionCache) Recent(userID string, count int) []Interaction {
	if count <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.users.Get(userID)
	if !ok {
		return nil
	}
	if count > len(ring) {
		count = len(ring)
	}
	out := make([]Interaction, count)
	copy(out, ring[len(ring)-count:])
	return out
}

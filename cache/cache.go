// Package cache keeps the entities decoded during one result pass so that
// documents sharing an identity decode to the same object.
package cache

import (
	"fmt"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies an entity: its Go type and its normalised id.
type Key struct {
	Type reflect.Type
	ID   string
}

func (k Key) String() string {
	if k.Type == nil {
		return k.ID
	}
	return fmt.Sprintf("%s#%s", k.Type, k.ID)
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Entities int
	Proxies  int
	Hits     int
	Misses   int
	Checks   int
}

func (s Stats) String() string {
	return fmt.Sprintf("entities: %d, proxies: %d, hits: %d, misses: %d, checks: %d",
		s.Entities, s.Proxies, s.Hits, s.Misses, s.Checks)
}

// EntityCache maps an entity key to at most one decoded object and at most
// one lazy reference proxy. A cache belongs to a single result pass and is
// not safe for concurrent use.
type EntityCache interface {
	// Exists returns whether the entity was reported to exist. Unknown keys
	// report false.
	Exists(k Key) bool
	NotifyExists(k Key, exists bool)

	GetEntity(k Key) (any, bool)
	PutEntity(k Key, v any)

	GetProxy(k Key) (any, bool)
	PutProxy(k Key, v any)

	// Stats returns a copy of the counters.
	Stats() Stats

	// Flush drops everything held and resets the counters.
	Flush()
}

type store interface {
	Get(k Key) (any, bool)
	Add(k Key, v any)
	Len() int
	Purge()
}

type mapStore map[Key]any

func (m mapStore) Get(k Key) (any, bool) {
	v, ok := m[k]
	return v, ok
}

func (m mapStore) Add(k Key, v any) { m[k] = v }
func (m mapStore) Len() int         { return len(m) }
func (m mapStore) Purge()           { clear(m) }

type lruStore struct {
	c *lru.TwoQueueCache[Key, any]
}

func (s lruStore) Get(k Key) (any, bool) { return s.c.Get(k) }
func (s lruStore) Add(k Key, v any)      { s.c.Add(k, v) }
func (s lruStore) Len() int              { return s.c.Len() }
func (s lruStore) Purge()                { s.c.Purge() }

type entityCache struct {
	entities store
	proxies  store
	exists   map[Key]bool
	stats    Stats
}

// New returns an entity cache. A size above zero bounds the number of
// entities and proxies held, evicting the least recently used ones. Any
// other size keeps everything until Flush.
func New(size int) (EntityCache, error) {
	if size <= 0 {
		return &entityCache{
			entities: mapStore{},
			proxies:  mapStore{},
			exists:   map[Key]bool{},
		}, nil
	}

	entities, err := lru.New2Q[Key, any](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	proxies, err := lru.New2Q[Key, any](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &entityCache{
		entities: lruStore{entities},
		proxies:  lruStore{proxies},
		exists:   map[Key]bool{},
	}, nil
}

func (c *entityCache) Exists(k Key) bool {
	c.stats.Checks++
	if _, ok := c.entities.Get(k); ok {
		return true
	}
	return c.exists[k]
}

func (c *entityCache) NotifyExists(k Key, exists bool) {
	c.exists[k] = exists
}

func (c *entityCache) GetEntity(k Key) (any, bool) {
	v, ok := c.entities.Get(k)
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return v, ok
}

func (c *entityCache) PutEntity(k Key, v any) {
	c.exists[k] = true
	c.entities.Add(k, v)
	c.stats.Entities++
}

func (c *entityCache) GetProxy(k Key) (any, bool) {
	v, ok := c.proxies.Get(k)
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return v, ok
}

func (c *entityCache) PutProxy(k Key, v any) {
	c.proxies.Add(k, v)
	c.stats.Proxies++
}

func (c *entityCache) Stats() Stats {
	return c.stats
}

func (c *entityCache) Flush() {
	c.entities.Purge()
	c.proxies.Purge()
	clear(c.exists)
	c.stats = Stats{}
}

type noOpCache struct {
	stats Stats
}

// NoOp returns a cache that never holds anything. Reads always miss, writes
// are dropped, only the check and miss counters move.
func NoOp() EntityCache {
	return &noOpCache{}
}

func (c *noOpCache) Exists(Key) bool {
	c.stats.Checks++
	return false
}

func (c *noOpCache) NotifyExists(Key, bool) {}

func (c *noOpCache) GetEntity(Key) (any, bool) {
	c.stats.Misses++
	return nil, false
}

func (c *noOpCache) PutEntity(Key, any) {}

func (c *noOpCache) GetProxy(Key) (any, bool) {
	c.stats.Misses++
	return nil, false
}

func (c *noOpCache) PutProxy(Key, any) {}

func (c *noOpCache) Stats() Stats { return c.stats }

func (c *noOpCache) Flush() { c.stats = Stats{} }

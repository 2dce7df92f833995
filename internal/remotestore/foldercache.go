package remotestore

import "sync"

type cacheKey struct {
	parentID string
	name     string
}

// FolderCache memoizes resolved folder ids keyed by (parentID, name).
// Entries live for the process lifetime; a cold cache simply re-resolves
// through the remote store. Safe for concurrent use.
type FolderCache struct {
	mu    sync.RWMutex
	ids   map[cacheKey]string
	locks map[cacheKey]*sync.Mutex
}

// NewFolderCache creates an empty folder cache.
func NewFolderCache() *FolderCache {
	return &FolderCache{
		ids:   make(map[cacheKey]string),
		locks: make(map[cacheKey]*sync.Mutex),
	}
}

// Get returns the cached folder id for (parentID, name).
func (c *FolderCache) Get(parentID, name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[cacheKey{parentID, name}]
	return id, ok
}

// Put stores the folder id for (parentID, name).
func (c *FolderCache) Put(parentID, name, folderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[cacheKey{parentID, name}] = folderID
}

// LockKey serializes resolution of a single (parentID, name) pair so two
// concurrent uploads cannot both miss the cache and create duplicate
// remote folders. Returns the unlock function.
func (c *FolderCache) LockKey(parentID, name string) func() {
	key := cacheKey{parentID, name}

	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Len returns the number of cached entries.
func (c *FolderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Clear drops all entries. Intended for tests.
func (c *FolderCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = make(map[cacheKey]string)
	c.locks = make(map[cacheKey]*sync.Mutex)
}

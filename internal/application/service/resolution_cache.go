package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"browser-pilot/internal/domain/entity"
)

// ResolutionCache memoizes instruction resolutions keyed by page structure.
// There is no eviction by time: a mutated page produces a different
// fingerprint and therefore a different key, which strands the old entry.
// Rewrites under the same key supersede, never merge.
type ResolutionCache struct {
	mu      sync.RWMutex
	entries map[string]entity.CacheEntry
	group   singleflight.Group
}

func NewResolutionCache() *ResolutionCache {
	return &ResolutionCache{
		entries: make(map[string]entity.CacheEntry),
	}
}

// Key derives the cache key. The fingerprint goes in first so that a page
// mutation invalidates every instruction cached against the old structure.
func Key(fingerprint, instruction string, mode entity.CacheMode) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write([]byte(instruction))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the entry; a miss is the normal inference trigger,
// not an error.
func (c *ResolutionCache) Get(fingerprint, instruction string, mode entity.CacheMode) (*entity.CacheEntry, bool) {
	key := Key(fingerprint, instruction, mode)
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return &entry, true
}

func (c *ResolutionCache) Put(fingerprint, instruction string, mode entity.CacheMode, action *entity.ActResolution, result []byte) *entity.CacheEntry {
	entry := entity.CacheEntry{
		Key:         Key(fingerprint, instruction, mode),
		Fingerprint: fingerprint,
		Instruction: instruction,
		Mode:        mode,
		Action:      action,
		Result:      result,
		CreatedAt:   time.Now(),
	}
	c.mu.Lock()
	c.entries[entry.Key] = entry
	c.mu.Unlock()
	return &entry
}

// Do coalesces concurrent identical misses: while one caller runs fn for a
// key, other callers with the same key wait for its result instead of
// issuing their own inference.
func (c *ResolutionCache) Do(key string, fn func() (interface{}, error)) (interface{}, error) {
	v, err, _ := c.group.Do(key, fn)
	return v, err
}

func (c *ResolutionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

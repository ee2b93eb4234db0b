package traits

import (
	"strconv"
	"sync"

	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

type cacheEntry struct {
	candidate *Candidate
	err       error
}

// SelectionCache memoizes the winning candidate, or the error, for a
// region-erased trait ref under one projection mode.
type SelectionCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewSelectionCache() *SelectionCache {
	return &SelectionCache{entries: make(map[string]cacheEntry)}
}

func (c *SelectionCache) get(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *SelectionCache) insert(key string, e cacheEntry) {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *SelectionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (s *SelectionContext) cacheKey(tr ts.TraitRef) string {
	erased := s.tcx.Types.EraseRegionsTraitRef(tr)
	return strconv.Itoa(int(s.mode)) + "/" + erased.Key()
}

// useGlobal reports whether tr is answered independently of the env: it
// mentions no type parameter and no where-clause in env is about its trait.
func (s *SelectionContext) useGlobal(env *ParamEnv, tr ts.TraitRef) bool {
	return !tr.Has(ts.HasParams) && !env.hasBoundsFor(tr.Def)
}

// checkCache looks tr up. Trait refs with inference variables are never cached.
func (s *SelectionContext) checkCache(env *ParamEnv, tr ts.TraitRef) (cacheEntry, bool) {
	if tr.Has(ts.HasInfer) {
		return cacheEntry{}, false
	}
	if s.useGlobal(env, tr) {
		return s.tcx.globalCache.get(s.cacheKey(tr))
	}
	return env.cache.get(s.cacheKey(tr))
}

func (s *SelectionContext) insertCache(env *ParamEnv, tr ts.TraitRef, e cacheEntry) {
	if tr.Has(ts.HasInfer) {
		return
	}
	if s.useGlobal(env, tr) {
		s.tcx.globalCache.insert(s.cacheKey(tr), e)
		return
	}
	env.cache.insert(s.cacheKey(tr), e)
}

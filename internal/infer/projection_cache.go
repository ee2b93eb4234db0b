package infer

import ts "github.com/funvibe/traitsolver/internal/typesystem"

// ProjectionCacheState is the lifecycle of a projection normalization.
type ProjectionCacheState uint8

const (
	// ProjInProgress marks a projection being normalized; hitting it again
	// means the normalization is self-referential.
	ProjInProgress ProjectionCacheState = iota
	ProjAmbiguous
	ProjError
	ProjNormalized
)

// ProjectionCacheEntry is the memoized outcome for one projection.
type ProjectionCacheEntry struct {
	State ProjectionCacheState
	Ty    *ts.Type
}

// ProjectionCacheLookup returns the entry for key. Keys are projection
// types with variables resolved.
func (ic *InferCtxt) ProjectionCacheLookup(key *ts.Type) (ProjectionCacheEntry, bool) {
	e, ok := ic.projCache[key]
	return e, ok
}

// ProjectionCacheInsert records an outcome. The write is undone if an
// enclosing snapshot rolls back.
func (ic *InferCtxt) ProjectionCacheInsert(key *ts.Type, e ProjectionCacheEntry) {
	prev, had := ic.projCache[key]
	ic.projCache[key] = e
	ic.log(undoEntry{kind: undoProjCache, key: key, prev: prev, hadPrev: had})
}

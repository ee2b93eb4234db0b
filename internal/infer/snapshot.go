package infer

import ts "github.com/funvibe/traitsolver/internal/typesystem"

type undoKind uint8

const (
	undoNewVar undoKind = iota
	undoBindVar
	undoNewRegionVar
	undoConstraint
	undoProjCache
	undoTaint
)

type undoEntry struct {
	kind    undoKind
	varID   uint32
	key     *ts.Type
	prev    ProjectionCacheEntry
	hadPrev bool
}

// Snapshot marks a point in the undo log.
type Snapshot struct {
	length int
}

func (ic *InferCtxt) log(e undoEntry) {
	if ic.openSnapshots > 0 {
		ic.undo = append(ic.undo, e)
	}
}

// StartSnapshot opens a snapshot. Every snapshot must be closed by exactly
// one RollbackTo or Commit, innermost first.
func (ic *InferCtxt) StartSnapshot() Snapshot {
	ic.openSnapshots++
	return Snapshot{length: len(ic.undo)}
}

// RollbackTo undoes every change made since s was taken.
func (ic *InferCtxt) RollbackTo(s Snapshot) {
	for len(ic.undo) > s.length {
		e := ic.undo[len(ic.undo)-1]
		ic.undo = ic.undo[:len(ic.undo)-1]
		switch e.kind {
		case undoNewVar:
			ic.vars = ic.vars[:len(ic.vars)-1]
		case undoBindVar:
			ic.vars[e.varID] = nil
		case undoNewRegionVar:
			ic.regionVars--
		case undoConstraint:
			ic.constraints = ic.constraints[:len(ic.constraints)-1]
		case undoProjCache:
			if e.hadPrev {
				ic.projCache[e.key] = e.prev
			} else {
				delete(ic.projCache, e.key)
			}
		case undoTaint:
			ic.tainted = false
		}
	}
	ic.openSnapshots--
}

// Commit keeps every change made since s was taken.
func (ic *InferCtxt) Commit(s Snapshot) {
	ic.openSnapshots--
	if ic.openSnapshots == 0 {
		ic.undo = ic.undo[:0]
	}
}

// Probe runs fn and rolls back every inference side effect afterwards.
func Probe[R any](ic *InferCtxt, fn func() R) R {
	s := ic.StartSnapshot()
	defer ic.RollbackTo(s)
	return fn()
}

// CommitIf runs fn and keeps its side effects only when it succeeds.
func CommitIf[R any](ic *InferCtxt, fn func() (R, error)) (R, error) {
	s := ic.StartSnapshot()
	r, err := fn()
	if err != nil {
		ic.RollbackTo(s)
		return r, err
	}
	ic.Commit(s)
	return r, nil
}

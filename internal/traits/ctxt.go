// Package traits resolves trait obligations: candidate assembly, selection,
// confirmation, projection of associated types, fulfillment of pending
// obligations and reporting of the errors that remain.
package traits

import (
	"sync"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/session"
	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// Ctxt is the solver state shared by every inference context of a
// compilation unit. The item table must be frozen before concurrent use.
type Ctxt struct {
	Sess   *session.Session
	Types  *ts.Interner
	Tables *symbols.Table

	globalCache *SelectionCache
	emptyEnv    *ParamEnv
	reporter    *Reporter

	objMu     sync.Mutex
	objSafety map[ts.DefID][]ObjectSafetyViolation
}

func NewCtxt(sess *session.Session, types *ts.Interner, tables *symbols.Table) *Ctxt {
	tcx := &Ctxt{
		Sess:        sess,
		Types:       types,
		Tables:      tables,
		globalCache: NewSelectionCache(),
		emptyEnv:    newEmptyParamEnv(),
		objSafety:   make(map[ts.DefID][]ObjectSafetyViolation),
	}
	tcx.reporter = newReporter(tcx)
	return tcx
}

// Reporter returns the diagnostic reporter of the compilation unit.
func (tcx *Ctxt) Reporter() *Reporter { return tcx.reporter }

// GlobalCache returns the selection cache shared by parameter-free trait refs.
func (tcx *Ctxt) GlobalCache() *SelectionCache { return tcx.globalCache }

func (tcx *Ctxt) isLang(def ts.DefID, name string) bool {
	return tcx.Tables.IsLang(def, name)
}

// closureKindOf maps the call traits to closure kinds.
func (tcx *Ctxt) closureKindOf(def ts.DefID) (ts.ClosureKind, bool) {
	for _, name := range []string{config.FnTraitName, config.FnMutTraitName, config.FnOnceTraitName} {
		if tcx.isLang(def, name) {
			return ts.ClosureKindFromTrait(name)
		}
	}
	return 0, false
}

// LangTraitRef applies the lang trait called name to self.
func (tcx *Ctxt) LangTraitRef(name string, self *ts.Type) (ts.TraitRef, bool) {
	id, ok := tcx.Tables.LangTrait(name)
	if !ok {
		return ts.TraitRef{}, false
	}
	def, _ := tcx.Tables.Trait(id)
	return def.Ref(self, nil, nil), true
}

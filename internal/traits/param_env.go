package traits

import (
	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// ParamEnv is the set of where-clauses in scope, elaborated. Selection
// results for trait refs mentioning type parameters are cached per env.
type ParamEnv struct {
	Predicates []ts.Predicate
	cache      *SelectionCache
}

func newEmptyParamEnv() *ParamEnv {
	return &ParamEnv{cache: NewSelectionCache()}
}

// EmptyParamEnv is the environment with no where-clauses. It is shared by
// the inference contexts of the unit.
func (tcx *Ctxt) EmptyParamEnv() *ParamEnv { return tcx.emptyEnv }

// NewParamEnv elaborates preds into an environment.
func (tcx *Ctxt) NewParamEnv(preds []ts.Predicate) *ParamEnv {
	if len(preds) == 0 {
		return newEmptyParamEnv()
	}
	return &ParamEnv{Predicates: tcx.Elaborate(preds), cache: NewSelectionCache()}
}

// ParamEnvForImpl is the environment inside an impl: its where-clauses.
func (tcx *Ctxt) ParamEnvForImpl(impl *symbols.ImplDef) *ParamEnv {
	return tcx.NewParamEnv(impl.Generics.Predicates)
}

// ParamEnvForTrait is the environment inside a trait: `Self: Trait` plus
// the trait's where-clauses.
func (tcx *Ctxt) ParamEnvForTrait(def *symbols.TraitDef) *ParamEnv {
	preds := append([]ts.Predicate{ts.TraitPredicate(def.IdentityRef(tcx.Types))}, def.Generics.Predicates...)
	return tcx.NewParamEnv(preds)
}

// Cache returns the env-local selection cache.
func (e *ParamEnv) Cache() *SelectionCache { return e.cache }

func (e *ParamEnv) hasBoundsFor(trait ts.DefID) bool {
	for _, p := range e.Predicates {
		if tr, ok := p.PolyTraitRef(); ok && tr.Def == trait {
			return true
		}
	}
	return false
}

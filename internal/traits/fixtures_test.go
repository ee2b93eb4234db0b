package traits

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/infer"
	"github.com/funvibe/traitsolver/internal/session"
	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// world is a small item table with the lang traits defined.
type world struct {
	t    *testing.T
	in   *ts.Interner
	tbl  *symbols.Table
	sink *diagnostics.Collector
	cfg  *config.Config

	sized, copy, fnOnce, fnMut, fn *symbols.TraitDef

	tcx *Ctxt
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		t:    t,
		in:   ts.NewInterner(),
		tbl:  symbols.NewTable("app"),
		sink: &diagnostics.Collector{},
		cfg:  config.Default(),
	}
	w.sized = w.langTrait(config.SizedTraitName)
	w.copy = w.langTrait(config.CopyTraitName)

	w.fnOnce = w.langTrait(config.FnOnceTraitName, "Args")
	w.fnOnce.AssocTypes = []*symbols.AssocTypeDef{{Name: config.OutputItemName}}
	w.fnMut = w.langTrait(config.FnMutTraitName, "Args")
	w.fnMut.Supertraits = []ts.TraitRef{w.fnOnce.Ref(w.self(), []*ts.Type{w.in.Param(1, "Args")}, nil)}
	w.fn = w.langTrait(config.FnTraitName, "Args")
	w.fn.Supertraits = []ts.TraitRef{w.fnMut.Ref(w.self(), []*ts.Type{w.in.Param(1, "Args")}, nil)}
	return w
}

func (w *world) self() *ts.Type { return w.in.Param(0, config.SelfParamName) }

func (w *world) langTrait(name string, params ...string) *symbols.TraitDef {
	def := w.trait(name, params...)
	def.Lang = name
	if err := w.tbl.DefineTrait(def); err != nil {
		w.t.Fatal(err)
	}
	return def
}

// trait creates an undefined trait; define registers it.
func (w *world) trait(name string, params ...string) *symbols.TraitDef {
	return &symbols.TraitDef{
		ID:       w.tbl.NewDefID(ts.LocalCrate),
		Name:     name,
		Generics: symbols.Generics{Params: append([]string{config.SelfParamName}, params...)},
	}
}

func (w *world) define(def *symbols.TraitDef) *symbols.TraitDef {
	w.t.Helper()
	if err := w.tbl.DefineTrait(def); err != nil {
		w.t.Fatal(err)
	}
	return def
}

func (w *world) adt(name string, params ...string) *symbols.AdtDef {
	w.t.Helper()
	def := &symbols.AdtDef{ID: w.tbl.NewDefID(ts.LocalCrate), Name: name, Generics: symbols.Generics{Params: params}}
	if err := w.tbl.DefineAdt(def); err != nil {
		w.t.Fatal(err)
	}
	return def
}

func (w *world) ty(def *symbols.AdtDef, args ...*ts.Type) *ts.Type {
	return w.in.Adt(def.ID, def.Name, args, nil)
}

func (w *world) prim(name string) *ts.Type { return w.in.Prim(name) }

// impl registers `impl<params> trait for self`.
func (w *world) impl(tr ts.TraitRef, params []string, preds ...ts.Predicate) *symbols.ImplDef {
	w.t.Helper()
	def := &symbols.ImplDef{
		ID:       w.tbl.NewDefID(ts.LocalCrate),
		Generics: symbols.Generics{Params: params, Predicates: preds},
		Traits:   []ts.TraitRef{tr},
		SelfTy:   tr.Self,
	}
	if err := w.tbl.DefineImpl(def); err != nil {
		w.t.Fatal(err)
	}
	return def
}

// solver freezes the table and builds the context.
func (w *world) solver() *Ctxt {
	if w.tcx == nil {
		w.tbl.Freeze()
		w.tcx = NewCtxt(session.New(w.cfg, w.sink), w.in, w.tbl)
	}
	return w.tcx
}

func (w *world) selcx(mode ProjectionMode) *SelectionContext {
	return NewSelectionContext(w.solver(), infer.New(w.in), mode)
}

func (w *world) obligation(pred ts.Predicate) *Obligation {
	return NewObligation(NewCause(diagnostics.Span{File: "test", Line: 1, Column: 1}, CauseGoal), nil, pred)
}

func (w *world) diagnostics(code diagnostics.ErrorCode) []*diagnostics.Diagnostic {
	return w.sink.WithCode(code)
}

// fulfill runs the obligations to completion and reports what remains.
func (w *world) fulfill(s *SelectionContext, obligations ...*Obligation) []*FulfillmentError {
	f := NewFulfillmentContext()
	f.RegisterObligations(obligations)
	errs := f.SelectAllOrError(s)
	s.tcx.Reporter().ReportFulfillmentErrors(s.infcx, errs)
	return errs
}

func dump(v any) string {
	return spew.Sdump(v)
}

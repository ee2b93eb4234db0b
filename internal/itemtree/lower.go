package itemtree

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/session"
	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// CrateResolver supplies the items of extern crates not given inline.
type CrateResolver interface {
	// ResolveCrate returns the newest version of name matching constraint
	// together with its items.
	ResolveCrate(ctx context.Context, name, constraint string) (version string, items *Items, err error)
}

// ErrNoResolver is returned for extern crates without inline items when
// no metadata store is configured.
var ErrNoResolver = errors.New("no crate metadata store configured")

// Program is a lowered unit: the item table and the goals to check.
type Program struct {
	Unit   *Unit
	Types  *ts.Interner
	Tables *symbols.Table
	Goals  []*Goal

	l *lowerer
}

// lowerer holds the state of lowering one unit.
type lowerer struct {
	sess *session.Session
	unit *Unit
	in   *ts.Interner
	tbl  *symbols.Table

	// file names the source of the crate being lowered, for spans.
	file     string
	closures int
	errors   int
}

var langItems = []string{
	config.SizedTraitName, config.CopyTraitName, config.DropTraitName,
	config.FnOnceTraitName, config.FnMutTraitName, config.FnTraitName,
}

// Lower resolves u into a fresh item table. Errors are emitted to sess as
// load diagnostics; the returned error is non-nil when any was reported or
// an extern crate could not be resolved. The table is not frozen.
func Lower(ctx context.Context, sess *session.Session, in *ts.Interner, u *Unit, res CrateResolver) (*Program, error) {
	l := &lowerer{sess: sess, unit: u, in: in, tbl: symbols.NewTable(u.Crate)}
	prog := &Program{Unit: u, Types: in, Tables: l.tbl, l: l}

	if u.Version != "" {
		if _, err := semver.NewVersion(u.Version); err != nil {
			l.errorf(diagnostics.Span{File: u.File}, "invalid crate version %q: %v", u.Version, err)
		}
	}

	for _, ext := range u.Extern {
		if err := l.lowerExtern(ctx, ext, res); err != nil {
			return prog, err
		}
	}

	l.file = u.File
	l.lowerItems(ts.LocalCrate, &u.Items)

	for i, g := range u.Goals {
		name := g.Name
		if name == "" {
			name = fmt.Sprintf("goal #%d", i+1)
		}
		prog.Goals = append(prog.Goals, &Goal{Name: name, Kind: g.kind(), Span: l.span(g.Pos), Mode: g.Mode, item: g, prog: prog})
	}

	sess.Log.Printf("lowered crate %s: %d traits, %d impls, %d goals",
		u.Crate, len(l.tbl.Traits()), len(l.tbl.AllImpls()), len(prog.Goals))
	if l.errors > 0 {
		return prog, fmt.Errorf("%w (%d errors while loading %s)", session.ErrAborted, l.errors, u.File)
	}
	return prog, nil
}

func (l *lowerer) lowerExtern(ctx context.Context, ext *ExternItem, res CrateResolver) error {
	items := ext.Items
	version := ext.Version
	l.file = l.unit.File
	if items != nil {
		if version != "" {
			if _, err := semver.NewVersion(version); err != nil {
				l.errorf(l.span(ext.Pos), "invalid version %q for inline crate `%s`: %v", version, ext.Name, err)
			}
		}
	} else {
		if res == nil {
			l.errorf(l.span(ext.Pos), "cannot resolve extern crate `%s`: %v", ext.Name, ErrNoResolver)
			return fmt.Errorf("extern crate %s: %w", ext.Name, ErrNoResolver)
		}
		v, it, err := res.ResolveCrate(ctx, ext.Name, ext.Version)
		if err != nil {
			l.errorf(l.span(ext.Pos), "cannot resolve extern crate `%s`: %v", ext.Name, err)
			return fmt.Errorf("extern crate %s: %w", ext.Name, err)
		}
		version, items = v, it
		l.file = fmt.Sprintf("<%s %s>", ext.Name, version)
	}

	num, err := l.tbl.AddCrate(ext.Name, version)
	if err != nil {
		l.errorf(l.span(ext.Pos), "%v", err)
		return nil
	}
	l.sess.Log.Printf("extern crate %s %s as c%d", ext.Name, version, num)
	l.lowerItems(num, items)
	return nil
}

func (l *lowerer) span(p Pos) diagnostics.Span {
	return diagnostics.Span{File: l.file, Line: p.Line, Column: p.Column}
}

func (l *lowerer) errorf(span diagnostics.Span, format string, args ...any) {
	l.errors++
	l.sess.Emit(diagnostics.New(diagnostics.ErrLoad, span, format, args...))
}

// exprErr reports err against expression x, pointing into it when the
// error carries a column.
func (l *lowerer) exprErr(x Expr, err error) {
	span := l.span(x.Pos)
	var ee *exprError
	var pe *ParseError
	switch {
	case errors.As(err, &ee):
		span.Column += x.column(ee.off)
	case errors.As(err, &pe):
		span.Column += x.column(pe.Offset)
		l.errorf(span, "syntax error in `%s`: %s", x.Text, pe.Msg)
		return
	}
	l.errorf(span, "%v", err)
}

// column converts an offset within the expression text into a column
// delta from the scalar start.
func (x Expr) column(off int) int {
	if off <= 0 {
		return 0
	}
	if x.Quoted {
		return off
	}
	return off - 1
}

func (l *lowerer) typeExpr(sc *scope, x Expr) (*ts.Type, bool) {
	e, err := ParseTypeExpr(x.Text)
	if err == nil {
		var t *ts.Type
		if t, err = l.lowerType(sc, e); err == nil {
			return t, true
		}
	}
	l.exprErr(x, err)
	return nil, false
}

func (l *lowerer) predicateExpr(sc *scope, x Expr) ([]ts.Predicate, bool) {
	e, err := ParsePredicateExpr(x.Text)
	if err == nil {
		var preds []ts.Predicate
		if preds, err = l.lowerPredicate(sc, e); err == nil {
			return preds, true
		}
	}
	l.exprErr(x, err)
	return nil, false
}

// boundsExpr lowers `Trait + 'a` applied to subject.
func (l *lowerer) boundsExpr(sc *scope, x Expr, subject *ts.Type) ([]ts.Predicate, bool) {
	e, err := ParseBoundsExpr(x.Text)
	if err == nil {
		var preds []ts.Predicate
		if preds, err = l.lowerBounds(sc, e, subject); err == nil {
			return preds, true
		}
	}
	l.exprErr(x, err)
	return nil, false
}

func (l *lowerer) whereClauses(sc *scope, where []Expr) []ts.Predicate {
	var out []ts.Predicate
	for _, x := range where {
		preds, _ := l.predicateExpr(sc, x)
		out = append(out, preds...)
	}
	return out
}

// lowerItems defines the items of one crate. Names are declared before any
// signature is lowered so items can refer to each other in any order.
func (l *lowerer) lowerItems(crate ts.CrateNum, items *Items) {
	adts := make([]*symbols.AdtDef, len(items.Adts))
	for i, it := range items.Adts {
		kind := symbols.Struct
		switch it.Kind {
		case "", "struct":
		case "enum":
			kind = symbols.Enum
		default:
			l.errorf(l.span(it.Pos), "unknown ADT kind %q for `%s`", it.Kind, it.Name)
		}
		def := &symbols.AdtDef{
			ID:       l.tbl.NewDefID(crate),
			Name:     it.Name,
			Kind:     kind,
			Generics: symbols.Generics{Params: it.Params, Regions: it.Regions},
			Span:     l.span(it.Pos),
		}
		if err := l.tbl.DefineAdt(def); err != nil {
			l.errorf(def.Span, "%v", err)
		}
		adts[i] = def
	}

	traits := make([]*symbols.TraitDef, len(items.Traits))
	for i, it := range items.Traits {
		def := &symbols.TraitDef{
			ID:       l.tbl.NewDefID(crate),
			Name:     it.Name,
			Generics: symbols.Generics{Params: selfParams(it.Params), Regions: it.Regions},
			Span:     l.span(it.Pos),
		}
		if it.Lang != "" {
			if !isLangItem(it.Lang) {
				l.errorf(def.Span, "unknown lang item %q", it.Lang)
			} else {
				def.Lang = it.Lang
			}
		}
		for _, at := range it.Types {
			def.AssocTypes = append(def.AssocTypes, &symbols.AssocTypeDef{Name: at.Name, Span: l.span(at.Pos)})
		}
		if err := l.tbl.DefineTrait(def); err != nil {
			l.errorf(def.Span, "%v", err)
		}
		traits[i] = def
	}

	// Supertraits first: Self::Item lookups in other signatures walk them.
	for i, it := range items.Traits {
		l.lowerSupertraits(crate, traits[i], it)
	}
	for i, it := range items.Adts {
		sc := &scope{crate: crate, params: it.Params, regions: it.Regions}
		adts[i].Generics.Predicates = l.whereClauses(sc, it.Where)
	}
	for i, it := range items.Traits {
		l.lowerTraitBody(crate, traits[i], it)
	}
	for _, it := range items.Impls {
		l.lowerImpl(crate, it)
	}
}

func isLangItem(name string) bool {
	for _, n := range langItems {
		if n == name {
			return true
		}
	}
	return false
}

func (l *lowerer) traitScope(crate ts.CrateNum, def *symbols.TraitDef) *scope {
	return &scope{crate: crate, params: def.Generics.Params, regions: def.Generics.Regions, trait: def}
}

func (l *lowerer) lowerSupertraits(crate ts.CrateNum, def *symbols.TraitDef, it *TraitItem) {
	sc := l.traitScope(crate, def)
	self := l.in.Param(0, config.SelfParamName)
	for _, x := range it.Supertraits {
		preds, ok := l.boundsExpr(sc, x, self)
		if !ok {
			continue
		}
		for _, p := range preds {
			if p.Kind == ts.PredTrait {
				def.Supertraits = append(def.Supertraits, p.Trait)
			} else {
				def.Generics.Predicates = append(def.Generics.Predicates, p)
			}
		}
	}
}

func (l *lowerer) lowerTraitBody(crate ts.CrateNum, def *symbols.TraitDef, it *TraitItem) {
	sc := l.traitScope(crate, def)
	def.Generics.Predicates = append(def.Generics.Predicates, l.whereClauses(sc, it.Where)...)

	identity := def.IdentityRef(l.in)
	for i, at := range it.Types {
		decl := def.AssocTypes[i]
		subject := l.in.Projection(ts.ProjectionTy{Trait: identity, Item: at.Name})
		for _, x := range at.Bounds {
			preds, _ := l.boundsExpr(sc, x, subject)
			decl.Bounds = append(decl.Bounds, preds...)
		}
		if at.Default != nil {
			decl.Default, _ = l.typeExpr(sc, *at.Default)
		}
	}

	for _, m := range it.Methods {
		if sig, ok := l.lowerMethod(sc, m); ok {
			def.Methods = append(def.Methods, sig)
		}
	}

	if it.OnUnimplemented != nil {
		def.OnUnimplemented = &symbols.OnUnimplemented{
			Message: it.OnUnimplemented.Message,
			Label:   it.OnUnimplemented.Label,
			Note:    it.OnUnimplemented.Note,
		}
	}
}

func (l *lowerer) lowerMethod(traitScope *scope, m *MethodItem) (*symbols.MethodSig, bool) {
	sig := &symbols.MethodSig{
		Name:           m.Name,
		TypeParams:     m.Params,
		WhereSelfSized: m.SelfSized,
		HasDefault:     m.Default,
		Span:           l.span(m.Pos),
	}
	switch m.Receiver {
	case "":
		sig.Receiver = symbols.NoReceiver
	case "self":
		sig.Receiver = symbols.ByValue
	case "&self":
		sig.Receiver = symbols.ByRef
	case "&mut self":
		sig.Receiver = symbols.ByMutRef
	case "self: Box<Self>", "box self":
		sig.Receiver = symbols.ByBox
	default:
		l.errorf(sig.Span, "unsupported receiver %q on method `%s`", m.Receiver, m.Name)
		return nil, false
	}

	sc := *traitScope
	sc.params = append(append([]string(nil), traitScope.params...), m.Params...)
	ok := true
	for _, x := range m.Inputs {
		t, good := l.typeExpr(&sc, x)
		ok = ok && good
		sig.Inputs = append(sig.Inputs, t)
	}
	sig.Output = l.in.Unit()
	if m.Output != nil {
		var good bool
		sig.Output, good = l.typeExpr(&sc, *m.Output)
		ok = ok && good
	}
	return sig, ok
}

func (l *lowerer) lowerImpl(crate ts.CrateNum, it *ImplItem) {
	def := &symbols.ImplDef{
		ID:       l.tbl.NewDefID(crate),
		Generics: symbols.Generics{Params: it.Params, Regions: it.Regions},
		Span:     l.span(it.Pos),
	}
	sc := &scope{crate: crate, params: it.Params, regions: it.Regions}

	if it.For.Text == "" {
		l.errorf(def.Span, "impl without a self type (`for`)")
		return
	}
	self, ok := l.typeExpr(sc, it.For)
	if !ok {
		return
	}
	def.SelfTy = self

	// Where-clauses come before the headers so T::Item in a trait argument
	// can use them.
	def.Generics.Predicates = l.whereClauses(sc, it.Where)

	headers := it.Traits
	if it.Trait != nil {
		headers = append([]Expr{*it.Trait}, headers...)
	}
	for _, x := range headers {
		preds, ok := l.boundsExpr(sc, x, self)
		if !ok {
			return
		}
		for _, p := range preds {
			if p.Kind != ts.PredTrait {
				l.errorf(l.span(x.Pos), "impl header `%s` may only name traits", x.Text)
				return
			}
			def.Traits = append(def.Traits, p.Trait)
		}
	}

	for _, at := range it.Types {
		t, ok := l.typeExpr(sc, at.Type)
		if !ok {
			continue
		}
		def.AssocTypes = append(def.AssocTypes, &symbols.ImplAssocType{Name: at.Name, Ty: t, Default: at.Default, Span: l.span(at.Pos)})
	}
	for _, m := range it.Methods {
		def.Methods = append(def.Methods, &symbols.ImplMethod{Name: m.Name, Default: m.Default, Span: l.span(m.Pos)})
	}

	if err := l.tbl.DefineImpl(def); err != nil {
		l.errorf(def.Span, "%v", err)
	}
}

package traits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	set "github.com/hashicorp/go-set/v3"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/infer"
	"github.com/funvibe/traitsolver/internal/symbols"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// Reporter turns selection and fulfillment errors into diagnostics. It is
// the only place where solver errors become text.
type Reporter struct {
	tcx *Ctxt

	mu sync.Mutex
	// seen holds (span, severity, resolved predicate) of every report.
	seen *set.Set[string]
}

func newReporter(tcx *Ctxt) *Reporter {
	return &Reporter{tcx: tcx, seen: set.New[string](16)}
}

func (r *Reporter) firstTime(span diagnostics.Span, sev diagnostics.Severity, pred ts.Predicate) bool {
	key := span.String() + "|" + sev.String() + "|" + pred.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen.Insert(key)
}

func (r *Reporter) emit(infcx *infer.InferCtxt, o *Obligation, pred ts.Predicate, d *diagnostics.Diagnostic) {
	if !r.firstTime(d.Span, d.Severity, pred) {
		return
	}
	r.noteObligationCauseChain(d, o.Cause.Code)
	r.tcx.Sess.Emit(d)
	if d.IsError() && infcx != nil {
		infcx.SetTainted()
	}
}

// ReportOverflow emits the fatal overflow diagnostic for o and unwinds.
// Predicates referencing the error type are fallout of an earlier error
// and are not reported.
func (r *Reporter) ReportOverflow(o *Obligation) {
	if o.Predicate.Has(ts.HasError) {
		return
	}
	limit := r.tcx.Sess.RecursionLimit()
	d := diagnostics.New(diagnostics.ErrOverflow, o.Cause.Span,
		"overflow evaluating the requirement `%s`", o.Predicate).
		WithHelp("consider raising the recursion limit to %d (`recursion_limit` in %s)", limit*2, config.ConfigFileNames[0])
	r.noteObligationCauseChain(d, o.Cause.Code)
	r.tcx.Sess.Fatal(d)
}

// ReportFulfillmentErrors reports errs. Definite errors go first so that
// ambiguities caused by them are recognized as fallout and dropped.
func (r *Reporter) ReportFulfillmentErrors(infcx *infer.InferCtxt, errs []*FulfillmentError) {
	for _, e := range errs {
		if e.Kind != CodeAmbiguity {
			r.ReportFulfillmentError(infcx, e)
		}
	}
	for _, e := range errs {
		if e.Kind == CodeAmbiguity {
			r.ReportFulfillmentError(infcx, e)
		}
	}
}

// ReportFulfillmentError reports a single error.
func (r *Reporter) ReportFulfillmentError(infcx *infer.InferCtxt, e *FulfillmentError) {
	o := e.Obligation
	pred := infcx.ResolvePredicate(o.Predicate)
	if pred.Has(ts.HasError) {
		return
	}
	switch e.Kind {
	case CodeSelectionError:
		r.reportSelectionError(infcx, o, pred, e.Err)
	case CodeProjectionError:
		d := diagnostics.New(diagnostics.ErrProjectionMismatch, o.Cause.Span,
			"type mismatch resolving `%s`", pred)
		if e.Err != nil {
			d.WithNote("%v", e.Err)
		}
		r.emit(infcx, o, pred, d)
	case CodeEquateError:
		d := diagnostics.New(diagnostics.ErrTypeMismatch, o.Cause.Span,
			"mismatched types: expected `%s`, found `%s`", pred.Ty, pred.A)
		var te *infer.TypeError
		if errors.As(e.Err, &te) && (te.Expected != pred.Ty || te.Found != pred.A) {
			d.WithNote("expected `%s`, found `%s`", te.Expected, te.Found)
		}
		r.emit(infcx, o, pred, d)
	case CodeAmbiguity:
		r.reportAmbiguity(infcx, o, pred)
	}
}

func (r *Reporter) reportSelectionError(infcx *infer.InferCtxt, o *Obligation, pred ts.Predicate, err error) {
	var serr *SelectionError
	if !errors.As(err, &serr) {
		serr = errUnimplemented
	}
	switch serr.Kind {
	case Unimplemented:
		if pred.Kind == ts.PredTrait {
			r.reportUnimplemented(infcx, o, pred)
			return
		}
		d := diagnostics.New(diagnostics.ErrUnimplemented, o.Cause.Span,
			"the requirement `%s` is not satisfied", pred)
		r.emit(infcx, o, pred, d)

	case OutputTypeParameterMismatch:
		d := diagnostics.New(diagnostics.ErrOutputTypeMismatch, o.Cause.Span,
			"type mismatch: the type `%s` implements the trait `%s`, but the trait `%s` is required",
			serr.Expected.Self, serr.Expected.Path(), serr.Found.Path())
		if serr.Err != nil {
			d.WithNote("%v", serr.Err)
		}
		r.emit(infcx, o, pred, d)

	case TraitNotObjectSafe:
		name := r.tcx.Tables.ItemName(serr.Trait)
		d := diagnostics.New(diagnostics.ErrNotObjectSafe, o.Cause.Span,
			"the trait `%s` cannot be made into an object", name)
		for _, v := range r.tcx.ObjectSafetyViolations(serr.Trait) {
			if v.Trait != name {
				d.WithNote("%s (in supertrait `%s`)", v, v.Trait)
				continue
			}
			d.WithNote("%s", v)
		}
		r.emit(infcx, o, pred, d)

	case ClosureKindMismatch:
		d := diagnostics.New(diagnostics.ErrClosureKind, o.Cause.Span,
			"expected a closure that implements the `%s` trait, but this closure only implements `%s`",
			serr.Requested, serr.Closure.ClosureKind())
		r.emit(infcx, o, pred, d)
	}
}

func (r *Reporter) reportUnimplemented(infcx *infer.InferCtxt, o *Obligation, pred ts.Predicate) {
	tr := pred.Trait
	span := o.Cause.Span
	d := diagnostics.New(diagnostics.ErrUnimplemented, span,
		"the trait bound `%s: %s` is not satisfied", tr.Self, tr.Path())
	d.WithLabel(span, "the trait `%s` is not implemented for `%s`", tr.Path(), tr.Self)

	if !tr.Has(ts.HasInfer) && r.predicateCanApply(o.ParamEnv, tr) {
		d.WithHelp("consider adding a `where %s: %s` bound", tr.Self, tr.Path())
		r.emit(infcx, o, pred, d)
		return
	}

	if def, ok := r.tcx.Tables.Trait(tr.Def); ok && def.OnUnimplemented != nil {
		if r.applyOnUnimplemented(d, def, tr) {
			r.emit(infcx, o, pred, d)
			return
		}
	}

	r.noteSimilarImpls(d, tr)
	r.emit(infcx, o, pred, d)
}

// predicateCanApply reports whether tr could hold if its type parameters
// were chosen differently, i.e. whether a where-clause would fix it.
func (r *Reporter) predicateCanApply(env *ParamEnv, tr ts.TraitRef) bool {
	if !tr.Has(ts.HasParams) {
		return false
	}
	infcx := infer.New(r.tcx.Types)
	vars := make(map[*ts.Type]*ts.Type)
	folder := &ts.BottomUpFolder{In: r.tcx.Types, TyOp: func(t *ts.Type) *ts.Type {
		if !t.IsParam() {
			return t
		}
		v, ok := vars[t]
		if !ok {
			v = infcx.NewVar()
			vars[t] = v
		}
		return v
	}}
	cleaned := r.tcx.Types.FoldTraitRef(tr, folder)
	s := NewSelectionContext(r.tcx, infcx, ModeAnyFinal)
	o := NewObligation(nil, env, ts.TraitPredicate(cleaned))
	return s.EvaluateObligation(o).MayApply()
}

// applyOnUnimplemented replaces the message, label and note with the
// trait's templates. A template that fails to format is reported and the
// default message is kept.
func (r *Reporter) applyOnUnimplemented(d *diagnostics.Diagnostic, def *symbols.TraitDef, tr ts.TraitRef) bool {
	values := map[string]string{config.SelfParamName: tr.Self.String()}
	for i, name := range def.ParamNames() {
		if i < len(tr.Args) {
			values[name] = tr.Args[i].String()
		}
	}
	format := func(tmpl string) (string, bool) {
		out, err := formatOnUnimplemented(tmpl, values)
		if err != nil {
			r.tcx.Sess.Emit(diagnostics.New(diagnostics.ErrOnUnimplementedParse, def.Span,
				"invalid `on_unimplemented` template on trait `%s`: %v", def.Name, err))
			return "", false
		}
		return out, true
	}

	ou := def.OnUnimplemented
	msg, ok := format(ou.Message)
	if !ok {
		return false
	}
	if msg != "" {
		d.Message = msg
	}
	if ou.Label != "" {
		if label, ok := format(ou.Label); ok {
			d.Labels[0].Message = label
		}
	}
	if ou.Note != "" {
		if note, ok := format(ou.Note); ok {
			d.WithNote("%s", note)
		}
	}
	return true
}

// formatOnUnimplemented expands {Name} references. `{{` and `}}` are
// literal braces.
func formatOnUnimplemented(tmpl string, values map[string]string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated `{` at offset %d", i)
			}
			name := strings.TrimSpace(tmpl[i+1 : i+end])
			if name == "" {
				return "", fmt.Errorf("missing parameter name at offset %d", i)
			}
			v, ok := values[name]
			if !ok {
				return "", fmt.Errorf("there is no type parameter %s", strconv.Quote(name))
			}
			sb.WriteString(v)
			i += end
		case c == '}':
			return "", fmt.Errorf("unmatched `}` at offset %d", i)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// noteSimilarImpls lists impls of the trait whose self type has the same
// outer constructor as tr's.
func (r *Reporter) noteSimilarImpls(d *diagnostics.Diagnostic, tr ts.TraitRef) {
	want, wantOK := ts.Simplify(tr.Self)
	var similar []string
	for _, impl := range r.tcx.Tables.ImplsOfTrait(tr.Def) {
		header, ok := impl.TraitRefFor(tr.Def)
		if !ok {
			continue
		}
		if wantOK {
			got, ok := ts.Simplify(header.Self)
			if !ok || got != want {
				continue
			}
		}
		similar = append(similar, "  "+header.String())
	}
	if len(similar) == 0 {
		return
	}
	limit := r.tcx.Sess.Config.SimilarImplLimit
	var sb strings.Builder
	sb.WriteString("the following implementations were found:")
	for i, s := range similar {
		if i == limit {
			break
		}
		sb.WriteString("\n" + s)
	}
	if len(similar) > limit {
		fmt.Fprintf(&sb, "\nand %d others", len(similar)-limit)
	}
	d.WithNote("%s", sb.String())
}

func (r *Reporter) reportAmbiguity(infcx *infer.InferCtxt, o *Obligation, pred ts.Predicate) {
	if infcx.Tainted() {
		return
	}
	span := o.Cause.Span
	var d *diagnostics.Diagnostic
	switch pred.Kind {
	case ts.PredTrait:
		if r.tcx.isLang(pred.Trait.Def, config.SizedTraitName) {
			d = diagnostics.New(diagnostics.ErrAmbiguity, span, "type annotations needed")
			d.WithLabel(span, "cannot infer type")
			break
		}
		d = diagnostics.New(diagnostics.ErrAmbiguity, span,
			"type annotations needed: cannot satisfy `%s`", pred)
		d.WithNote("multiple impls or where-clauses could satisfy `%s: %s`", pred.Trait.Self, pred.Trait.Path())
	default:
		d = diagnostics.New(diagnostics.ErrAmbiguity, span,
			"type annotations needed: cannot resolve `%s`", pred)
	}
	r.emit(infcx, o, pred, d)
}

// noteObligationCauseChain explains code and its ancestors, innermost
// first, stopping at the recursion limit.
func (r *Reporter) noteObligationCauseChain(d *diagnostics.Diagnostic, code *CauseCode) {
	limit := r.tcx.Sess.RecursionLimit()
	for depth := 0; code != nil; depth++ {
		if depth >= limit {
			d.WithNote("... (remaining requirements omitted)")
			return
		}
		if note := r.causeNote(code); note != "" {
			d.WithNote("%s", note)
		}
		code = code.Parent
	}
}

func (r *Reporter) causeNote(code *CauseCode) string {
	switch code.Kind {
	case CauseItem:
		return fmt.Sprintf("required by a bound in `%s`", r.tcx.Tables.ItemName(code.Item))
	case CauseImplDerived:
		return fmt.Sprintf("required because of the requirements on the impl of `%s` for `%s`",
			code.ParentTrait.Path(), code.ParentTrait.Self)
	case CauseBuiltinDerived:
		if code.ParentTrait.Self == nil {
			return ""
		}
		return fmt.Sprintf("required because it appears within the type `%s`", code.ParentTrait.Self)
	case CauseProjection:
		return fmt.Sprintf("required when projecting an associated type of `%s`", code.ParentTrait)
	case CauseWellFormed:
		return "required so that the type is well-formed"
	case CauseCoherence:
		return "required by the coherence check"
	}
	return ""
}

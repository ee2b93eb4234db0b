package driver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/infer"
	"github.com/funvibe/traitsolver/internal/itemtree"
	"github.com/funvibe/traitsolver/internal/pipeline"
	"github.com/funvibe/traitsolver/internal/session"
	"github.com/funvibe/traitsolver/internal/traits"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// GoalProcessor runs the goals of a coherent unit in order. An overflow
// halts the unit: the remaining goals are not run.
type GoalProcessor struct{}

func (gp *GoalProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Coherence == nil || ctx.Traits == nil {
		return ctx
	}
	for _, g := range ctx.Program.Goals {
		if err := ctx.Context.Err(); err != nil {
			ctx.Errors = append(ctx.Errors, err)
			return ctx
		}
		var res *pipeline.GoalResult
		if err := session.Catch(func() { res = RunGoal(ctx.Traits, g) }); err != nil {
			ctx.Results = append(ctx.Results, &pipeline.GoalResult{
				Name: g.Name, Kind: g.Kind, Span: g.Span, Outcome: pipeline.OutcomeError, Output: "overflow",
			})
			ctx.Errors = append(ctx.Errors, err)
			return ctx
		}
		ctx.Results = append(ctx.Results, res)
	}
	if err := ctx.Session.AbortIfErrors(); err != nil {
		ctx.Errors = append(ctx.Errors, err)
	}
	return ctx
}

// ParseMode maps a projection mode name to its mode. The empty name is
// the type-checking mode.
func ParseMode(name string) (traits.ProjectionMode, error) {
	if name == "" {
		return traits.ModeAnyFinal, nil
	}
	for _, m := range []traits.ProjectionMode{traits.ModeAnyFinal, traits.ModeTopmost, traits.ModeAny} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown projection mode %q (want any-final, topmost or any)", name)
}

// goalRun is one goal instantiated in its own inference context.
type goalRun struct {
	tcx   *traits.Ctxt
	ic    *infer.InferCtxt
	selcx *traits.SelectionContext
	env   *traits.ParamEnv
	cause *traits.ObligationCause
	inst  *itemtree.GoalInstance
}

// RunGoal runs g in a fresh inference context. Failures are reported to
// the session of tcx. Overflow unwinds through session.Fatal.
func RunGoal(tcx *traits.Ctxt, g *itemtree.Goal) *pipeline.GoalResult {
	res := &pipeline.GoalResult{Name: g.Name, Kind: g.Kind, Span: g.Span, Outcome: pipeline.OutcomeError}

	mode, err := ParseMode(g.Mode)
	if err != nil {
		tcx.Sess.Emit(diagnostics.New(diagnostics.ErrLoad, g.Span, "%v", err))
		return res
	}
	ic := infer.New(tcx.Types)
	inst, ok := g.Instantiate(ic)
	if !ok {
		return res
	}
	r := &goalRun{
		tcx:   tcx,
		ic:    ic,
		selcx: traits.NewSelectionContext(tcx, ic, mode),
		env:   tcx.NewParamEnv(inst.Where),
		cause: traits.NewCause(g.Span, traits.CauseGoal),
		inst:  inst,
	}
	tcx.Sess.Log.Printf("goal %s: %s in mode %s", g.Name, g, mode)

	switch g.Kind {
	case itemtree.GoalProve:
		r.prove(res)
	case itemtree.GoalNormalize:
		r.normalize(res)
	case itemtree.GoalSelect:
		r.selectEvidence(res)
	}
	return res
}

// fulfill proves obligations, reports what fails and returns the outcome.
func (r *goalRun) fulfill(obligations []*traits.Obligation) pipeline.Outcome {
	fcx := traits.NewFulfillmentContext()
	fcx.RegisterObligations(obligations)
	errs := fcx.SelectAllOrError(r.selcx)
	r.tcx.Reporter().ReportFulfillmentErrors(r.ic, errs)
	return outcomeOf(errs)
}

func outcomeOf(errs []*traits.FulfillmentError) pipeline.Outcome {
	out := pipeline.OutcomeOk
	for _, e := range errs {
		if e.Kind != traits.CodeAmbiguity {
			return pipeline.OutcomeError
		}
		out = pipeline.OutcomeAmbiguous
	}
	return out
}

func (r *goalRun) obligations(preds []ts.Predicate) []*traits.Obligation {
	out := make([]*traits.Obligation, len(preds))
	for i, p := range preds {
		out[i] = traits.NewObligation(r.cause, r.env, p)
	}
	return out
}

func (r *goalRun) prove(res *pipeline.GoalResult) {
	res.Outcome = r.fulfill(r.obligations(r.inst.Preds))
	res.Output = r.bindings()
}

// normalize resolves every projection in the goal type. With an expected
// type the result must also equal it.
func (r *goalRun) normalize(res *pipeline.GoalResult) {
	ty, obligations := r.selcx.Normalize(r.cause, r.env, r.inst.Type)
	if r.inst.Expect != nil {
		obligations = append(obligations,
			traits.NewObligation(r.cause, r.env, ts.EquatePredicate(ty, r.inst.Expect)))
	}
	res.Outcome = r.fulfill(obligations)
	res.Output = r.ic.Resolve(ty).String()
}

// selectEvidence selects the single trait predicate of the goal and then
// proves the nested obligations of the selection.
func (r *goalRun) selectEvidence(res *pipeline.GoalResult) {
	o := traits.NewObligation(r.cause, r.env, r.inst.Preds[0])
	sel, err := r.selcx.Select(o)
	switch {
	case err != nil:
		r.tcx.Reporter().ReportFulfillmentError(r.ic, &traits.FulfillmentError{
			Obligation: o, Kind: traits.CodeSelectionError, Err: err,
		})
		return
	case sel == nil:
		r.tcx.Reporter().ReportFulfillmentError(r.ic, &traits.FulfillmentError{
			Obligation: o, Kind: traits.CodeAmbiguity,
		})
		res.Outcome = pipeline.OutcomeAmbiguous
		return
	}
	res.Outcome = r.fulfill(sel.Nested)
	res.Output = r.describe(sel)
}

func (r *goalRun) describe(sel *traits.Selection) string {
	switch sel.Kind {
	case traits.ImplCandidate:
		impl, ok := r.tcx.Tables.Impl(sel.Impl)
		if !ok {
			return sel.Kind.String()
		}
		s := impl.Describe()
		if args := r.substs(impl.Generics.Params, sel.Substs); args != "" {
			s += " with " + args
		}
		return s
	case traits.ParamCandidate:
		return fmt.Sprintf("where-clause `%s`", ts.TraitPredicate(r.ic.ResolveTraitRef(sel.Param)))
	case traits.ObjectCandidate:
		return fmt.Sprintf("object candidate `%s`", r.ic.ResolveTraitRef(sel.Object))
	case traits.ClosureCandidate, traits.FnPointerCandidate:
		return fmt.Sprintf("%s `%s`", sel.Kind, r.ic.Resolve(sel.FnTy))
	}
	return sel.Kind.String()
}

func (r *goalRun) substs(names []string, s ts.Substs) string {
	var parts []string
	for i, t := range s.Types {
		if i >= len(names) {
			break
		}
		parts = append(parts, names[i]+" = "+r.ic.Resolve(t).String())
	}
	return strings.Join(parts, ", ")
}

// bindings prints the values of the goal's named variables, sorted by name.
func (r *goalRun) bindings() string {
	names := make([]string, 0, len(r.inst.Vars))
	for name := range r.inst.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = "?" + name + " = " + r.ic.Resolve(r.inst.Vars[name]).String()
	}
	return strings.Join(parts, ", ")
}

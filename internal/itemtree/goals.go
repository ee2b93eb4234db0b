package itemtree

import (
	"fmt"

	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/infer"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

type GoalKind uint8

const (
	// GoalProve fulfills every predicate and reports what fails.
	GoalProve GoalKind = iota
	// GoalNormalize normalizes a type, optionally checking the result.
	GoalNormalize
	// GoalSelect selects the evidence for a single trait predicate.
	GoalSelect
)

func (k GoalKind) String() string {
	switch k {
	case GoalNormalize:
		return "normalize"
	case GoalSelect:
		return "select"
	}
	return "prove"
}

// ParseGoalKind maps a command word to a goal kind.
func ParseGoalKind(s string) (GoalKind, bool) {
	for _, k := range []GoalKind{GoalProve, GoalNormalize, GoalSelect} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func (g *GoalItem) kind() GoalKind {
	switch {
	case g.Normalize != nil:
		return GoalNormalize
	case g.Select != nil:
		return GoalSelect
	}
	return GoalProve
}

// Goal is a query whose types are lowered lazily, once per inference
// context, because they may mention inference variables.
type Goal struct {
	Name string
	Kind GoalKind
	Span diagnostics.Span
	// Mode is the projection mode name; empty selects the default.
	Mode string

	item *GoalItem
	prog *Program
}

// GoalInstance is a goal lowered against one inference context.
type GoalInstance struct {
	// Where are the goal's where-clauses, the param env of its obligations.
	Where []ts.Predicate
	// Preds are the predicates to prove or select.
	Preds []ts.Predicate
	// Type is the type to normalize; Expect is what it must normalize to.
	Type   *ts.Type
	Expect *ts.Type
	// Vars maps the names of ?x variables to their inference variables.
	Vars map[string]*ts.Type
}

// NewGoal builds an ad-hoc goal from a single expression, as typed at the
// repl: a predicate for prove and select, a type for normalize.
func (p *Program) NewGoal(kind GoalKind, text string, params []string) *Goal {
	x := &Expr{Text: text}
	item := &GoalItem{Params: params}
	switch kind {
	case GoalProve:
		item.Prove = x
	case GoalNormalize:
		item.Normalize = x
	case GoalSelect:
		item.Select = x
	}
	return &Goal{Name: kind.String(), Kind: kind, item: item, prog: p}
}

// Instantiate lowers the goal with fresh variables from ic. Lowering errors
// are reported to the session and yield false.
func (g *Goal) Instantiate(ic *infer.InferCtxt) (*GoalInstance, bool) {
	l := g.prog.l
	l.file = g.prog.Unit.File
	before := l.errors

	inst := &GoalInstance{Vars: make(map[string]*ts.Type)}
	sc := &scope{
		crate:  ts.LocalCrate,
		params: g.item.Params,
		vars: func(name string) *ts.Type {
			if name == "" {
				return ic.NewVar()
			}
			if v, ok := inst.Vars[name]; ok {
				return v
			}
			v := ic.NewVar()
			inst.Vars[name] = v
			return v
		},
	}

	inst.Where = l.whereClauses(sc, g.item.Where)
	switch g.Kind {
	case GoalProve:
		inst.Preds, _ = l.predicateExpr(sc, *g.item.Prove)
	case GoalSelect:
		preds, ok := l.predicateExpr(sc, *g.item.Select)
		if ok && (len(preds) != 1 || preds[0].Kind != ts.PredTrait) {
			l.errorf(l.span(g.item.Select.Pos), "select needs a single trait bound, got `%s`", g.item.Select.Text)
			break
		}
		inst.Preds = preds
	case GoalNormalize:
		inst.Type, _ = l.typeExpr(sc, *g.item.Normalize)
		if g.item.Expect != nil {
			inst.Expect, _ = l.typeExpr(sc, *g.item.Expect)
		}
	}
	return inst, l.errors == before
}

func (g *Goal) String() string {
	var text string
	switch g.Kind {
	case GoalProve:
		text = g.item.Prove.Text
	case GoalNormalize:
		text = g.item.Normalize.Text
	case GoalSelect:
		text = g.item.Select.Text
	}
	return fmt.Sprintf("%s `%s`", g.Kind, text)
}

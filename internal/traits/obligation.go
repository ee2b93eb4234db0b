package traits

import (
	"fmt"

	"github.com/funvibe/traitsolver/internal/diagnostics"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// CauseKind tags the variants of CauseCode.
type CauseKind uint8

const (
	CauseMisc CauseKind = iota
	// CauseGoal is an obligation stated directly by the caller.
	CauseGoal
	// CauseItem is a where-clause of Item.
	CauseItem
	// CauseImplDerived is required by the where-clauses of an impl.
	CauseImplDerived
	// CauseBuiltinDerived is required by a builtin rule (Sized, Copy).
	CauseBuiltinDerived
	CauseProjection
	CauseWellFormed
	CauseCoherence
)

// CauseCode explains why an obligation exists. Derived codes point at the
// code of the obligation they were derived from.
type CauseCode struct {
	Kind CauseKind
	// Item is the item whose where-clause applies (CauseItem) or the impl
	// that introduced the obligation (CauseImplDerived).
	Item ts.DefID
	// ParentTrait is the trait ref being proven when the obligation was derived.
	ParentTrait ts.TraitRef
	Parent      *CauseCode
}

// ObligationCause locates an obligation and explains it.
type ObligationCause struct {
	Span diagnostics.Span
	Code *CauseCode
}

// NewCause creates a root cause.
func NewCause(span diagnostics.Span, kind CauseKind) *ObligationCause {
	return &ObligationCause{Span: span, Code: &CauseCode{Kind: kind}}
}

// ItemCause is the cause of a where-clause of item.
func ItemCause(span diagnostics.Span, item ts.DefID) *ObligationCause {
	return &ObligationCause{Span: span, Code: &CauseCode{Kind: CauseItem, Item: item}}
}

// Derive creates a child cause pointing back at c.
func (c *ObligationCause) Derive(kind CauseKind, parent ts.TraitRef, item ts.DefID) *ObligationCause {
	return &ObligationCause{
		Span: c.Span,
		Code: &CauseCode{Kind: kind, Item: item, ParentTrait: parent, Parent: c.Code},
	}
}

// Obligation is a predicate that must be proven.
type Obligation struct {
	Cause     *ObligationCause
	ParamEnv  *ParamEnv
	Predicate ts.Predicate
	Depth     int
}

// NewObligation creates a root obligation.
func NewObligation(cause *ObligationCause, env *ParamEnv, pred ts.Predicate) *Obligation {
	if cause == nil {
		cause = NewCause(diagnostics.Span{}, CauseMisc)
	}
	if env == nil {
		env = newEmptyParamEnv()
	}
	return &Obligation{Cause: cause, ParamEnv: env, Predicate: pred}
}

// Derived creates an obligation one level deeper than o.
func (o *Obligation) Derived(cause *ObligationCause, pred ts.Predicate) *Obligation {
	return &Obligation{Cause: cause, ParamEnv: o.ParamEnv, Predicate: pred, Depth: o.Depth + 1}
}

// WithPredicate keeps everything but the predicate.
func (o *Obligation) WithPredicate(pred ts.Predicate) *Obligation {
	return &Obligation{Cause: o.Cause, ParamEnv: o.ParamEnv, Predicate: pred, Depth: o.Depth}
}

func (o *Obligation) String() string {
	return fmt.Sprintf("Obligation(%s, depth=%d)", o.Predicate, o.Depth)
}

package symbols

import (
	"github.com/funvibe/traitsolver/internal/diagnostics"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// Generics are the parameters of an item. Parameter i is referenced as
// Param(i); in a trait parameter 0 is Self.
type Generics struct {
	Params  []string
	Regions []string
	// Predicates are the where-clauses, parameter bounds included.
	Predicates []ts.Predicate
}

func (g *Generics) Len() int { return len(g.Params) }

// Identity instantiates the generics with themselves.
func (g *Generics) Identity(in *ts.Interner) ts.Substs {
	s := in.IdentitySubsts(g.Params)
	for i, name := range g.Regions {
		s.Regions = append(s.Regions, ts.EarlyRegion(uint32(i), name))
	}
	return s
}

// Receiver is how a method takes self.
type Receiver uint8

const (
	NoReceiver Receiver = iota
	ByValue
	ByRef
	ByMutRef
	ByBox
)

func (r Receiver) String() string {
	switch r {
	case ByValue:
		return "self"
	case ByRef:
		return "&self"
	case ByMutRef:
		return "&mut self"
	case ByBox:
		return "self: Box<Self>"
	}
	return "(no receiver)"
}

// MethodSig is a trait method declaration. Types are expressed in the
// trait's generics; method-level type parameters follow them.
type MethodSig struct {
	Name       string
	Receiver   Receiver
	Inputs     []*ts.Type
	Output     *ts.Type
	TypeParams []string
	// WhereSelfSized exempts the method from object safety checks.
	WhereSelfSized bool
	HasDefault     bool
	Span           diagnostics.Span
}

// AssocTypeDef declares an associated type on a trait.
type AssocTypeDef struct {
	Name string
	// Bounds are predicates on the associated type, expressed with the
	// projection <Self as Trait<..>>::Name as their subject.
	Bounds  []ts.Predicate
	Default *ts.Type
	Span    diagnostics.Span
}

// OnUnimplemented customizes the error reported when a trait is not
// implemented. Templates may reference {Self} and the trait's parameters.
type OnUnimplemented struct {
	Message string
	Label   string
	Note    string
}

// TraitDef is a trait declaration.
type TraitDef struct {
	ID          ts.DefID
	Name        string
	Generics    Generics
	Supertraits []ts.TraitRef
	AssocTypes  []*AssocTypeDef
	Methods     []*MethodSig
	// Lang is the lang item name ("Sized", "Copy", ...) or empty.
	Lang            string
	OnUnimplemented *OnUnimplemented
	Span            diagnostics.Span
}

// ImplAssocType is the value an impl gives an associated type.
type ImplAssocType struct {
	Name string
	Ty   *ts.Type
	// Default marks a specializable definition (`default type`).
	Default bool
	Span    diagnostics.Span
}

// ImplMethod is a method provided by an impl.
type ImplMethod struct {
	Name string
	// Default marks a specializable definition (`default fn`).
	Default bool
	// Synthesized marks a copy of a trait's provided method created by coherence.
	Synthesized bool
	Provenance  string
	Span        diagnostics.Span
}

// ImplDef is an implementation block. An inherent impl has no traits.
type ImplDef struct {
	ID         ts.DefID
	Generics   Generics
	Traits     []ts.TraitRef
	SelfTy     *ts.Type
	AssocTypes []*ImplAssocType
	Methods    []*ImplMethod
	Span       diagnostics.Span
}

// AdtKind distinguishes structs from enums.
type AdtKind uint8

const (
	Struct AdtKind = iota
	Enum
)

func (k AdtKind) String() string {
	if k == Enum {
		return "enum"
	}
	return "struct"
}

// AdtDef is a nominal type declaration.
type AdtDef struct {
	ID       ts.DefID
	Name     string
	Kind     AdtKind
	Generics Generics
	Span     diagnostics.Span
}

// Crate is a compilation unit known to the table.
type Crate struct {
	Num     ts.CrateNum
	Name    string
	Version string
}

// Package typesystem is the shared data model of the solver: interned
// types, regions, trait references, projections and predicates.
//
// Types are hash-consed by an Interner, so two structurally equal types
// built by the same Interner are the same pointer. Each type records flags
// summarizing what it contains, which lets callers skip whole subtrees
// (no inference variables, no projections) without walking them.
package typesystem

import "fmt"

// CrateNum identifies a compilation unit. LocalCrate is the unit being checked.
type CrateNum uint32

const LocalCrate CrateNum = 0

// DefID names an item: a trait, an impl, an ADT or a closure.
type DefID struct {
	Crate CrateNum
	Index uint32
}

func (d DefID) IsLocal() bool { return d.Crate == LocalCrate }

func (d DefID) String() string {
	return fmt.Sprintf("c%d:%d", d.Crate, d.Index)
}

// Kind is the outer constructor of a Type.
type Kind uint8

const (
	KindPrim Kind = iota
	KindAdt
	KindRef
	KindPtr
	KindBox
	KindTuple
	KindFnPtr
	KindClosure
	KindParam
	KindInfer
	KindProjection
	KindDynamic
	KindError
)

var kindNames = [...]string{
	KindPrim:       "primitive",
	KindAdt:        "adt",
	KindRef:        "reference",
	KindPtr:        "pointer",
	KindBox:        "box",
	KindTuple:      "tuple",
	KindFnPtr:      "fn pointer",
	KindClosure:    "closure",
	KindParam:      "parameter",
	KindInfer:      "inference variable",
	KindProjection: "projection",
	KindDynamic:    "trait object",
	KindError:      "error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Flags summarize the contents of a type.
type Flags uint16

const (
	HasParams Flags = 1 << iota
	HasSelf
	HasInfer
	HasProjection
	HasEarlyRegions
	HasLateBound
	HasRegionVars
	HasStaticRegion
	HasError

	// HasFreeRegions is set when any region other than 'static or erased occurs.
	HasFreeRegions = HasEarlyRegions | HasLateBound | HasRegionVars

	// HasErasableRegions is set when erasure would change the type.
	HasErasableRegions = HasFreeRegions | HasStaticRegion

	// NeedsSubst marks types that change under generic substitution.
	NeedsSubst = HasParams | HasSelf | HasEarlyRegions
)

// ClosureKind orders the call traits: Fn < FnMut < FnOnce.
type ClosureKind uint8

const (
	ClosureFn ClosureKind = iota
	ClosureFnMut
	ClosureFnOnce
)

// Extends reports whether a closure of kind k may be called through other.
// A Fn closure is usable as FnMut and FnOnce, never the reverse.
func (k ClosureKind) Extends(other ClosureKind) bool {
	return k <= other
}

func (k ClosureKind) String() string {
	switch k {
	case ClosureFn:
		return "Fn"
	case ClosureFnMut:
		return "FnMut"
	default:
		return "FnOnce"
	}
}

// ClosureKindFromTrait maps a call trait name to its closure kind.
func ClosureKindFromTrait(name string) (ClosureKind, bool) {
	switch name {
	case "Fn":
		return ClosureFn, true
	case "FnMut":
		return ClosureFnMut, true
	case "FnOnce":
		return ClosureFnOnce, true
	}
	return 0, false
}

// Type is an interned type. Compare with ==.
type Type struct {
	id      uint32
	kind    Kind
	flags   Flags
	name    string
	def     DefID
	index   uint32
	mut     bool
	region  Region
	args    []*Type
	regions []Region
	ckind   ClosureKind
	proj    *ProjectionTy
	dyn     *DynTy
}

func (t *Type) ID() uint32 { return t.id }
func (t *Type) Kind() Kind { return t.kind }
func (t *Type) Flags() Flags { return t.flags }
func (t *Type) Has(f Flags) bool { return t.flags&f != 0 }
func (t *Type) Name() string { return t.name }
func (t *Type) Def() DefID { return t.def }
func (t *Type) Mutable() bool { return t.mut }
func (t *Type) Region() Region { return t.region }
func (t *Type) Regions() []Region { return t.regions }

// Index is the parameter index of a Param or the variable id of an Infer.
func (t *Type) Index() uint32 { return t.index }

// Args are the generic arguments of an ADT or the elements of a tuple.
func (t *Type) Args() []*Type {
	if t.kind == KindAdt || t.kind == KindTuple {
		return t.args
	}
	return nil
}

// Elem is the pointee of a reference, pointer or box.
func (t *Type) Elem() *Type {
	switch t.kind {
	case KindRef, KindPtr, KindBox:
		return t.args[0]
	}
	return nil
}

// Inputs are the argument types of a fn pointer or closure signature.
func (t *Type) Inputs() []*Type {
	if t.kind == KindFnPtr || t.kind == KindClosure {
		return t.args[:len(t.args)-1]
	}
	return nil
}

// Output is the return type of a fn pointer or closure signature.
func (t *Type) Output() *Type {
	if t.kind == KindFnPtr || t.kind == KindClosure {
		return t.args[len(t.args)-1]
	}
	return nil
}

func (t *Type) ClosureKind() ClosureKind { return t.ckind }

// Projection returns the projection of a KindProjection type.
func (t *Type) Projection() *ProjectionTy { return t.proj }

// Dyn returns the existential description of a trait object.
func (t *Type) Dyn() *DynTy { return t.dyn }

func (t *Type) IsError() bool { return t.kind == KindError }
func (t *Type) IsInfer() bool { return t.kind == KindInfer }
func (t *Type) IsParam() bool { return t.kind == KindParam }
func (t *Type) IsUnit() bool { return t.kind == KindTuple && len(t.args) == 0 }

// IsPrim reports whether t is the primitive called name.
func (t *Type) IsPrim(name string) bool {
	return t.kind == KindPrim && t.name == name
}

// IsSelf reports whether t is the Self parameter of a trait scope.
func (t *Type) IsSelf() bool {
	return t.kind == KindParam && t.index == 0 && t.name == "Self"
}

// children are every direct type operand, in structural order.
func (t *Type) children() []*Type {
	switch t.kind {
	case KindProjection:
		return t.proj.Trait.Types()
	case KindDynamic:
		out := append([]*Type(nil), t.dyn.Args...)
		for _, b := range t.dyn.Bindings {
			out = append(out, b.Ty)
		}
		return out
	default:
		return t.args
	}
}

// Walk visits t and every type it contains in pre-order. Returning false
// from fn skips the children of the current type.
func Walk(t *Type, fn func(*Type) bool) {
	if !fn(t) {
		return
	}
	for _, c := range t.children() {
		Walk(c, fn)
	}
}

// Contains reports whether needle occurs anywhere in t.
func Contains(t, needle *Type) bool {
	found := false
	Walk(t, func(x *Type) bool {
		if x == needle {
			found = true
		}
		return !found
	})
	return found
}

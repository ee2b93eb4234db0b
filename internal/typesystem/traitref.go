package typesystem

import "strings"

// TraitRef is a trait applied to a self type and arguments: `Self: Trait<Args>`.
// In a trait's own generics Self is parameter 0 and Args are parameters 1..n.
type TraitRef struct {
	Def     DefID
	Name    string
	Self    *Type
	Args    []*Type
	Regions []Region
}

// Types returns Self followed by Args.
func (tr TraitRef) Types() []*Type {
	out := make([]*Type, 0, 1+len(tr.Args))
	out = append(out, tr.Self)
	return append(out, tr.Args...)
}

// Substs returns the substitution that instantiates the trait's generics with tr.
func (tr TraitRef) Substs() Substs {
	return Substs{Types: tr.Types(), Regions: tr.Regions}
}

// Flags is the union of the flags of every component.
func (tr TraitRef) Flags() Flags {
	var f Flags
	for _, t := range tr.Types() {
		f |= t.flags
	}
	for _, r := range tr.Regions {
		f |= r.flags()
	}
	return f
}

func (tr TraitRef) Has(f Flags) bool { return tr.Flags()&f != 0 }

// WithSelf returns a copy of tr with another self type.
func (tr TraitRef) WithSelf(self *Type) TraitRef {
	tr.Self = self
	return tr
}

// Key identifies tr structurally within one Interner.
func (tr TraitRef) Key() string {
	var sb strings.Builder
	sb.WriteString(tr.Def.String())
	sb.WriteByte('<')
	for i, t := range tr.Types() {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeID(&sb, t)
	}
	for _, r := range tr.Regions {
		sb.WriteByte(',')
		sb.WriteString(r.key())
	}
	sb.WriteByte('>')
	return sb.String()
}

// Equal reports structural equality.
func (tr TraitRef) Equal(other TraitRef) bool {
	if tr.Def != other.Def || len(tr.Args) != len(other.Args) || len(tr.Regions) != len(other.Regions) {
		return false
	}
	if tr.Self != other.Self {
		return false
	}
	for i := range tr.Args {
		if tr.Args[i] != other.Args[i] {
			return false
		}
	}
	for i := range tr.Regions {
		if tr.Regions[i] != other.Regions[i] {
			return false
		}
	}
	return true
}

// Path prints the trait with its arguments but without the self type: `Trait<A>`.
func (tr TraitRef) Path() string {
	var sb strings.Builder
	sb.WriteString(tr.Name)
	writeGenericArgs(&sb, tr.Regions, tr.Args, nil)
	return sb.String()
}

// String prints `<Self as Trait<A>>`.
func (tr TraitRef) String() string {
	return "<" + tr.Self.String() + " as " + tr.Path() + ">"
}

// ProjectionTy is an associated type of a trait applied to a trait ref:
// `<Self as Trait<A>>::Item`.
type ProjectionTy struct {
	Trait TraitRef
	Item  string
}

func (p ProjectionTy) Key() string {
	return p.Trait.Key() + "::" + p.Item
}

func (p ProjectionTy) String() string {
	return p.Trait.String() + "::" + p.Item
}

// AssocBinding pins an associated type inside a trait object: `Item = X`.
type AssocBinding struct {
	Item string
	Ty   *Type
}

// DynTy is the existential trait reference of a trait object. The self
// type is the object itself and is filled in by WithSelf.
type DynTy struct {
	Def      DefID
	Name     string
	Args     []*Type
	Regions  []Region
	Bindings []AssocBinding
}

// WithSelf forms the trait ref satisfied by the object type self.
func (d *DynTy) WithSelf(self *Type) TraitRef {
	return TraitRef{Def: d.Def, Name: d.Name, Self: self, Args: d.Args, Regions: d.Regions}
}

// Binding looks up the bound value of an associated type.
func (d *DynTy) Binding(item string) (*Type, bool) {
	for _, b := range d.Bindings {
		if b.Item == item {
			return b.Ty, true
		}
	}
	return nil, false
}

package symbols

import (
	"slices"

	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// Trait returns the trait with the given id.
func (t *Table) Trait(id ts.DefID) (*TraitDef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.traits[id]
	return def, ok
}

// Traits returns every trait ordered by id.
func (t *Table) Traits() []*TraitDef {
	t.mu.RLock()
	ids := make([]ts.DefID, 0, len(t.traits))
	for id := range t.traits {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sortDefIDs(ids)

	out := make([]*TraitDef, 0, len(ids))
	for _, id := range ids {
		def, _ := t.Trait(id)
		out = append(out, def)
	}
	return out
}

// LangTrait returns the trait registered for a lang item.
func (t *Table) LangTrait(name string) (ts.DefID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.lang[name]
	return id, ok
}

// IsLang reports whether id is the lang trait called name.
func (t *Table) IsLang(id ts.DefID, name string) bool {
	lid, ok := t.LangTrait(name)
	return ok && lid == id
}

// AssocType finds an associated type declaration.
func (d *TraitDef) AssocType(name string) (*AssocTypeDef, bool) {
	for _, at := range d.AssocTypes {
		if at.Name == name {
			return at, true
		}
	}
	return nil, false
}

// Method finds a method declaration.
func (d *TraitDef) Method(name string) (*MethodSig, bool) {
	for _, m := range d.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// RequiredMethods returns the names of methods without a default body.
func (d *TraitDef) RequiredMethods() []string {
	var out []string
	for _, m := range d.Methods {
		if !m.HasDefault {
			out = append(out, m.Name)
		}
	}
	return out
}

// ProvidedMethods returns the methods with a default body.
func (d *TraitDef) ProvidedMethods() []*MethodSig {
	var out []*MethodSig
	for _, m := range d.Methods {
		if m.HasDefault {
			out = append(out, m)
		}
	}
	return out
}

// IdentityRef is the trait applied to its own generics: `Self: Trait<P1..Pn>`.
func (d *TraitDef) IdentityRef(in *ts.Interner) ts.TraitRef {
	s := d.Generics.Identity(in)
	return ts.TraitRef{Def: d.ID, Name: d.Name, Self: s.Types[0], Args: s.Types[1:], Regions: s.Regions}
}

// Ref applies the trait to self and args.
func (d *TraitDef) Ref(self *ts.Type, args []*ts.Type, regions []ts.Region) ts.TraitRef {
	return ts.TraitRef{Def: d.ID, Name: d.Name, Self: self, Args: args, Regions: regions}
}

// ParamNames are the trait's parameter names without Self.
func (d *TraitDef) ParamNames() []string {
	if len(d.Generics.Params) == 0 {
		return nil
	}
	return slices.Clone(d.Generics.Params[1:])
}

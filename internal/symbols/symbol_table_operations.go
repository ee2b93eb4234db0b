package symbols

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// Table holds every item visible to a compilation unit.
type Table struct {
	mu     sync.RWMutex
	frozen bool

	crates    []*Crate
	nextIndex []uint32

	traits map[ts.DefID]*TraitDef
	impls  map[ts.DefID]*ImplDef
	adts   map[ts.DefID]*AdtDef

	// Per-crate name lookup: crate -> name -> item
	names []map[string]ts.DefID

	// Implementations registry: trait -> impls, in definition order
	implsByTrait map[ts.DefID][]ts.DefID
	inherent     []ts.DefID

	// Lang items: name -> trait
	lang map[string]ts.DefID
}

// NewTable creates a table whose local crate is called name.
func NewTable(name string) *Table {
	t := &Table{
		traits:       make(map[ts.DefID]*TraitDef),
		impls:        make(map[ts.DefID]*ImplDef),
		adts:         make(map[ts.DefID]*AdtDef),
		implsByTrait: make(map[ts.DefID][]ts.DefID),
		lang:         make(map[string]ts.DefID),
	}
	t.addCrateLocked(name, "")
	return t
}

// Freeze makes the table read-only.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// AddCrate registers an extern crate and returns its number.
func (t *Table) AddCrate(name, version string) (ts.CrateNum, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return 0, ErrFrozen
	}
	for _, c := range t.crates {
		if c.Name == name {
			return 0, &DuplicateDefinitionError{Name: name}
		}
	}
	return t.addCrateLocked(name, version), nil
}

func (t *Table) addCrateLocked(name, version string) ts.CrateNum {
	num := ts.CrateNum(len(t.crates))
	t.crates = append(t.crates, &Crate{Num: num, Name: name, Version: version})
	t.nextIndex = append(t.nextIndex, 0)
	t.names = append(t.names, make(map[string]ts.DefID))
	return num
}

// Crate returns the crate with number num.
func (t *Table) Crate(num ts.CrateNum) *Crate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(num) >= len(t.crates) {
		return nil
	}
	return t.crates[num]
}

// CrateByName finds a crate by name.
func (t *Table) CrateByName(name string) (*Crate, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.crates {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Crates returns every known crate, local crate first.
func (t *Table) Crates() []*Crate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.crates)
}

// NewDefID allocates an id in crate.
func (t *Table) NewDefID(crate ts.CrateNum) ts.DefID {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := ts.DefID{Crate: crate, Index: t.nextIndex[crate]}
	t.nextIndex[crate]++
	return id
}

func (t *Table) bindName(crate ts.CrateNum, name string, id ts.DefID) error {
	if _, exists := t.names[crate][name]; exists {
		return &DuplicateDefinitionError{Name: name}
	}
	t.names[crate][name] = id
	return nil
}

// DefineTrait registers a trait. Lang traits are also recorded as lang items.
func (t *Table) DefineTrait(def *TraitDef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrFrozen
	}
	if err := t.bindName(def.ID.Crate, def.Name, def.ID); err != nil {
		return err
	}
	t.traits[def.ID] = def
	if def.Lang != "" {
		t.lang[def.Lang] = def.ID
	}
	return nil
}

// DefineAdt registers a struct or enum.
func (t *Table) DefineAdt(def *AdtDef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrFrozen
	}
	if err := t.bindName(def.ID.Crate, def.Name, def.ID); err != nil {
		return err
	}
	t.adts[def.ID] = def
	return nil
}

// DefineImpl registers an impl under each trait it implements, or as an
// inherent impl when it implements none.
func (t *Table) DefineImpl(def *ImplDef) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.frozen {
		return ErrFrozen
	}
	t.impls[def.ID] = def
	if len(def.Traits) == 0 {
		t.inherent = append(t.inherent, def.ID)
		return nil
	}
	for _, tr := range def.Traits {
		t.implsByTrait[tr.Def] = append(t.implsByTrait[tr.Def], def.ID)
	}
	return nil
}

// Adt returns the ADT with the given id.
func (t *Table) Adt(id ts.DefID) (*AdtDef, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.adts[id]
	return def, ok
}

// Lookup resolves a path. A bare name is searched in the local crate;
// `krate::Name` in the named crate.
func (t *Table) Lookup(path string) (ts.DefID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	crate := ts.LocalCrate
	name := path
	if i := strings.LastIndex(path, "::"); i >= 0 {
		found := false
		for _, c := range t.crates {
			if c.Name == path[:i] {
				crate, found = c.Num, true
				break
			}
		}
		if !found {
			return ts.DefID{}, NewSymbolNotFoundError("crate", path[:i])
		}
		name = path[i+2:]
	}
	id, ok := t.names[crate][name]
	if !ok {
		return ts.DefID{}, NewSymbolNotFoundError("item", path)
	}
	return id, nil
}

// IsTrait reports whether id names a trait.
func (t *Table) IsTrait(id ts.DefID) bool {
	_, ok := t.Trait(id)
	return ok
}

// IsAdt reports whether id names an ADT.
func (t *Table) IsAdt(id ts.DefID) bool {
	_, ok := t.Adt(id)
	return ok
}

// ItemName returns a printable name for id.
func (t *Table) ItemName(id ts.DefID) string {
	if tr, ok := t.Trait(id); ok {
		return tr.Name
	}
	if adt, ok := t.Adt(id); ok {
		return adt.Name
	}
	if impl, ok := t.Impl(id); ok {
		return impl.Describe()
	}
	return id.String()
}

func sortDefIDs(ids []ts.DefID) {
	slices.SortFunc(ids, func(a, b ts.DefID) int {
		if c := cmp.Compare(a.Crate, b.Crate); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}

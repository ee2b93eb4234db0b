// symbols/symbol_table.go - Item table entry point
//
// The table is split into focused files:
// - symbol_table_core.go: item definitions (traits, impls, ADTs, generics)
// - symbol_table_operations.go: Table construction, crates, define and lookup
// - symbol_table_traits.go: trait queries (methods, associated types, lang items)
// - symbol_table_implementations.go: impl queries (per-trait ordering, items)
//
// A Table is filled while lowering a compilation unit and its extern crates,
// then frozen. Coherence and selection only read frozen tables, which makes
// concurrent overlap checking safe.

package symbols

import "fmt"

// SymbolNotFoundError indicates a path did not resolve to an item.
type SymbolNotFoundError struct {
	Name string
	Kind string
}

func (e *SymbolNotFoundError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
	}
	return fmt.Sprintf("symbol not found: %s", e.Name)
}

func NewSymbolNotFoundError(kind, name string) *SymbolNotFoundError {
	return &SymbolNotFoundError{Name: name, Kind: kind}
}

// DuplicateDefinitionError reports a second item with an existing name.
type DuplicateDefinitionError struct {
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("the name `%s` is defined multiple times", e.Name)
}

// ErrFrozen is returned when a frozen table is modified.
var ErrFrozen = fmt.Errorf("item table is frozen")

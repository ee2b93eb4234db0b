// Package itemtree loads name-resolved compilation units.
//
// A unit is a YAML document listing the crate's ADTs, traits, impls and
// the goals to check against them. Types and predicates inside the
// document are written in a small path notation:
//
//	Vec<T>, &'a mut T, *const u8, (A, B), fn(i32) -> bool,
//	dyn Iterator<Item = u8>, <T as Container>::Item, T::Item,
//	closure<FnMut>(i32) -> bool, _, ?x
//
// Lowering resolves every path against a symbols.Table and produces the
// interned types consumed by the solver. Positions recorded while decoding
// become the spans of the lowered items.
package itemtree

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pos is a position in the unit file.
type Pos struct {
	Line   int
	Column int
}

// Expr is an unparsed type or predicate with the position of its scalar.
type Expr struct {
	Text string
	Pos  Pos
	// Quoted scalars start one column before their text.
	Quoted bool
}

func (e *Expr) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a type expression, got %s", n.Line, kindName(n.Kind))
	}
	e.Text = n.Value
	e.Pos = Pos{Line: n.Line, Column: n.Column}
	e.Quoted = n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0
	return nil
}

func (e Expr) MarshalYAML() (any, error) { return e.Text, nil }

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a list"
	case yaml.AliasNode:
		return "an alias"
	}
	return "a scalar"
}

// Unit is a compilation unit.
type Unit struct {
	Crate   string        `yaml:"crate"`
	Version string        `yaml:"version,omitempty"`
	Extern  []*ExternItem `yaml:"extern,omitempty"`
	Items   `yaml:",inline"`
	Goals   []*GoalItem `yaml:"goals,omitempty"`

	// File is the path the unit was read from.
	File string `yaml:"-"`
}

// Items are the definitions of one crate. Extern crate metadata stores
// exactly this structure.
type Items struct {
	Adts   []*AdtItem   `yaml:"adts,omitempty"`
	Traits []*TraitItem `yaml:"traits,omitempty"`
	Impls  []*ImplItem  `yaml:"impls,omitempty"`
}

// ExternItem names a dependency. Its items are given inline or resolved
// from the crate metadata store by version constraint.
type ExternItem struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
	Items   *Items `yaml:"items,omitempty"`
	Pos     Pos    `yaml:"-"`
}

type AdtItem struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind,omitempty"`
	Params  []string `yaml:"params,omitempty"`
	Regions []string `yaml:"regions,omitempty"`
	Where   []Expr   `yaml:"where,omitempty"`
	Pos     Pos      `yaml:"-"`
}

type TraitItem struct {
	Name        string   `yaml:"name"`
	Params      []string `yaml:"params,omitempty"`
	Regions     []string `yaml:"regions,omitempty"`
	Supertraits []Expr   `yaml:"supertraits,omitempty"`
	Where       []Expr   `yaml:"where,omitempty"`
	Lang        string   `yaml:"lang,omitempty"`

	Types   []*AssocTypeItem `yaml:"types,omitempty"`
	Methods []*MethodItem    `yaml:"methods,omitempty"`

	OnUnimplemented *OnUnimplementedItem `yaml:"on_unimplemented,omitempty"`
	Pos             Pos                  `yaml:"-"`
}

type AssocTypeItem struct {
	Name    string `yaml:"name"`
	Bounds  []Expr `yaml:"bounds,omitempty"`
	Default *Expr  `yaml:"default,omitempty"`
	Pos     Pos    `yaml:"-"`
}

type MethodItem struct {
	Name      string   `yaml:"name"`
	Receiver  string   `yaml:"receiver,omitempty"`
	Params    []string `yaml:"params,omitempty"`
	Inputs    []Expr   `yaml:"inputs,omitempty"`
	Output    *Expr    `yaml:"output,omitempty"`
	Default   bool     `yaml:"default,omitempty"`
	SelfSized bool     `yaml:"where_self_sized,omitempty"`
	Pos       Pos      `yaml:"-"`
}

type OnUnimplementedItem struct {
	Message string `yaml:"message,omitempty"`
	Label   string `yaml:"label,omitempty"`
	Note    string `yaml:"note,omitempty"`
}

// ImplItem is an impl block. Trait and Traits may be combined; an impl
// with neither is inherent.
type ImplItem struct {
	Params  []string `yaml:"params,omitempty"`
	Regions []string `yaml:"regions,omitempty"`
	Trait   *Expr    `yaml:"trait,omitempty"`
	Traits  []Expr   `yaml:"traits,omitempty"`
	For     Expr     `yaml:"for"`
	Where   []Expr   `yaml:"where,omitempty"`

	Types   []*ImplTypeItem   `yaml:"types,omitempty"`
	Methods []*ImplMethodItem `yaml:"methods,omitempty"`
	Pos     Pos               `yaml:"-"`
}

type ImplTypeItem struct {
	Name    string `yaml:"name"`
	Type    Expr   `yaml:"type"`
	Default bool   `yaml:"default,omitempty"`
	Pos     Pos    `yaml:"-"`
}

type ImplMethodItem struct {
	Name    string `yaml:"name"`
	Default bool   `yaml:"default,omitempty"`
	Pos     Pos    `yaml:"-"`
}

// GoalItem is a query against the unit. Exactly one of Prove, Normalize
// and Select is set.
type GoalItem struct {
	Name   string   `yaml:"name,omitempty"`
	Params []string `yaml:"params,omitempty"`
	Where  []Expr   `yaml:"where,omitempty"`

	Prove     *Expr  `yaml:"prove,omitempty"`
	Normalize *Expr  `yaml:"normalize,omitempty"`
	Select    *Expr  `yaml:"select,omitempty"`
	Expect    *Expr  `yaml:"expect,omitempty"`
	Mode      string `yaml:"mode,omitempty"`
	Pos       Pos    `yaml:"-"`
}

// Positions are taken from the mapping node of each item.

func (x *ExternItem) UnmarshalYAML(n *yaml.Node) error {
	type plain ExternItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

func (x *AdtItem) UnmarshalYAML(n *yaml.Node) error {
	type plain AdtItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

func (x *TraitItem) UnmarshalYAML(n *yaml.Node) error {
	type plain TraitItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

func (x *AssocTypeItem) UnmarshalYAML(n *yaml.Node) error {
	type plain AssocTypeItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

func (x *MethodItem) UnmarshalYAML(n *yaml.Node) error {
	type plain MethodItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

func (x *ImplItem) UnmarshalYAML(n *yaml.Node) error {
	type plain ImplItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

func (x *ImplTypeItem) UnmarshalYAML(n *yaml.Node) error {
	type plain ImplTypeItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

func (x *ImplMethodItem) UnmarshalYAML(n *yaml.Node) error {
	type plain ImplMethodItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

func (x *GoalItem) UnmarshalYAML(n *yaml.Node) error {
	type plain GoalItem
	x.Pos = Pos{n.Line, n.Column}
	return n.Decode((*plain)(x))
}

// LoadUnit reads and decodes a unit file.
func LoadUnit(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading unit %s: %w", path, err)
	}
	return ParseUnit(data, path)
}

// ParseUnit decodes a unit from bytes. path is used for spans and errors.
func ParseUnit(data []byte, path string) (*Unit, error) {
	var u Unit
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	u.File = path
	if err := u.validate(); err != nil {
		return nil, err
	}
	return &u, nil
}

// validate checks the structure that decoding cannot: names and goal shapes.
func (u *Unit) validate() error {
	if u.Crate == "" {
		return fmt.Errorf("%s: missing crate name", u.File)
	}
	for _, e := range u.Extern {
		if e.Name == "" {
			return fmt.Errorf("%s:%d: extern crate without a name", u.File, e.Pos.Line)
		}
		if e.Name == u.Crate {
			return fmt.Errorf("%s:%d: crate %q cannot depend on itself", u.File, e.Pos.Line, e.Name)
		}
	}
	for _, g := range u.Goals {
		n := 0
		for _, set := range []bool{g.Prove != nil, g.Normalize != nil, g.Select != nil} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("%s:%d: a goal needs exactly one of prove, normalize or select", u.File, g.Pos.Line)
		}
		if g.Expect != nil && g.Normalize == nil {
			return fmt.Errorf("%s:%d: expect is only valid with normalize", u.File, g.Pos.Line)
		}
	}
	return nil
}

// Encode serializes items for the metadata store.
func (it *Items) Encode() ([]byte, error) {
	return yaml.Marshal(it)
}

// DecodeItems reads items written by Encode.
func DecodeItems(data []byte) (*Items, error) {
	var it Items
	if err := yaml.Unmarshal(data, &it); err != nil {
		return nil, fmt.Errorf("decoding crate items: %w", err)
	}
	return &it, nil
}

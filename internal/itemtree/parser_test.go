package itemtree

import (
	"strings"
	"testing"
)

func TestLexerTokens(t *testing.T) {
	input := "<&'a mut T as Tr<?x>>::Item == fn(i32) -> !"
	expected := []struct {
		typ     TokenType
		literal string
	}{
		{LT, "<"},
		{AMP, "&"},
		{LIFETIME, "a"},
		{IDENT, "mut"},
		{IDENT, "T"},
		{IDENT, "as"},
		{IDENT, "Tr"},
		{LT, "<"},
		{VAR, "x"},
		{GT, ">"},
		{GT, ">"},
		{PATHSEP, "::"},
		{IDENT, "Item"},
		{EQ, "=="},
		{IDENT, "fn"},
		{LPAREN, "("},
		{IDENT, "i32"},
		{RPAREN, ")"},
		{ARROW, "->"},
		{BANG, "!"},
		{EOF, ""},
	}

	l := NewLexer(input)
	for i, tt := range expected {
		tok := l.NextToken()
		if tok.Type != tt.typ {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%s, got=%s", i, tt.typ, tok.Type)
		}
		if tok.Literal != tt.literal {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.literal, tok.Literal)
		}
	}
}

func TestParseTypes(t *testing.T) {
	tests := []struct {
		input string
		check func(t *testing.T, e TypeExpr)
	}{
		{"Vec<T>", func(t *testing.T, e TypeExpr) {
			p := e.(*PathType)
			if p.Path != "Vec" || len(p.Args) != 1 {
				t.Errorf("got %+v", p)
			}
		}},
		{"core::Option<&'a mut u8>", func(t *testing.T, e TypeExpr) {
			p := e.(*PathType)
			ref := p.Args[0].(*RefType)
			if p.Path != "core::Option" || ref.Region != "a" || !ref.Mut {
				t.Errorf("got %+v / %+v", p, ref)
			}
		}},
		{"()", func(t *testing.T, e TypeExpr) {
			if tup := e.(*TupleType); len(tup.Elems) != 0 {
				t.Errorf("unit has elements: %+v", tup)
			}
		}},
		{"(i32)", func(t *testing.T, e TypeExpr) {
			if _, ok := e.(*PathType); !ok {
				t.Errorf("parenthesized type is %T", e)
			}
		}},
		{"(i32,)", func(t *testing.T, e TypeExpr) {
			if tup := e.(*TupleType); len(tup.Elems) != 1 {
				t.Errorf("one-tuple: %+v", tup)
			}
		}},
		{"for<'a> fn(&'a str) -> &'a str", func(t *testing.T, e TypeExpr) {
			fn := e.(*FnType)
			if len(fn.Late) != 1 || len(fn.Inputs) != 1 || fn.Output == nil {
				t.Errorf("got %+v", fn)
			}
		}},
		{"fn()", func(t *testing.T, e TypeExpr) {
			if fn := e.(*FnType); fn.Output != nil || len(fn.Inputs) != 0 {
				t.Errorf("got %+v", fn)
			}
		}},
		{"closure<FnMut>(i32, bool) -> u8", func(t *testing.T, e TypeExpr) {
			c := e.(*ClosureType)
			if c.Kind != "FnMut" || len(c.Inputs) != 2 {
				t.Errorf("got %+v", c)
			}
		}},
		{"dyn Iterator<Item = u8>", func(t *testing.T, e TypeExpr) {
			d := e.(*DynType)
			if d.Trait.Path != "Iterator" || len(d.Trait.Bindings) != 1 || d.Trait.Bindings[0].Item != "Item" {
				t.Errorf("got %+v", d.Trait)
			}
		}},
		{"<<A as Foo>::FooT as Bar>::BarT", func(t *testing.T, e TypeExpr) {
			outer := e.(*QPathType)
			inner := outer.Self.(*QPathType)
			if outer.Item != "BarT" || inner.Item != "FooT" || inner.Trait.Path != "Foo" {
				t.Errorf("got %+v", outer)
			}
		}},
		{"Self::Item", func(t *testing.T, e TypeExpr) {
			if a := e.(*AssocPathType); a.Base != "Self" || a.Item != "Item" {
				t.Errorf("got %+v", a)
			}
		}},
		{"*const ?v", func(t *testing.T, e TypeExpr) {
			p := e.(*PtrType)
			if v := p.Elem.(*InferType); p.Mut || v.Name != "v" {
				t.Errorf("got %+v", p)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e, err := ParseTypeExpr(tt.input)
			if err != nil {
				t.Fatalf("ParseTypeExpr(%q): %v", tt.input, err)
			}
			tt.check(t, e)
		})
	}
}

func TestParsePredicates(t *testing.T) {
	tests := []struct {
		input  string
		kind   PredKind
		traits int
	}{
		{"T: Show", PredBound, 1},
		{"T: Show + Clone + 'a", PredBound, 2},
		{"Vec<T>: Iterator<Item = T>", PredBound, 1},
		{"<T as Iterator>::Item == u8", PredEq, 0},
		{"'a: 'static", PredOutlives, 0},
		{"WF(Vec<T>)", PredWF, 0},
	}
	for _, tt := range tests {
		pred, err := ParsePredicateExpr(tt.input)
		if err != nil {
			t.Errorf("ParsePredicateExpr(%q): %v", tt.input, err)
			continue
		}
		if pred.Kind != tt.kind || len(pred.Traits) != tt.traits {
			t.Errorf("%q: kind %d with %d traits, want %d with %d", tt.input, pred.Kind, len(pred.Traits), tt.kind, tt.traits)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input  string
		pred   bool
		offset int
		msg    string
	}{
		{"Vec<T", false, 6, "expected `>`"},
		{"T Show", true, 3, "expected `:` or `==`"},
		{"*T", false, 2, "expected `const` or `mut`"},
		{"<T as Tr>", false, 10, "expected `::`"},
		{"Vec<T>>", false, 7, "unexpected `>`"},
		{"T: ", true, 4, "expected a trait or lifetime bound"},
	}
	for _, tt := range tests {
		var err error
		if tt.pred {
			_, err = ParsePredicateExpr(tt.input)
		} else {
			_, err = ParseTypeExpr(tt.input)
		}
		pe, ok := err.(*ParseError)
		if !ok {
			t.Errorf("%q: error %v is not a ParseError", tt.input, err)
			continue
		}
		if pe.Offset != tt.offset || !strings.Contains(pe.Msg, tt.msg) {
			t.Errorf("%q: got col %d %q, want col %d containing %q", tt.input, pe.Offset, pe.Msg, tt.offset, tt.msg)
		}
	}
}

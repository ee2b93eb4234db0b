package itemtree

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/infer"
	"github.com/funvibe/traitsolver/internal/session"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

const containerUnit = `crate: app
version: 0.1.0
extern:
  - name: core
    version: 1.0.0
    items:
      traits:
        - name: Sized
          lang: Sized
      adts:
        - name: String
traits:
  - name: Container
    types:
      - name: Item
  - name: Seq
    supertraits: [Container]
    methods:
      - name: first
        receiver: "&self"
        output: Self::Item
adts:
  - name: Vec
    params: [T]
impls:
  - params: [T]
    trait: Container
    for: Vec<T>
    types:
      - name: Item
        type: T
  - trait: Container
    for: String
    types:
      - name: Item
        type: u8
goals:
  - name: seq item
    params: [T]
    where: ["T: Seq"]
    normalize: T::Item
  - prove: "Vec<?x>: Container"
`

func lowerSource(t *testing.T, src string, res CrateResolver) (*Program, *diagnostics.Collector, error) {
	t.Helper()
	u, err := ParseUnit([]byte(src), "app.unit.yaml")
	if err != nil {
		t.Fatalf("ParseUnit: %v", err)
	}
	sink := &diagnostics.Collector{}
	sess := session.New(nil, sink)
	prog, err := Lower(context.Background(), sess, ts.NewInterner(), u, res)
	return prog, sink, err
}

func TestLowerItems(t *testing.T) {
	prog, sink, err := lowerSource(t, containerUnit, nil)
	if err != nil {
		t.Fatalf("Lower: %v\n%s", err, spew.Sdump(sink.All()))
	}
	tbl := prog.Tables

	core, ok := tbl.CrateByName("core")
	if !ok || core.Version != "1.0.0" {
		t.Fatalf("extern crate core missing: %+v", tbl.Crates())
	}
	if _, ok := tbl.LangTrait("Sized"); !ok {
		t.Errorf("lang item Sized not registered")
	}

	id, err := tbl.Lookup("Container")
	if err != nil {
		t.Fatal(err)
	}
	container, _ := tbl.Trait(id)
	want := diagnostics.Span{File: "app.unit.yaml", Line: 13, Column: 5}
	if container.Span != want {
		t.Errorf("Container span = %v, want %v", container.Span, want)
	}

	seqID, _ := tbl.Lookup("Seq")
	seq, _ := tbl.Trait(seqID)
	if len(seq.Supertraits) != 1 || seq.Supertraits[0].Def != id {
		t.Fatalf("Seq supertraits = %v", seq.Supertraits)
	}
	first, ok := seq.Method("first")
	if !ok {
		t.Fatal("method first not lowered")
	}
	if got := first.Output.String(); got != "<Self as Container>::Item" {
		t.Errorf("Self::Item in Seq = %s, want the Container projection", got)
	}

	impls := tbl.ImplsOfTrait(id)
	if len(impls) != 2 {
		t.Fatalf("impls of Container = %d", len(impls))
	}
	for _, impl := range impls {
		item, ok := impl.AssocType("Item")
		if !ok {
			t.Errorf("%s: Item missing", impl.Describe())
			continue
		}
		switch impl.SelfTy.String() {
		case "Vec<T>":
			if item.Ty.Kind() != ts.KindParam {
				t.Errorf("Vec<T>::Item = %s", item.Ty)
			}
		case "String":
			if item.Ty.String() != "u8" {
				t.Errorf("String::Item = %s", item.Ty)
			}
			if impl.SelfTy.Def().Crate == ts.LocalCrate {
				t.Errorf("String resolved in the local crate")
			}
		default:
			t.Errorf("unexpected impl %s", impl.Describe())
		}
	}
}

func TestGoalInstantiate(t *testing.T) {
	prog, sink, err := lowerSource(t, containerUnit, nil)
	if err != nil {
		t.Fatalf("Lower: %v\n%s", err, spew.Sdump(sink.All()))
	}
	if len(prog.Goals) != 2 {
		t.Fatalf("goals = %d", len(prog.Goals))
	}

	g := prog.Goals[0]
	if g.Name != "seq item" || g.Kind != GoalNormalize {
		t.Errorf("goal 0 = %s %s", g.Name, g.Kind)
	}
	inst, ok := g.Instantiate(infer.New(prog.Types))
	if !ok {
		t.Fatalf("instantiate: %s", spew.Sdump(sink.All()))
	}
	if len(inst.Where) != 1 || inst.Where[0].String() != "T: Seq" {
		t.Errorf("where = %v", inst.Where)
	}
	if got := inst.Type.String(); got != "<T as Container>::Item" {
		t.Errorf("T::Item = %s", got)
	}

	g = prog.Goals[1]
	if g.Name != "goal #2" || g.Span.Line != 42 {
		t.Errorf("goal 1 = %s at %v", g.Name, g.Span)
	}
	inst, ok = g.Instantiate(infer.New(prog.Types))
	if !ok {
		t.Fatalf("instantiate: %s", spew.Sdump(sink.All()))
	}
	x := inst.Vars["x"]
	if x == nil || x.Kind() != ts.KindInfer {
		t.Fatalf("?x = %v", x)
	}
	if len(inst.Preds) != 1 || inst.Preds[0].Trait.Self.Args()[0] != x {
		t.Errorf("preds = %v", inst.Preds)
	}
}

func TestReplGoal(t *testing.T) {
	prog, _, err := lowerSource(t, containerUnit, nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		kind GoalKind
		text string
		ok   bool
	}{
		{GoalProve, "Vec<u8>: Container", true},
		{GoalSelect, "String: Container", true},
		{GoalSelect, "String: Container + Seq", false},
		{GoalNormalize, "<Vec<_> as Container>::Item", true},
		{GoalNormalize, "<Vec<u8> as Container>::Missing", false},
	}
	for _, tt := range tests {
		g := prog.NewGoal(tt.kind, tt.text, nil)
		if _, ok := g.Instantiate(infer.New(prog.Types)); ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", g, ok, tt.ok)
		}
	}
}

func TestLowerErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		line   int
		column int
		msg    string
	}{
		{
			name: "unknown type argument",
			src: `crate: app
traits:
  - name: Show
adts:
  - name: Vec
    params: [T]
impls:
  - trait: Show
    for: Vec<U>
`,
			line: 9, column: 14,
			msg: "cannot find type `U` in this scope",
		},
		{
			name: "syntax error in quoted scalar",
			src: `crate: app
traits:
  - name: Show
adts:
  - name: Vec
    params: [T]
impls:
  - trait: Show
    for: "Vec<i32"
`,
			line: 9, column: 18,
			msg: "syntax error in `Vec<i32`",
		},
		{
			name: "undeclared lifetime",
			src: `crate: app
traits:
  - name: Show
impls:
  - trait: Show
    for: "&'a i32"
`,
			line: 6, column: 11,
			msg: "use of undeclared lifetime name `'a`",
		},
		{
			name: "missing associated type",
			src: `crate: app
traits:
  - name: Show
    methods:
      - name: show
        output: Self::Missing
`,
			line: 6, column: 17,
			msg: "associated type `Missing` not found for `Self`",
		},
		{
			name: "unknown lang item",
			src: `crate: app
traits:
  - name: Show
    lang: Display
`,
			line: 3, column: 5,
			msg: `unknown lang item "Display"`,
		},
		{
			name: "trait used as type",
			src: `crate: app
traits:
  - name: Show
impls:
  - trait: Show
    for: Show
`,
			line: 6, column: 10,
			msg: "expected a type, found trait `Show`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, sink, err := lowerSource(t, tt.src, nil)
			if !errors.Is(err, session.ErrAborted) {
				t.Fatalf("Lower error = %v, want ErrAborted", err)
			}
			got := sink.WithCode(diagnostics.ErrLoad)
			if len(got) != 1 {
				t.Fatalf("load diagnostics:\n%s", spew.Sdump(sink.All()))
			}
			d := got[0]
			if d.Span.Line != tt.line || d.Span.Column != tt.column {
				t.Errorf("span = %d:%d, want %d:%d", d.Span.Line, d.Span.Column, tt.line, tt.column)
			}
			if !strings.Contains(d.Message, tt.msg) {
				t.Errorf("message = %q, want it to contain %q", d.Message, tt.msg)
			}
		})
	}
}

type stubResolver struct {
	calls []string
}

func (r *stubResolver) ResolveCrate(ctx context.Context, name, constraint string) (string, *Items, error) {
	r.calls = append(r.calls, name+" "+constraint)
	if name != "core" {
		return "", nil, errors.New("not published")
	}
	return "1.4.2", &Items{Traits: []*TraitItem{{Name: "Show"}}}, nil
}

func TestExternFromResolver(t *testing.T) {
	src := `crate: app
extern:
  - name: core
    version: ^1.2
impls:
  - trait: core::Show
    for: i32
`
	res := &stubResolver{}
	prog, sink, err := lowerSource(t, src, res)
	if err != nil {
		t.Fatalf("Lower: %v\n%s", err, spew.Sdump(sink.All()))
	}
	if len(res.calls) != 1 || res.calls[0] != "core ^1.2" {
		t.Errorf("resolver calls = %q", res.calls)
	}
	core, _ := prog.Tables.CrateByName("core")
	if core == nil || core.Version != "1.4.2" {
		t.Fatalf("core = %+v", core)
	}
	id, err := prog.Tables.Lookup("core::Show")
	if err != nil {
		t.Fatal(err)
	}
	show, _ := prog.Tables.Trait(id)
	if show.Span.File != "<core 1.4.2>" {
		t.Errorf("extern span file = %q", show.Span.File)
	}
	if len(prog.Tables.ImplsOfTrait(id)) != 1 {
		t.Errorf("local impl of core::Show missing")
	}
}

func TestExternUnresolved(t *testing.T) {
	src := `crate: app
extern:
  - name: serde
`
	_, sink, err := lowerSource(t, src, nil)
	if !errors.Is(err, ErrNoResolver) {
		t.Errorf("err = %v, want ErrNoResolver", err)
	}
	if len(sink.WithCode(diagnostics.ErrLoad)) != 1 {
		t.Errorf("diagnostics = %s", spew.Sdump(sink.All()))
	}

	_, _, err = lowerSource(t, src, &stubResolver{})
	if err == nil || !strings.Contains(err.Error(), "not published") {
		t.Errorf("err = %v", err)
	}
}

func TestParseUnitValidation(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"version: 1.0.0\n", "missing crate name"},
		{"crate: app\nextern:\n  - name: app\n", "cannot depend on itself"},
		{"crate: app\ngoals:\n  - prove: 'i32: Show'\n    select: 'i32: Show'\n", "exactly one of"},
		{"crate: app\ngoals:\n  - prove: 'i32: Show'\n    expect: i32\n", "expect is only valid"},
		{"crate: app\nadts:\n  - name: Vec\n    where: [{a: b}]\n", "expected a type expression"},
	}
	for _, tt := range tests {
		_, err := ParseUnit([]byte(tt.src), "bad.unit.yaml")
		if err == nil || !strings.Contains(err.Error(), tt.msg) {
			t.Errorf("ParseUnit(%q) = %v, want %q", tt.src, err, tt.msg)
		}
	}
}

func TestItemsRoundTrip(t *testing.T) {
	u, err := ParseUnit([]byte(containerUnit), "app.unit.yaml")
	if err != nil {
		t.Fatal(err)
	}
	data, err := u.Items.Encode()
	if err != nil {
		t.Fatal(err)
	}
	items, err := DecodeItems(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(items.Traits) != 2 || len(items.Impls) != 2 || items.Impls[0].For.Text != "Vec<T>" {
		t.Errorf("decoded items:\n%s", data)
	}
	if got := items.Traits[1].Methods[0].Receiver; got != "&self" {
		t.Errorf("receiver = %q", got)
	}
}

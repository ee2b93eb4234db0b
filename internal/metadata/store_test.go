package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/funvibe/traitsolver/internal/itemtree"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "crates.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func traitItems(names ...string) *itemtree.Items {
	it := &itemtree.Items{}
	for _, n := range names {
		it.Traits = append(it.Traits, &itemtree.TraitItem{Name: n})
	}
	return it
}

func TestResolveNewestMatching(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for _, v := range []string{"1.0.0", "1.3.1", "2.0.0", "1.2.0"} {
		if err := s.Put(ctx, &Record{Name: "core", Version: v, Items: traitItems("Show", "V"+v)}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		constraint string
		want       string
	}{
		{"", "2.0.0"},
		{"^1.0", "1.3.1"},
		{"~1.2", "1.2.0"},
		{"< 1.1", "1.0.0"},
	}
	for _, tt := range tests {
		v, items, err := s.ResolveCrate(ctx, "core", tt.constraint)
		if err != nil {
			t.Errorf("%q: %v", tt.constraint, err)
			continue
		}
		if v != tt.want {
			t.Errorf("%q resolved to %s, want %s", tt.constraint, v, tt.want)
		}
		if len(items.Traits) != 2 || items.Traits[1].Name != "V"+tt.want {
			t.Errorf("%q: items of the wrong version: %+v", tt.constraint, items.Traits)
		}
	}
}

func TestResolveFailures(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.Put(ctx, &Record{Name: "core", Version: "1.0.0"}); err != nil {
		t.Fatal(err)
	}

	_, _, err := s.ResolveCrate(ctx, "serde", "")
	if !errors.Is(err, ErrCrateNotFound) {
		t.Errorf("missing crate: %v", err)
	}

	_, _, err = s.ResolveCrate(ctx, "core", "^2")
	var nm *NoMatchError
	if !errors.As(err, &nm) || len(nm.Available) != 1 || nm.Available[0] != "1.0.0" {
		t.Errorf("unmatched constraint: %v", err)
	}

	if _, _, err = s.ResolveCrate(ctx, "core", "not a constraint"); err == nil {
		t.Error("expected an invalid constraint error")
	}
}

func TestUnreadableFormatSkipped(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.Put(ctx, &Record{Name: "core", Version: "1.5.0", Format: "2.0.0"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, &Record{Name: "core", Version: "1.1.0"}); err != nil {
		t.Fatal(err)
	}
	v, _, err := s.ResolveCrate(ctx, "core", "")
	if err != nil || v != "1.1.0" {
		t.Errorf("resolved %s, %v; want 1.1.0 from a readable format", v, err)
	}

	if err := s.Put(ctx, &Record{Name: "future", Version: "1.0.0", Format: "3.1.0"}); err != nil {
		t.Fatal(err)
	}
	_, _, err = s.ResolveCrate(ctx, "future", "")
	var nm *NoMatchError
	if !errors.As(err, &nm) || len(nm.Available) != 0 {
		t.Errorf("future format: %v", err)
	}
}

func TestExportReplacesVersion(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	u, err := itemtree.ParseUnit([]byte("crate: lib\nversion: 0.3.0\ntraits:\n  - name: Show\n"), "lib.unit.yaml")
	if err != nil {
		t.Fatal(err)
	}
	first, err := s.Export(ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	u.Traits = append(u.Traits, &itemtree.TraitItem{Name: "Debug"})
	second, err := s.Export(ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Error("re-export kept the old record id")
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != second.ID || list[0].Source != "lib.unit.yaml" || list[0].Items != nil {
		t.Fatalf("list = %+v", list)
	}
	_, items, err := s.ResolveCrate(ctx, "lib", "0.3.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(items.Traits) != 2 {
		t.Errorf("re-exported items not stored: %+v", items.Traits)
	}

	u.Version = ""
	if _, err := s.Export(ctx, u); err == nil {
		t.Error("export without a version succeeded")
	}
}

func TestListOrder(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for _, r := range []*Record{
		{Name: "b", Version: "0.9.0"},
		{Name: "a", Version: "1.10.0"},
		{Name: "a", Version: "1.9.0"},
		{Name: "a", Version: "1.11.0-rc.1"},
	} {
		if err := s.Put(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range list {
		got = append(got, r.Name+"@"+r.Version)
	}
	want := []string{"a@1.11.0-rc.1", "a@1.10.0", "a@1.9.0", "b@0.9.0"}
	if len(got) != len(want) {
		t.Fatalf("list = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("list = %v, want %v", got, want)
			break
		}
	}

	if err := s.Put(ctx, &Record{Name: "c", Version: "latest"}); err == nil {
		t.Error("invalid version accepted")
	}
}

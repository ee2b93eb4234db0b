package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"

	"github.com/funvibe/traitsolver/internal/session"
)

const containerUnit = `crate: app
version: 1.2.0
traits:
  - name: Container
    types:
      - name: Item
  - name: Show
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
  - trait: Show
    for: i32
goals:
  - name: item shows
    prove: "<Vec<i32> as Container>::Item: Show"
  - name: item
    normalize: "<Vec<u8> as Container>::Item"
`

const overlapUnit = `crate: app
version: 0.1.0
traits:
  - name: Show
impls:
  - trait: Show
    for: i32
  - trait: Show
    for: i32
`

const loopUnit = `crate: app
traits:
  - name: Loop
adts:
  - name: Vec
    params: [T]
impls:
  - params: [T]
    trait: Loop
    for: T
    where: ["Vec<T>: Loop"]
`

func writeUnit(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		src    string
		failed bool
		report []string
		errOut string
	}{
		{
			name: "goals",
			src:  containerUnit,
			report: []string{
				"item shows [prove] ok",
				"item [normalize] ok: u8",
				"2 goals, 0 errors",
			},
		},
		{
			name:   "overlap",
			src:    overlapUnit,
			failed: true,
			errOut: "conflicting implementations of trait `Show`",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeUnit(t, dir, tt.name+".unit.yaml", tt.src)
			var out, errOut bytes.Buffer
			pc := runCheck(context.Background(), path, "never", &out, &errOut)
			if pc.Failed() != tt.failed {
				t.Fatalf("failed = %v, want %v\nstdout:\n%s\nstderr:\n%s", pc.Failed(), tt.failed, out.String(), errOut.String())
			}
			for _, line := range tt.report {
				if !strings.Contains(out.String(), line) {
					t.Errorf("report lacks %q:\n%s", line, out.String())
				}
			}
			if !strings.Contains(errOut.String(), tt.errOut) {
				t.Errorf("stderr lacks %q:\n%s", tt.errOut, errOut.String())
			}
		})
	}
}

func TestExportAndListCrates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db := filepath.Join(dir, "crates.db")

	tests := []struct {
		name    string
		src     string
		wantErr error
		out     string
	}{
		{"coherent", containerUnit, nil, "Exported app 1.2.0 -> "},
		{"incoherent", overlapUnit, errCheckFailed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeUnit(t, dir, tt.name+".unit.yaml", tt.src)
			var out, errOut bytes.Buffer
			err := exportUnit(ctx, db, path, &out, &errOut)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("exportUnit = %v, want %v\nstderr:\n%s", err, tt.wantErr, errOut.String())
			}
			if !strings.HasPrefix(out.String(), tt.out) {
				t.Errorf("output %q, want prefix %q", out.String(), tt.out)
			}
		})
	}

	var out bytes.Buffer
	if err := listCrates(ctx, db, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "app") || !strings.Contains(lines[0], "1.2.0") {
		t.Errorf("crates:\n%s", out.String())
	}
}

func TestExportWithoutStore(t *testing.T) {
	path := writeUnit(t, t.TempDir(), "app.unit.yaml", containerUnit)
	var out, errOut bytes.Buffer
	err := exportUnit(context.Background(), "", path, &out, &errOut)
	if err == nil || !strings.Contains(err.Error(), "no metadata store") {
		t.Errorf("exportUnit = %v, want a missing store error", err)
	}
}

func TestReplQueries(t *testing.T) {
	path := writeUnit(t, t.TempDir(), "app.unit.yaml", containerUnit)
	var errOut bytes.Buffer
	pc, err := loadCoherent(context.Background(), path, &errOut)
	if err != nil {
		t.Fatalf("loadCoherent: %v\n%s", err, errOut.String())
	}
	st := &replState{pc: pc}

	tests := []struct {
		line string
		want string
	}{
		{"prove <Vec<i32> as Container>::Item: Show", "[prove] ok"},
		{"normalize <Vec<u8> as Container>::Item", "[normalize] ok: u8"},
		{"select Vec<u8>: Container", "[select] ok: impl<T> Container for Vec<T> with T = u8"},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if err := st.query(&out, tt.line); err != nil {
			t.Fatalf("%s: %v", tt.line, err)
		}
		if !strings.Contains(out.String(), tt.want) {
			t.Errorf("%s: got %q, want %q", tt.line, out.String(), tt.want)
		}
	}
}

func TestReplOverflowEndsSession(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "traitsolver.yaml", "recursion_limit: 8\ncolor: never\n")
	path := writeUnit(t, dir, "loop.unit.yaml", loopUnit)
	var errOut bytes.Buffer
	pc, err := loadCoherent(context.Background(), path, &errOut)
	if err != nil {
		t.Fatalf("loadCoherent: %v\n%s", err, errOut.String())
	}
	st := &replState{pc: pc}

	var out bytes.Buffer
	err = st.query(&out, "prove i32: Loop")
	var fe *session.FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("query = %v, want a fatal error", err)
	}
	if out.Len() != 0 {
		t.Errorf("result printed after overflow: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "overflow evaluating the requirement") {
		t.Errorf("overflow not reported:\n%s", errOut.String())
	}
}

func TestRelevant(t *testing.T) {
	dir := t.TempDir()
	unit := filepath.Join(dir, "app.unit.yaml")
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"unit written", fsnotify.Event{Name: unit, Op: fsnotify.Write}, true},
		{"unit replaced", fsnotify.Event{Name: unit, Op: fsnotify.Rename}, true},
		{"unit chmod", fsnotify.Event{Name: unit, Op: fsnotify.Chmod}, false},
		{"config created", fsnotify.Event{Name: filepath.Join(dir, "traitsolver.yaml"), Op: fsnotify.Create}, true},
		{"other file", fsnotify.Event{Name: filepath.Join(dir, "other.unit.yaml"), Op: fsnotify.Write}, false},
		{"unit removed", fsnotify.Event{Name: unit, Op: fsnotify.Remove}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relevant(tt.ev, unit); got != tt.want {
				t.Errorf("relevant(%s) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}

package diagnostics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHandlerCounts(t *testing.T) {
	var col Collector
	h := NewHandler(&col)

	h.Emit(New(ErrUnimplemented, Span{File: "a", Line: 1, Column: 2}, "boom"))
	h.Emit(New(ErrOverlap, Span{}, "warn").WithSeverity(SeverityWarning))
	h.Emit(New(ErrOverflow, Span{}, "fatal").WithSeverity(SeverityFatal))

	if got := h.ErrorCount(); got != 2 {
		t.Errorf("ErrorCount = %d, want 2", got)
	}
	if got := h.WarningCount(); got != 1 {
		t.Errorf("WarningCount = %d, want 1", got)
	}
	if len(col.All()) != 3 {
		t.Errorf("collector holds %d, want 3", len(col.All()))
	}
	if len(col.WithCode(ErrOverlap)) != 1 {
		t.Errorf("WithCode(ErrOverlap) = %d entries", len(col.WithCode(ErrOverlap)))
	}
}

func TestTextEmitterFormat(t *testing.T) {
	var buf bytes.Buffer
	e := NewTextEmitter(&buf, "never")

	d := New(ErrUnimplemented, Span{File: "m.unit.yaml", Line: 3, Column: 5}, "the trait bound `i32: Foo` is not satisfied").
		WithLabel(Span{File: "m.unit.yaml", Line: 1, Column: 1}, "required by this bound").
		WithNote("the following implementations were found").
		WithHelp("consider adding a where-clause")
	e.Emit(d)

	out := buf.String()
	for _, want := range []string{
		"error[T001]: the trait bound `i32: Foo` is not satisfied",
		"--> m.unit.yaml:3:5",
		"--> m.unit.yaml:1:1: required by this bound",
		"= note: the following implementations were found",
		"= help: consider adding a where-clause",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("color codes emitted in never mode")
	}
}

func TestTextEmitterColorAlways(t *testing.T) {
	var buf bytes.Buffer
	e := NewTextEmitter(&buf, "always")
	e.Emit(New(ErrAmbiguity, Span{}, "type annotations needed"))
	if !strings.Contains(buf.String(), ansiRed) {
		t.Errorf("expected colored output, got %q", buf.String())
	}
}

func TestSpanString(t *testing.T) {
	tests := []struct {
		span Span
		want string
	}{
		{Span{}, "<unknown>"},
		{Span{Line: 2, Column: 7}, "2:7"},
		{Span{File: "x", Line: 2, Column: 7}, "x:2:7"},
	}
	for _, tt := range tests {
		if got := tt.span.String(); got != tt.want {
			t.Errorf("Span%+v.String() = %q, want %q", tt.span, got, tt.want)
		}
	}
}

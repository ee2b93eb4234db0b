package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
)

func TestCatchFatal(t *testing.T) {
	var col diagnostics.Collector
	sess := New(nil, &col)

	err := Catch(func() {
		sess.Fatal(diagnostics.New(diagnostics.ErrOverflow, diagnostics.Span{}, "overflow"))
		t.Fatal("Fatal returned")
	})

	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FatalError, got %v", err)
	}
	if fe.Diagnostic.Severity != diagnostics.SeverityFatal {
		t.Errorf("severity = %v, want fatal", fe.Diagnostic.Severity)
	}
	if len(col.All()) != 1 {
		t.Errorf("expected one emitted diagnostic, got %d", len(col.All()))
	}
	if !sess.HasErrors() {
		t.Errorf("fatal diagnostic not counted as error")
	}
}

func TestFatalEmitsOnce(t *testing.T) {
	var col diagnostics.Collector
	sess := New(nil, &col)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = Catch(func() {
				sess.Fatal(diagnostics.New(diagnostics.ErrOverflow, diagnostics.Span{Line: i + 1}, "overflow %d", i))
			})
		}()
	}
	wg.Wait()

	if got := col.All(); len(got) != 1 {
		t.Fatalf("expected one fatal diagnostic, got %d", len(got))
	}
	first := sess.FatalError()
	if first == nil || first.Diagnostic != col.All()[0] {
		t.Fatalf("FatalError() = %v, want the emitted diagnostic", first)
	}
	for i, err := range errs {
		if err != first {
			t.Errorf("worker %d unwound with %v, want %v", i, err, first)
		}
	}
	if n := sess.ErrorCount(); n != 1 {
		t.Errorf("ErrorCount = %d, want 1", n)
	}
}

func TestFatalErrorNilWithoutFatal(t *testing.T) {
	sess := New(nil, nil)
	sess.Emit(diagnostics.New(diagnostics.ErrOrphan, diagnostics.Span{}, "orphan"))
	if fe := sess.FatalError(); fe != nil {
		t.Errorf("FatalError() = %v, want nil", fe)
	}
}

func TestCatchPropagatesBug(t *testing.T) {
	sess := New(nil, nil)
	defer func() {
		r := recover()
		if _, ok := r.(*BugError); !ok {
			t.Fatalf("expected *BugError panic, got %v", r)
		}
	}()
	_ = Catch(func() { sess.Bug("broken invariant %d", 1) })
}

func TestAbortIfErrors(t *testing.T) {
	sess := New(&config.Config{RecursionLimit: 8}, nil)
	if err := sess.AbortIfErrors(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess.Emit(diagnostics.New(diagnostics.ErrOrphan, diagnostics.Span{}, "orphan"))
	if err := sess.AbortIfErrors(); !errors.Is(err, ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
	if sess.RecursionLimit() != 8 {
		t.Errorf("RecursionLimit = %d, want 8", sess.RecursionLimit())
	}
}

func TestTestModeUsesNilID(t *testing.T) {
	config.IsTestMode = true
	defer func() { config.IsTestMode = false }()

	if sess := New(nil, nil); sess.ID != uuid.Nil {
		t.Errorf("ID = %s, want nil uuid", sess.ID)
	}
}

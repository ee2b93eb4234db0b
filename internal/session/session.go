// Package session holds the per-compilation-unit state shared by every
// phase of the solver: configuration, diagnostics and the abort paths.
package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
)

// FatalError unwinds the solver after a fatal diagnostic has been emitted.
type FatalError struct {
	Diagnostic *diagnostics.Diagnostic
}

func (e *FatalError) Error() string {
	return e.Diagnostic.Error()
}

// BugError reports an internal consistency violation. It is never recovered.
type BugError struct {
	Message string
}

func (e *BugError) Error() string {
	return "internal compiler error: " + e.Message
}

// ErrAborted is returned by AbortIfErrors when earlier phases reported errors.
var ErrAborted = errors.New("aborting due to previous errors")

// Session is the explicit context object threaded through the solver.
type Session struct {
	ID     uuid.UUID
	Config *config.Config
	Diag   *diagnostics.Handler
	Log    *log.Logger

	fatalMu sync.Mutex
	fatal   *FatalError
}

// New creates a session. A nil cfg uses the defaults; a nil sink discards diagnostics.
func New(cfg *config.Config, sink diagnostics.Sink) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	id := uuid.New()
	if config.IsTestMode {
		id = uuid.Nil
	}
	var out io.Writer = io.Discard
	if cfg.Verbose {
		out = log.Writer()
	}
	return &Session{
		ID:     id,
		Config: cfg,
		Diag:   diagnostics.NewHandler(sink),
		Log:    log.New(out, "["+id.String()[:8]+"] ", log.Ltime|log.Lmicroseconds),
	}
}

// RecursionLimit is the obligation depth at which selection overflows.
func (s *Session) RecursionLimit() int {
	return s.Config.RecursionLimit
}

// Emit forwards d to the diagnostic handler.
func (s *Session) Emit(d *diagnostics.Diagnostic) {
	s.Diag.Emit(d)
}

func (s *Session) HasErrors() bool { return s.Diag.HasErrors() }

func (s *Session) ErrorCount() int { return s.Diag.ErrorCount() }

// Fatal emits d with fatal severity and unwinds to the nearest Catch. A
// unit gets one fatal diagnostic: once one has been emitted, later calls,
// from any goroutine, unwind with the first error and emit nothing.
func (s *Session) Fatal(d *diagnostics.Diagnostic) {
	s.fatalMu.Lock()
	if s.fatal == nil {
		d.Severity = diagnostics.SeverityFatal
		s.fatal = &FatalError{Diagnostic: d}
		s.Emit(d)
	} else {
		s.Log.Printf("suppressed fatal after the first: %s", d.Message)
	}
	fe := s.fatal
	s.fatalMu.Unlock()
	panic(fe)
}

// FatalError returns the fatal error of the unit, or nil if there is none.
func (s *Session) FatalError() *FatalError {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	return s.fatal
}

// Bug aborts on an internal consistency violation.
func (s *Session) Bug(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.Log.Printf("ICE: %s", msg)
	panic(&BugError{Message: msg})
}

// AbortIfErrors returns ErrAborted when any error has been reported.
func (s *Session) AbortIfErrors() error {
	if n := s.ErrorCount(); n > 0 {
		return fmt.Errorf("%w (%d errors)", ErrAborted, n)
	}
	return nil
}

// Catch runs fn and converts a fatal unwind into an error. Other panics,
// internal compiler errors included, propagate.
func Catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*FatalError); ok {
				err = fe
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

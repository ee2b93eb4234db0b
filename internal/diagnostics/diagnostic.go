// Package diagnostics defines the diagnostic record produced by the solver
// and the sinks that collect and render it.
package diagnostics

import "fmt"

// Span locates a diagnostic in a compilation unit.
type Span struct {
	File   string
	Line   int
	Column int
}

// IsZero reports whether the span carries no position.
func (s Span) IsZero() bool {
	return s.File == "" && s.Line == 0 && s.Column == 0
}

func (s Span) String() string {
	if s.IsZero() {
		return "<unknown>"
	}
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Severity captures how impactful the diagnostic is.
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal error"
	default:
		return "unknown"
	}
}

// ErrorCode is a stable identifier for a diagnostic.
type ErrorCode string

const (
	// Selection and projection
	ErrUnimplemented        ErrorCode = "T001"
	ErrAmbiguity            ErrorCode = "T002"
	ErrProjectionMismatch   ErrorCode = "T003"
	ErrOutputTypeMismatch   ErrorCode = "T004"
	ErrNotObjectSafe        ErrorCode = "T005"
	ErrOverflow             ErrorCode = "T006"
	ErrClosureKind          ErrorCode = "T007"
	ErrTypeMismatch         ErrorCode = "T008"
	ErrOnUnimplementedParse ErrorCode = "T009"

	// Coherence
	ErrOverlap         ErrorCode = "C001"
	ErrOrphan          ErrorCode = "C002"
	ErrInherentNoBase  ErrorCode = "C003"
	ErrInherentForeign ErrorCode = "C004"
	ErrDropNonStruct   ErrorCode = "C005"
	ErrMissingItems    ErrorCode = "C006"
	ErrUnknownItem     ErrorCode = "C007"

	// Input
	ErrLoad ErrorCode = "L001"

	// Internal compiler error
	ErrInternal ErrorCode = "ICE"
)

// Label attaches a message to a secondary location.
type Label struct {
	Span    Span
	Message string
}

// Diagnostic is a single report handed to a Sink.
type Diagnostic struct {
	Severity Severity
	Code     ErrorCode
	Span     Span
	Message  string
	Labels   []Label
	Notes    []string
	Help     string
}

// New creates an error diagnostic.
func New(code ErrorCode, span Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Severity: SeverityError,
		Code:     code,
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
	}
}

// WithSeverity overrides the default error severity.
func (d *Diagnostic) WithSeverity(sev Severity) *Diagnostic {
	d.Severity = sev
	return d
}

// WithNote appends a free-standing note.
func (d *Diagnostic) WithNote(format string, args ...any) *Diagnostic {
	d.Notes = append(d.Notes, fmt.Sprintf(format, args...))
	return d
}

// WithLabel attaches a message to a secondary span.
func (d *Diagnostic) WithLabel(span Span, format string, args ...any) *Diagnostic {
	d.Labels = append(d.Labels, Label{Span: span, Message: fmt.Sprintf(format, args...)})
	return d
}

// WithHelp sets the help line.
func (d *Diagnostic) WithHelp(format string, args ...any) *Diagnostic {
	d.Help = fmt.Sprintf(format, args...)
	return d
}

// IsError reports whether the diagnostic counts towards the error total.
func (d *Diagnostic) IsError() bool {
	return d.Severity >= SeverityError
}

func (d *Diagnostic) Error() string {
	if d.Code != "" {
		return fmt.Sprintf("%s: %s[%s]: %s", d.Span, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Span, d.Severity, d.Message)
}

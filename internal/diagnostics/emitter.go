package diagnostics

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
)

// TextEmitter renders diagnostics in a compact rustc-like layout.
type TextEmitter struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewTextEmitter creates an emitter writing to w. mode is one of
// "auto", "always" or "never"; auto enables color when w is a terminal.
func NewTextEmitter(w io.Writer, mode string) *TextEmitter {
	return &TextEmitter{w: w, color: useColor(w, mode)}
}

func useColor(w io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (e *TextEmitter) Emit(d *Diagnostic) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprint(e.w, e.Format(d))
}

// Format renders d, including its trailing newline.
func (e *TextEmitter) Format(d *Diagnostic) string {
	var sb strings.Builder

	head := d.Severity.String()
	if d.Code != "" {
		head += "[" + string(d.Code) + "]"
	}
	sb.WriteString(e.paint(severityColor(d.Severity), head))
	sb.WriteString(e.paint(ansiBold, ": "+d.Message))
	sb.WriteByte('\n')
	if !d.Span.IsZero() {
		fmt.Fprintf(&sb, "  %s %s\n", e.paint(ansiBlue, "-->"), d.Span)
	}
	for _, l := range d.Labels {
		fmt.Fprintf(&sb, "  %s %s: %s\n", e.paint(ansiBlue, "-->"), l.Span, l.Message)
	}
	for _, n := range d.Notes {
		fmt.Fprintf(&sb, "  %s %s\n", e.paint(ansiCyan, "= note:"), n)
	}
	if d.Help != "" {
		fmt.Fprintf(&sb, "  %s %s\n", e.paint(ansiCyan, "= help:"), d.Help)
	}
	return sb.String()
}

func (e *TextEmitter) paint(code, s string) string {
	if !e.color {
		return s
	}
	return code + s + ansiReset
}

func severityColor(s Severity) string {
	switch s {
	case SeverityWarning:
		return ansiYellow
	case SeverityNote:
		return ansiCyan
	default:
		return ansiRed
	}
}

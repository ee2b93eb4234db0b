package diagnostics

import "sync"

// Sink receives diagnostics.
type Sink interface {
	Emit(d *Diagnostic)
}

// Handler counts diagnostics by severity and forwards them to a sink.
// It is safe for concurrent use.
type Handler struct {
	mu       sync.Mutex
	sink     Sink
	errors   int
	warnings int
}

// NewHandler creates a handler forwarding to sink. A nil sink discards.
func NewHandler(sink Sink) *Handler {
	return &Handler{sink: sink}
}

// Emit records d and forwards it.
func (h *Handler) Emit(d *Diagnostic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case d.IsError():
		h.errors++
	case d.Severity == SeverityWarning:
		h.warnings++
	}
	if h.sink != nil {
		h.sink.Emit(d)
	}
}

// ErrorCount returns the number of error and fatal diagnostics emitted.
func (h *Handler) ErrorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errors
}

// WarningCount returns the number of warnings emitted.
func (h *Handler) WarningCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.warnings
}

// HasErrors reports whether any error was emitted.
func (h *Handler) HasErrors() bool {
	return h.ErrorCount() > 0
}

// Collector is a Sink that keeps every diagnostic in emission order.
type Collector struct {
	mu    sync.Mutex
	items []*Diagnostic
}

func (c *Collector) Emit(d *Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// All returns a copy of the collected diagnostics.
func (c *Collector) All() []*Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// WithCode returns the collected diagnostics carrying code.
func (c *Collector) WithCode(code ErrorCode) []*Diagnostic {
	var out []*Diagnostic
	for _, d := range c.All() {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

// Reset drops everything collected so far.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

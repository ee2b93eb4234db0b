package pipeline

import (
	"context"

	"github.com/funvibe/traitsolver/internal/coherence"
	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/itemtree"
	"github.com/funvibe/traitsolver/internal/session"
	"github.com/funvibe/traitsolver/internal/traits"
)

// Outcome is the verdict on a goal.
type Outcome uint8

const (
	OutcomeOk Outcome = iota
	OutcomeAmbiguous
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAmbiguous:
		return "ambiguous"
	case OutcomeError:
		return "error"
	}
	return "ok"
}

// GoalResult is what running one goal produced. Diagnostics go to the
// session; Output is the short answer (a type, a selection, bindings).
type GoalResult struct {
	Name    string
	Kind    itemtree.GoalKind
	Span    diagnostics.Span
	Outcome Outcome
	Output  string
}

// PipelineContext carries one compilation unit through the stages.
type PipelineContext struct {
	Context context.Context

	FilePath string
	// Source, when set, is used instead of reading FilePath.
	Source []byte

	// Config is found next to FilePath when nil.
	Config *config.Config
	Sink   diagnostics.Sink
	// Resolver overrides the metadata store named by the config.
	Resolver itemtree.CrateResolver

	Unit      *itemtree.Unit
	Session   *session.Session
	Program   *itemtree.Program
	Traits    *traits.Ctxt
	Coherence *coherence.Info
	Results   []*GoalResult

	Errors []error
}

func NewPipelineContext(ctx context.Context, filePath string) *PipelineContext {
	return &PipelineContext{Context: ctx, FilePath: filePath}
}

// Failed reports whether any stage recorded an error.
func (c *PipelineContext) Failed() bool {
	return len(c.Errors) > 0
}

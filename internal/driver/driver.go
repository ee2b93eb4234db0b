// Package driver wires the solver phases into pipeline processors and runs
// the goals of a compilation unit.
//
// The standard pipeline is
//
//	load -> lower -> coherence -> goals -> report
//
// Every stage records failures in PipelineContext.Errors; diagnostics go to
// the session sink as they are produced.
package driver

import (
	"context"
	"io"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/pipeline"
)

// Options configure a single check.
type Options struct {
	// Config overrides config file discovery.
	Config *config.Config
	Sink   diagnostics.Sink
	// Out receives the goal report; nil skips it.
	Out io.Writer
}

// NewCheckPipeline builds the standard pipeline.
func NewCheckPipeline(out io.Writer) *pipeline.Pipeline {
	processors := []pipeline.Processor{
		&LoadProcessor{},
		&LowerProcessor{},
		&CoherenceProcessor{},
		&GoalProcessor{},
	}
	if out != nil {
		processors = append(processors, &ReportProcessor{Out: out})
	}
	return pipeline.New(processors...)
}

// CheckFile runs the standard pipeline on the unit at path.
func CheckFile(ctx context.Context, path string, opts Options) *pipeline.PipelineContext {
	pc := pipeline.NewPipelineContext(ctx, path)
	pc.Config = opts.Config
	pc.Sink = opts.Sink
	return NewCheckPipeline(opts.Out).Run(pc)
}

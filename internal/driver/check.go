package driver

import (
	"github.com/funvibe/traitsolver/internal/coherence"
	"github.com/funvibe/traitsolver/internal/pipeline"
	"github.com/funvibe/traitsolver/internal/session"
	"github.com/funvibe/traitsolver/internal/traits"
)

// CoherenceProcessor validates the impls of the unit and freezes its item
// table. Any error, coherence diagnostics included, stops the goals from
// running.
type CoherenceProcessor struct{}

func (cp *CoherenceProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Program == nil {
		return ctx
	}
	tcx := traits.NewCtxt(ctx.Session, ctx.Program.Types, ctx.Program.Tables)
	ctx.Traits = tcx

	var (
		info     *coherence.Info
		checkErr error
	)
	if err := session.Catch(func() {
		info, checkErr = coherence.Check(ctx.Context, tcx)
	}); err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	if checkErr != nil {
		ctx.Errors = append(ctx.Errors, checkErr)
		return ctx
	}
	if err := ctx.Session.AbortIfErrors(); err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Coherence = info
	return ctx
}

package driver

import (
	"fmt"
	"io"

	"github.com/funvibe/traitsolver/internal/pipeline"
)

// ReportProcessor prints one line per goal result and a summary.
type ReportProcessor struct {
	Out io.Writer
}

func (rp *ReportProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	for _, r := range ctx.Results {
		fmt.Fprintln(rp.Out, FormatResult(r))
	}
	if ctx.Session == nil {
		return ctx
	}
	fmt.Fprintf(rp.Out, "%s: %d goals, %d errors\n", ctx.FilePath, len(ctx.Results), ctx.Session.ErrorCount())
	return ctx
}

// FormatResult renders a goal result as `name [kind] outcome: output`.
func FormatResult(r *pipeline.GoalResult) string {
	s := fmt.Sprintf("%s [%s] %s", r.Name, r.Kind, r.Outcome)
	if r.Output != "" {
		s += ": " + r.Output
	}
	return s
}

package pipeline

// Processor is one stage of the pipeline. A stage whose inputs are missing
// returns ctx unchanged.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		if err := ctx.Context.Err(); err != nil {
			ctx.Errors = append(ctx.Errors, err)
			break
		}
		ctx = processor.Process(ctx)
		// Later stages still run after errors; each checks what it needs,
		// so load errors and coherence errors of one unit are both reported.
	}
	return ctx
}

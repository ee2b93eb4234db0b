package pipeline

import (
	"context"
	"errors"
	"testing"
)

// recorder appends its name to the results and optionally fails or cancels.
type recorder struct {
	name   string
	fail   bool
	cancel context.CancelFunc
}

func (r *recorder) Process(ctx *PipelineContext) *PipelineContext {
	ctx.Results = append(ctx.Results, &GoalResult{Name: r.name})
	if r.fail {
		ctx.Errors = append(ctx.Errors, errors.New(r.name+" failed"))
	}
	if r.cancel != nil {
		r.cancel()
	}
	return ctx
}

func names(ctx *PipelineContext) []string {
	var out []string
	for _, r := range ctx.Results {
		out = append(out, r.Name)
	}
	return out
}

func TestRun(t *testing.T) {
	tests := []struct {
		name    string
		stages  func(cancel context.CancelFunc) []Processor
		ran     []string
		errs    int
		aborted bool
	}{
		{
			name: "all stages in order",
			stages: func(context.CancelFunc) []Processor {
				return []Processor{&recorder{name: "load"}, &recorder{name: "lower"}, &recorder{name: "report"}}
			},
			ran: []string{"load", "lower", "report"},
		},
		{
			name: "errors do not stop later stages",
			stages: func(context.CancelFunc) []Processor {
				return []Processor{&recorder{name: "load", fail: true}, &recorder{name: "report"}}
			},
			ran:  []string{"load", "report"},
			errs: 1,
		},
		{
			name: "cancellation stops the run",
			stages: func(cancel context.CancelFunc) []Processor {
				return []Processor{&recorder{name: "load", cancel: cancel}, &recorder{name: "lower"}}
			},
			ran:     []string{"load"},
			errs:    1,
			aborted: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			ctx := New(tt.stages(cancel)...).Run(NewPipelineContext(cctx, "app.unit.yaml"))

			got := names(ctx)
			if len(got) != len(tt.ran) {
				t.Fatalf("ran %v, want %v", got, tt.ran)
			}
			for i := range got {
				if got[i] != tt.ran[i] {
					t.Errorf("stage %d = %s, want %s", i, got[i], tt.ran[i])
				}
			}
			if len(ctx.Errors) != tt.errs || ctx.Failed() != (tt.errs > 0) {
				t.Errorf("errors = %v, want %d", ctx.Errors, tt.errs)
			}
			if tt.aborted && !errors.Is(ctx.Errors[len(ctx.Errors)-1], context.Canceled) {
				t.Errorf("last error = %v, want context.Canceled", ctx.Errors[len(ctx.Errors)-1])
			}
		})
	}
}

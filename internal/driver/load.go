package driver

import (
	"fmt"
	"path/filepath"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/itemtree"
	"github.com/funvibe/traitsolver/internal/metadata"
	"github.com/funvibe/traitsolver/internal/pipeline"
	"github.com/funvibe/traitsolver/internal/session"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// LoadProcessor finds the configuration, decodes the unit and opens the
// session.
type LoadProcessor struct{}

func (lp *LoadProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Config == nil {
		cfg, err := ConfigFor(ctx.FilePath)
		if err != nil {
			ctx.Errors = append(ctx.Errors, err)
			return ctx
		}
		ctx.Config = cfg
	}
	ctx.Session = session.New(ctx.Config, ctx.Sink)

	var (
		u   *itemtree.Unit
		err error
	)
	if ctx.Source != nil {
		u, err = itemtree.ParseUnit(ctx.Source, ctx.FilePath)
	} else {
		u, err = itemtree.LoadUnit(ctx.FilePath)
	}
	if err != nil {
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Unit = u
	ctx.Session.Log.Printf("loaded unit %s (crate %s)", ctx.FilePath, u.Crate)
	return ctx
}

// ConfigFor reads the nearest traitsolver.yaml above the unit at
// unitPath, or returns the defaults when there is none. An empty path
// searches from the working directory.
func ConfigFor(unitPath string) (*config.Config, error) {
	dir := "."
	if unitPath != "" {
		dir = filepath.Dir(unitPath)
	}
	path, err := config.FindConfig(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// LowerProcessor resolves the unit into an item table. Extern crates
// without inline items are looked up in the metadata store.
type LowerProcessor struct{}

func (lp *LowerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Unit == nil || ctx.Session == nil {
		return ctx
	}

	var res itemtree.CrateResolver
	if ctx.Resolver != nil {
		res = ctx.Resolver
	} else if path := ctx.Config.Metadata; path != "" && needsResolver(ctx.Unit) {
		store, err := metadata.Open(ctx.Context, path)
		if err != nil {
			ctx.Errors = append(ctx.Errors, err)
			return ctx
		}
		defer store.Close()
		res = store
	}

	prog, err := itemtree.Lower(ctx.Context, ctx.Session, ts.NewInterner(), ctx.Unit, res)
	if err != nil {
		ctx.Errors = append(ctx.Errors, fmt.Errorf("lowering %s: %w", ctx.FilePath, err))
		return ctx
	}
	ctx.Program = prog
	return ctx
}

func needsResolver(u *itemtree.Unit) bool {
	for _, ext := range u.Extern {
		if ext.Items == nil {
			return true
		}
	}
	return false
}

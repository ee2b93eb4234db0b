package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/driver"
	"github.com/funvibe/traitsolver/internal/metadata"
	"github.com/funvibe/traitsolver/internal/pipeline"
)

const usage = `traitsolver - trait selection, projection and coherence checker

Usage:
  traitsolver check [-color mode] <unit.yaml>...   check units and run their goals
  traitsolver watch <unit.yaml>                    re-check a unit whenever it changes
  traitsolver repl <unit.yaml>                     query a unit interactively
  traitsolver export [-db path] <unit.yaml>        store a checked crate in the metadata store
  traitsolver crates [-db path]                    list the crates in the metadata store
  traitsolver help                                 show this message

Settings are read from the nearest traitsolver.yaml.
`

func handleHelp() bool {
	if len(os.Args) >= 2 && os.Args[1] != "help" && os.Args[1] != "-h" && os.Args[1] != "--help" {
		return false
	}
	fmt.Print(usage)
	return true
}

// errCheckFailed reports a unit whose diagnostics have already been printed.
var errCheckFailed = errors.New("check failed")

// runCheck checks one unit and prints its goal report to out and its
// diagnostics to errOut.
func runCheck(ctx context.Context, path, color string, out, errOut io.Writer) *pipeline.PipelineContext {
	cfg, err := driver.ConfigFor(path)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %s\n", err)
		return &pipeline.PipelineContext{Errors: []error{err}}
	}
	if color != "" {
		cfg.Color = color
	}
	sink := diagnostics.NewTextEmitter(errOut, cfg.Color)
	pc := driver.CheckFile(ctx, path, driver.Options{Config: cfg, Sink: sink, Out: out})
	printErrors(errOut, pc)
	return pc
}

// printErrors prints the stage errors that did not already produce a
// diagnostic.
func printErrors(w io.Writer, pc *pipeline.PipelineContext) {
	for _, err := range pc.Errors {
		if pc.Session != nil && pc.Session.HasErrors() {
			// Diagnostics were printed; only say why the run stopped.
			fmt.Fprintf(w, "error: %s\n", err)
			continue
		}
		fmt.Fprintf(w, "Error: %s\n", err)
	}
}

// loadCoherent runs the unit through coherence without running its goals.
func loadCoherent(ctx context.Context, path string, errOut io.Writer) (*pipeline.PipelineContext, error) {
	cfg, err := driver.ConfigFor(path)
	if err != nil {
		return nil, err
	}
	pc := pipeline.NewPipelineContext(ctx, path)
	pc.Config = cfg
	pc.Sink = diagnostics.NewTextEmitter(errOut, cfg.Color)
	pc = pipeline.New(&driver.LoadProcessor{}, &driver.LowerProcessor{}, &driver.CoherenceProcessor{}).Run(pc)
	if pc.Failed() {
		printErrors(errOut, pc)
		return pc, errCheckFailed
	}
	return pc, nil
}

func handleCheck(ctx context.Context) bool {
	if len(os.Args) < 2 || os.Args[1] != "check" {
		return false
	}
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	color := fs.String("color", "", "diagnostic colors: auto, always or never")
	fs.Parse(os.Args[2:])
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: traitsolver check <unit.yaml>...")
		os.Exit(2)
	}

	failed := false
	for _, path := range fs.Args() {
		if runCheck(ctx, path, *color, os.Stdout, os.Stderr).Failed() {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
	return true
}

func handleExport(ctx context.Context) bool {
	if len(os.Args) < 2 || os.Args[1] != "export" {
		return false
	}
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := fs.String("db", "", "metadata store (default: metadata from traitsolver.yaml)")
	fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: traitsolver export [-db path] <unit.yaml>")
		os.Exit(2)
	}
	if err := exportUnit(ctx, *dbPath, fs.Arg(0), os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
	return true
}

// exportUnit stores the crate of a coherent unit. Goals are not run.
func exportUnit(ctx context.Context, dbPath, path string, out, errOut io.Writer) error {
	pc, err := loadCoherent(ctx, path, errOut)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, dbPath, pc.Config)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Export(ctx, pc.Unit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %s %s -> %s\n", rec.Name, rec.Version, store.Path())
	fmt.Fprintf(out, "Record id: %s (format %s)\n", rec.ID, rec.Format)
	return nil
}

func handleCrates(ctx context.Context) bool {
	if len(os.Args) < 2 || os.Args[1] != "crates" {
		return false
	}
	fs := flag.NewFlagSet("crates", flag.ExitOnError)
	dbPath := fs.String("db", "", "metadata store (default: metadata from traitsolver.yaml)")
	fs.Parse(os.Args[2:])

	if err := listCrates(ctx, *dbPath, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return true
}

func listCrates(ctx context.Context, dbPath string, out io.Writer) error {
	cfg, err := driver.ConfigFor("")
	if err != nil {
		return err
	}
	store, err := openStore(ctx, dbPath, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(out, "%-20s %-12s format %-7s %s  %s\n",
			r.Name, r.Version, r.Format, r.ExportedAt.Format("2006-01-02 15:04"), r.Source)
	}
	return nil
}

func openStore(ctx context.Context, flagPath string, cfg *config.Config) (*metadata.Store, error) {
	path := flagPath
	if path == "" {
		path = cfg.Metadata
	}
	if path == "" {
		return nil, errors.New("no metadata store: pass -db or set metadata in traitsolver.yaml")
	}
	return metadata.Open(ctx, path)
}

func main() {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			fmt.Fprintln(os.Stderr, "This is a bug. Please report it.")
			os.Exit(1)
		}
	}()

	if os.Getenv("TRAITSOLVER_TEST_MODE") == "1" {
		config.IsTestMode = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}
	if handleHelp() {
		return
	}
	if handleCheck(ctx) {
		return
	}
	if handleWatch(ctx) {
		return
	}
	if handleRepl(ctx) {
		return
	}
	if handleExport(ctx) {
		return
	}
	if handleCrates(ctx) {
		return
	}

	fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", os.Args[1], usage)
	os.Exit(2)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/funvibe/traitsolver/internal/driver"
	"github.com/funvibe/traitsolver/internal/itemtree"
	"github.com/funvibe/traitsolver/internal/pipeline"
	"github.com/funvibe/traitsolver/internal/session"
	"github.com/funvibe/traitsolver/internal/symbols"
)

const (
	historyFile = ".traitsolver_history"
	promptMain  = "?- "
)

const replHelp = `Queries:
  prove <predicate>       prove a predicate, e.g. prove Vec<?x>: Clone
  normalize <type>        normalize a type, e.g. normalize <Vec<u8> as IntoIter>::Item
  select <trait bound>    show the evidence selected for a bound
Commands:
  :params T, U            type parameters available to later queries
  :mode any-final|topmost|any
  :impls <name>           impls of a trait, or impls registered under a type
  :quit
`

var replCommands = []string{"prove ", "normalize ", "select ", ":params ", ":mode ", ":impls ", ":help", ":quit"}

func handleRepl(ctx context.Context) bool {
	if len(os.Args) < 2 || os.Args[1] != "repl" {
		return false
	}
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: traitsolver repl <unit.yaml>")
		os.Exit(2)
	}
	pc, err := loadCoherent(ctx, os.Args[2], os.Stderr)
	if err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
	os.Exit(repl(pc))
	return true
}

type replState struct {
	pc     *pipeline.PipelineContext
	params []string
	mode   string
}

func repl(pc *pipeline.PipelineContext) int {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var out []string
		for _, c := range replCommands {
			if strings.HasPrefix(c, line) {
				out = append(out, c)
			}
		}
		return out
	})

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	tbl := pc.Program.Tables
	fmt.Printf("crate %s: %d traits, %d impls. Type :help for commands.\n",
		pc.Unit.Crate, len(tbl.Traits()), len(tbl.AllImpls()))

	st := &replState{pc: pc}
	for {
		line, err := ln.Prompt(promptMain)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return 0
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return 1
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(line, ":") {
			if st.command(line) {
				return 0
			}
			continue
		}
		if err := st.query(os.Stdout, line); err != nil {
			// The fatal diagnostic has been printed. Overflow ends the unit.
			fmt.Fprintln(os.Stderr, "error: session ended after a fatal error")
			return 1
		}
	}
}

// command runs a :command and reports whether the repl should exit.
func (st *replState) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Print(replHelp)
	case ":params":
		st.params = nil
		for _, p := range strings.Split(arg, ",") {
			if p = strings.TrimSpace(p); p != "" {
				st.params = append(st.params, p)
			}
		}
		fmt.Printf("params: [%s]\n", strings.Join(st.params, ", "))
	case ":mode":
		mode, err := driver.ParseMode(arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			break
		}
		st.mode = arg
		fmt.Printf("projection mode: %s\n", mode)
	case ":impls":
		st.impls(arg)
	default:
		fmt.Printf("unknown command %s. Type :help for commands.\n", name)
	}
	return false
}

func (st *replState) impls(name string) {
	tbl := st.pc.Program.Tables
	id, err := tbl.Lookup(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	var impls []*symbols.ImplDef
	if tbl.IsTrait(id) {
		impls = st.pc.Coherence.ExtensionMethods(id)
	} else {
		impls = st.pc.Coherence.InherentMethods(id)
	}
	if len(impls) == 0 {
		fmt.Printf("no impls for %s\n", name)
	}
	for _, impl := range impls {
		fmt.Printf("  %s  (%s)\n", impl.Describe(), impl.Span)
	}
}

// query runs one goal and prints its result. A fatal error is returned
// after its diagnostic has been emitted.
func (st *replState) query(out io.Writer, line string) error {
	word, rest, _ := strings.Cut(line, " ")
	kind, ok := itemtree.ParseGoalKind(word)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown query %q: start with prove, normalize or select\n", word)
		return nil
	}
	g := st.pc.Program.NewGoal(kind, strings.TrimSpace(rest), st.params)
	g.Mode = st.mode

	var res *pipeline.GoalResult
	if err := session.Catch(func() { res = driver.RunGoal(st.pc.Traits, g) }); err != nil {
		return err
	}
	fmt.Fprintln(out, driver.FormatResult(res))
	return nil
}

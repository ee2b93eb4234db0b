package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/funvibe/traitsolver/internal/config"
)

// debounce collapses the burst of events an editor produces for one save.
const debounce = 150 * time.Millisecond

func handleWatch(ctx context.Context) bool {
	if len(os.Args) < 2 || os.Args[1] != "watch" {
		return false
	}
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "Usage: traitsolver watch <unit.yaml>")
		os.Exit(2)
	}
	path, err := filepath.Abs(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if err := watchUnit(ctx, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return true
}

// watchUnit checks the unit once and again after every change to it or to
// a config file next to it, until ctx is cancelled.
func watchUnit(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Editors often replace the file on save, so the directory is watched.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	check := func() {
		fmt.Printf("== %s %s\n", time.Now().Format("15:04:05"), path)
		runCheck(ctx, path, "", os.Stdout, os.Stderr)
	}
	check()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", path, err)
		case <-fire:
			fire = nil
			check()
		}
	}
}

func relevant(ev fsnotify.Event, unit string) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(ev.Name)
	return name == unit || slices.Contains(config.ConfigFileNames, filepath.Base(name))
}

// Package main is the entry point for gridline, a terminal front-end for
// Neovim.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"golang.org/x/term"

	"github.com/dshills/gridline/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: gridline must be run in a terminal")
		return 1
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, app.ErrQuit) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() app.Options {
	opts := app.DefaultOptions()
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.Address, "tcp", "", "Connect to an editor listening on host:port instead of spawning one")
	flag.StringVar(&opts.EditorCommand, "nvim", opts.EditorCommand, "Editor executable to spawn")
	flag.StringVar(&opts.ConfigPath, "config", "", "Path to settings file (.toml, .yaml or .lua)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to settings file (shorthand)")
	flag.BoolVar(&opts.WatchConfig, "watch-config", true, "Reload the settings file when it changes")
	flag.IntVar(&opts.Width, "width", opts.Width, "Initial width in cells")
	flag.IntVar(&opts.Height, "height", opts.Height, "Initial height in cells")
	flag.BoolVar(&opts.NoIdle, "no-idle", false, "Draw every frame even when nothing changed")
	flag.StringVar(&opts.LogFile, "log-file", "", "Write logs to this file")
	flag.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "gridline - terminal front-end for Neovim\n\n")
		fmt.Fprintf(os.Stderr, "Usage: gridline [options] [files...] [-- nvim args...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  gridline                         Start nvim with an empty buffer\n")
		fmt.Fprintf(os.Stderr, "  gridline main.go                 Open a file\n")
		fmt.Fprintf(os.Stderr, "  gridline --tcp localhost:6666    Attach to 'nvim --listen localhost:6666'\n")
		fmt.Fprintf(os.Stderr, "  gridline -- --clean              Pass arguments to nvim\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("gridline %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts.Files, opts.EditorArgs = splitArgs(flag.Args(), os.Args[1:])
	return opts
}

// splitArgs separates files from editor arguments after "--". flag.Parse
// consumes a "--" that comes before any file, so raw is checked for it too.
func splitArgs(rest, raw []string) (files, editorArgs []string) {
	if i := slices.Index(rest, "--"); i >= 0 {
		return rest[:i], rest[i+1:]
	}
	if slices.Contains(raw, "--") {
		return nil, rest
	}
	return rest, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dusk-indust/qacheck/internal/config"
	"github.com/dusk-indust/qacheck/internal/dashboard"
	"github.com/dusk-indust/qacheck/internal/export"
	"github.com/dusk-indust/qacheck/internal/files"
	"github.com/dusk-indust/qacheck/internal/logger"
	"github.com/dusk-indust/qacheck/internal/mcptools"
	"github.com/dusk-indust/qacheck/internal/orchestrator"
	"github.com/dusk-indust/qacheck/internal/output"
)

// CLI flags parsed from command line.
type cliFlags struct {
	Config      string
	ProjectRoot string
	Settings    string
	Steps       string
	ChangedOnly bool
	Debug       bool
	Menu        bool
	Addr        string
	ServeMCP    bool
	ListFiles   bool
	Version     bool
}

// version is set by goreleaser at build time.
var version = "dev"

// errChecksFailed signals a completed run with at least one failed step.
var errChecksFailed = errors.New("not all checks passed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	_ = logger.Sync()

	if err != nil {
		if !errors.Is(err, errChecksFailed) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var flags cliFlags

	fs := flag.NewFlagSet("qacheck", flag.ContinueOnError)
	fs.StringVar(&flags.Config, "c", "", "the YAML file that declares pattern groups and steps")
	fs.StringVar(&flags.ProjectRoot, "project-root", ".", "path to the tree being checked")
	fs.StringVar(&flags.Settings, "settings", "", "runtime settings file (default: ./qacheck.yaml if present)")
	fs.StringVar(&flags.Steps, "steps", "", "comma-separated steps to run, in order (default: all)")
	fs.BoolVar(&flags.ChangedOnly, "changed-only", false, "only check files changed against the baseline branch")
	fs.BoolVar(&flags.Debug, "debug", false, "show debugging output when a tool fails")
	fs.BoolVar(&flags.Menu, "menu", false, "serve an interactive menu instead of running in batch mode")
	fs.StringVar(&flags.Addr, "addr", "", "menu listen address (default: dashboard.addr setting)")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as an MCP server on stdio")
	fs.BoolVar(&flags.ListFiles, "list-files", false, "print the resolved files as JSON and exit")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Fprintln(stdout, version)
		return nil
	}

	settings, err := config.LoadSettings(flags.Settings)
	if err != nil {
		return err
	}
	if err := logger.Init(settings.Log.Level, settings.Log.Format); err != nil {
		return err
	}
	if flags.Debug {
		if err := logger.SetLevel("debug"); err != nil {
			return err
		}
	}

	if flags.Config == "" {
		return fmt.Errorf("-c is required")
	}
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return err
	}

	git := &files.Git{
		Dir:      flags.ProjectRoot,
		Binary:   settings.Git.Binary,
		Baseline: settings.Git.Baseline,
	}
	resolver := files.NewResolver(cfg.Patterns, flags.ProjectRoot, git)
	runner := orchestrator.NewStepRunner(settings, flags.ProjectRoot)
	exec := orchestrator.NewExecutor(cfg, resolver, runner.Run)

	if !flags.ListFiles {
		orchestrator.DetectTools(ctx, cfg, settings, flags.ProjectRoot, flags.ChangedOnly || flags.Menu || flags.ServeMCP)
	}

	switch {
	case flags.ServeMCP:
		svc := mcptools.NewQAService(cfg, resolver, exec, os.Stderr)
		return mcptools.RunStdio(ctx, mcptools.NewQAMCPServer(svc))

	case flags.ListFiles:
		res, err := resolver.Resolve(ctx, files.PolicyFor(flags.ChangedOnly))
		if err != nil {
			return err
		}
		return export.WriteJSON(stdout, export.Resolution(res))

	case flags.Menu:
		ds := settings.Dashboard
		if flags.Addr != "" {
			ds.Addr = flags.Addr
		}
		srv, err := dashboard.New(exec, ds, stdout)
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	}

	steps := selectedSteps(flags.Steps, fs.Args())
	if len(steps) == 0 {
		steps = cfg.StepNames()
	}
	opts := orchestrator.Options{
		Debug:  flags.Debug,
		Policy: files.PolicyFor(flags.ChangedOnly),
		OnProgress: func(ev orchestrator.ProgressEvent) {
			logger.Debug(orchestrator.FormatProgress(ev))
		},
	}

	ok, err := exec.Execute(ctx, output.NewBroadcaster(stdout), opts, steps...)
	if err != nil {
		return err
	}
	if !ok {
		return errChecksFailed
	}
	return nil
}

// selectedSteps merges the -steps list with positional step names.
func selectedSteps(list string, positional []string) []string {
	var steps []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			steps = append(steps, name)
		}
	}
	return append(steps, positional...)
}

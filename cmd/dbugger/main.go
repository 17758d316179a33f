// dbugger watches a pm2 process's logs and reports errors to Slack with an
// AI-written cause analysis.
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

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	vc "github.com/linnemanlabs/dbugger/internal/cfg"
	"github.com/linnemanlabs/dbugger/internal/guard"
)

const appName = "dbugger"

// errVersionPrinted stops command execution after -V.
var errVersionPrinted = errors.New("version printed")

// commandGuard keeps a second command from starting inside the same process.
var commandGuard guard.Flag

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, _ := newRootCmd(os.Stdout, os.Stderr)
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil && !errors.Is(err, errVersionPrinted) {
		return err
	}
	return nil
}

// app carries the parsed ambient configuration shared by all commands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath  string
	showVersion bool

	goFS     *flag.FlagSet
	runtime  vc.Runtime
	logCfg   log.Config
	opsCfg   opshttp.Config
	profCfg  prof.Config
	traceCfg otelx.Config

	lg log.Logger
	L  log.Logger
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout, stderr: stderr}

	// each package registers its own flags and options struct
	a.goFS = flag.NewFlagSet(appName, flag.ContinueOnError)
	a.runtime.RegisterFlags(a.goFS)
	a.logCfg.RegisterFlags(a.goFS)
	a.opsCfg.RegisterFlags(a.goFS)
	a.profCfg.RegisterFlags(a.goFS)
	a.traceCfg.RegisterFlags(a.goFS)

	root := &cobra.Command{
		Use:   appName,
		Short: "Monitor a pm2 process and report errors to Slack",
		Long: `dbugger follows the log output of one pm2 process. When a line matches
one of the configured error keywords it waits for the burst to settle, asks
Claude for a short cause analysis and posts the error with branch, user and
commit details to Slack.

Running dbugger without a subcommand starts the monitor.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              exclusive(a, a.runMonitor),
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", vc.DefaultFile, "Set config file path")
	pf.BoolVarP(&a.showVersion, "version", "V", false, "Print version+build information and exit")
	pf.AddGoFlagSet(a.goFS)

	root.AddCommand(
		&cobra.Command{
			Use:   "send",
			Short: "Send the last error",
			Long:  "Scan the process log file for the most recent error and report it once.",
			Args:  cobra.NoArgs,
			RunE:  exclusive(a, a.runSend),
		},
		&cobra.Command{
			Use:   "init",
			Short: "Initialize dbugger configuration",
			Long:  "Write an example " + vc.DefaultFile + " in the current directory and add it to .gitignore.",
			Args:  cobra.NoArgs,
			RunE:  exclusive(a, a.runInit),
		},
	)
	return root, a
}

// setup runs before every command: version output, env fill, validation and
// logger construction.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v.AppName = appName
	v.Component = cmd.Name()
	vi := v.Get()

	if a.showVersion {
		fmt.Fprintf(a.stdout,
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return errVersionPrinted
	}

	// mark flags given on the command line as set on the go FlagSet so env
	// vars do not override them
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if a.goFS.Lookup(f.Name) != nil {
			_ = a.goFS.Set(f.Name, f.Value.String())
		}
	})

	// Fill in config values from environment variables with prefix DBUGGER_,
	// these do not override cmdline flags
	cfg.FillFromEnv(a.goFS, "DBUGGER_", func(format string, args ...any) {
		fmt.Fprintf(a.stderr, format+"\n", args...)
	})

	if err := errors.Join(
		a.runtime.Validate(),
		a.logCfg.Validate(),
		a.opsCfg.Validate(),
		a.profCfg.Validate(),
		a.traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(a.logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	a.lg = lg
	a.L = lg.With("component", vi.Component)
	cmd.SetContext(log.WithContext(cmd.Context(), a.L))
	return nil
}

// exclusive wraps a command body so it is dropped, not queued, when another
// command already runs in this process.
func exclusive(a *app, fn func(ctx context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if !commandGuard.TryAcquire() {
			a.L.Warn(ctx, "another dbugger command is already running, ignoring", "command", cmd.Name())
			return nil
		}
		defer commandGuard.Release()
		defer func() { _ = a.lg.Sync() }()
		return fn(ctx)
	}
}

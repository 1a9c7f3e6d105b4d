// Package cmd implements the CLI command structure for tasktrack.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nibzard/tasktrack/internal/api"
	"github.com/nibzard/tasktrack/internal/config"
	"github.com/nibzard/tasktrack/internal/logging"
	"github.com/nibzard/tasktrack/internal/metrics"
	"github.com/nibzard/tasktrack/internal/store"
	"github.com/nibzard/tasktrack/internal/ui"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the tasktrack CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

// app carries what every command needs once configuration is loaded.
type app struct {
	out    io.Writer
	errOut io.Writer

	cws     *config.ConfigWithSources
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Collector
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tasktrack",
		Short: "Track tasks on a TaskTrack service",
		Long: `tasktrack is a client for a task-tracking REST service.

Run without a command to open the interactive task list. Toggles and
deletions show up immediately and are undone if the service refuses them.
The subcommands do the same work from scripts.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		RunE:              a.runTUI,
	}
	root.SetVersionTemplate("tasktrack version {{.Version}}\n")
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		a.newListCmd(),
		a.newAddCmd(),
		a.newToggleCmd(),
		a.newRemoveCmd(),
		a.newHealthCmd(),
		a.newConfigCmd(),
		a.newLogsCmd(),
		a.newVersionCmd(),
	)
	return root
}

// setup loads configuration from every source and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cws, err := config.LoadWithSources(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cws = cws
	a.cfg = cws.Config
	a.logger = logging.New(a.errOut, a.logOptions())
	a.metrics = metrics.New()

	for _, key := range cws.Unknown {
		a.logger.Warn("unknown config key", "key", key, "file", cws.ConfigFile())
	}
	return nil
}

func (a *app) logOptions() logging.Options {
	return logging.OptionsFromStrings(a.cfg.LogLevel, a.cfg.LogFormat, a.cfg.LogTimestamps, a.cfg.LogCaller)
}

// newStore wires a client and store for the loaded config. When a metrics
// address is configured the endpoint runs until ctx is done.
func (a *app) newStore(ctx context.Context) *store.Store {
	client := api.New(a.cfg.APIBase,
		api.WithTimeout(a.cfg.Timeout()),
		api.WithUserAgent(a.cfg.UserAgent),
		api.WithStrictSchema(a.cfg.StrictSchema),
		api.WithLogger(a.logger),
		api.WithObserver(a.metrics),
	)

	if a.cfg.MetricsAddr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, a.cfg.MetricsAddr, a.logger); err != nil {
				a.logger.Error("metrics endpoint stopped", "addr", a.cfg.MetricsAddr, "err", err)
			}
		}()
	}

	return store.New(client,
		store.WithLogger(a.logger),
		store.WithRollbackRecorder(a.metrics),
	)
}

// runTUI opens the interactive list. The terminal belongs to the UI, so
// logs go to a per-session file instead.
func (a *app) runTUI(cmd *cobra.Command, _ []string) error {
	if !ui.IsTTY(a.out) {
		return fmt.Errorf("the task list needs a terminal; use a subcommand such as 'tasktrack list' instead")
	}

	session, err := logging.NewSession(a.cfg.LogDir)
	if err != nil {
		return fmt.Errorf("opening session log: %w", err)
	}
	defer session.Close()

	a.logger = logging.New(session.Writer(), a.logOptions())
	a.logger.Info("session started", "run_id", session.RunID, "api_base", a.cfg.APIBase, "version", Version)

	ctx := cmd.Context()
	err = ui.RunTUI(ctx, a.newStore(ctx), ui.WithOutput(a.out))
	if err != nil {
		a.logger.Error("session ended", "err", err)
		return err
	}
	a.logger.Info("session ended")
	return nil
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Version output must not depend on a readable config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.out, "tasktrack version %s\n", Version)
			return err
		},
	}
}

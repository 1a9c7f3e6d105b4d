package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nibzard/tasktrack/internal/config"
	"github.com/nibzard/tasktrack/internal/logging"
)

func (a *app) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the task service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := a.newStore(cmd.Context()).Health(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s: %s\n", a.cfg.APIBase, h.Status)
			return err
		},
	}
}

func (a *app) newConfigCmd() *cobra.Command {
	var example bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if example {
				_, err := fmt.Fprint(a.out, config.ExampleConfig())
				return err
			}

			file := a.cws.ConfigFile()
			if file == "" {
				file = "(none)"
			}
			fmt.Fprintf(a.out, "Config file: %s\n\n", file)
			for _, key := range config.Keys() {
				value, _ := a.cfg.Value(key)
				if value == "" {
					value = `""`
				}
				fmt.Fprintf(a.out, "  %-16s %-32s %s\n", key, value, a.cws.Sources[key])
			}
			if len(a.cws.Unknown) > 0 {
				fmt.Fprintf(a.out, "\nIgnored keys: %v\n", a.cws.Unknown)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&example, "example", false, "Print an example config file")
	return cmd
}

func (a *app) newLogsCmd() *cobra.Command {
	var follow, list bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent terminal UI session log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				sessions, err := logging.ListSessions(a.cfg.LogDir)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(a.out, "No session logs found.")
					return nil
				}
				for _, s := range sessions {
					fmt.Fprintf(a.out, "%s  %s  %d bytes\n", s.RunID, s.ModTime.Format("2006-01-02 15:04:05"), s.Size)
				}
				return nil
			}

			path, err := logging.FindLatestLog(a.cfg.LogDir)
			if err != nil {
				return fmt.Errorf("finding latest log: %w", err)
			}
			if path == "" {
				fmt.Fprintln(a.out, "No session logs found.")
				return nil
			}

			fmt.Fprintf(a.out, "Tailing: %s\n", path)
			if follow {
				fmt.Fprintln(a.out, "(Ctrl+C to stop)")
			}
			fmt.Fprintln(a.out)
			return logging.TailLog(cmd.Context(), a.out, path, lines, follow)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines as they are written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines to show (0 = all)")
	cmd.Flags().BoolVar(&list, "list", false, "List session logs instead of printing one")
	return cmd
}

// Command modelflow runs a train / validate / tune experiment described
// by a config file.
//
//	modelflow run --config experiment.yaml --workers 4 --log-level info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/modelflow/config"
	"github.com/YuminosukeSato/modelflow/pkg/log"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "modelflow",
		Short:         "Resampled model tuning and evaluation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn or error")
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("log-level")
		level, err := log.ToLogLevel(name)
		if err != nil {
			return err
		}
		log.SetProvider(log.NewConsoleProvider(cmd.ErrOrStderr(), level))
		return nil
	}
	root.AddCommand(newRunCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var (
		path       string
		workers    int
		noProgress bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Split, tune, select, finalize and evaluate once on the held-out rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			summary, err := runExperiment(cfg, runOptions{
				workers:  workers,
				progress: !noProgress,
				stdout:   cmd.OutOrStdout(),
				stderr:   cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s wrote %d files to %s\n", summary.RunID, len(summary.Files), cfg.Output.Dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "experiment file (yaml, json or toml)")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "tuning workers (0 uses the config or GOMAXPROCS)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "hide the tuning progress bar")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.GetLogger().Error("modelflow failed", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vsmectl",
		Short:         "Inspect, edit and export VSME report sections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log at debug level")
	root.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "print section operation counters to stderr on exit")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.setup()
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if !a.metrics {
			return nil
		}
		lines, err := a.metricLines()
		if err != nil {
			return err
		}
		for _, l := range lines {
			if _, err := fmt.Fprintln(cmd.ErrOrStderr(), l); err != nil {
				return err
			}
		}
		return nil
	}

	root.AddCommand(
		sectionsCommand(),
		showCommand(a),
		setCommand(a),
		statusCommand(a),
		exportCommand(a),
		historyCommand(a),
	)
	return root
}

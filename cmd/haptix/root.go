package main

import (
	"github.com/spf13/cobra"

	applog "haptix/internal/platform/log"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "haptix",
		Short:         "Haptix workflow tooling",
		Long:          `Validate haptic workflows, print the trigger rules they produce, and preview-run them against a stimulus backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applog.Init(applog.Config{Level: logLevel, Output: cmd.ErrOrStderr()})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newValidateCmd(), newConfigCmd(), newRunCmd())
	return root
}
